package buffer

// allocArena and freeArena are implemented per platform in arena_unix.go and
// arena_windows.go. Both hand back memory whose start address is
// page-aligned (the OS's own page granularity, always a multiple of every
// page_size this format supports), which is what lets PageBuffer slice out
// page-size-aligned frames without a hand-rolled aligning allocator —
// adapted from the teacher's mmap_unix.go / mmap_windows.go, redirected
// from file-backed mapping to an anonymous one sized for the frame pool
// instead of a database file.
