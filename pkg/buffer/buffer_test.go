package buffer

import "testing"

func TestAllocateExhaustsCapacity(t *testing.T) {
	b, err := New(64, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	if !b.HasSpace() {
		t.Fatal("expected space in a fresh buffer")
	}

	s1, ok := b.AllocatePage()
	if !ok {
		t.Fatal("expected first allocation to succeed")
	}
	s2, ok := b.AllocatePage()
	if !ok {
		t.Fatal("expected second allocation to succeed")
	}
	if s1 == s2 {
		t.Fatalf("expected distinct slots, got %d twice", s1)
	}

	if b.HasSpace() {
		t.Fatal("expected buffer to report full")
	}
	if _, ok := b.AllocatePage(); ok {
		t.Fatal("expected third allocation to fail")
	}
}

func TestFreeThenReallocate(t *testing.T) {
	b, err := New(64, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	slot, _ := b.AllocatePage()
	b.FreePage(slot)

	if _, ok := b.AllocatePage(); !ok {
		t.Fatal("expected reallocation after free to succeed")
	}
}

func TestFreeUnallocatedPanics(t *testing.T) {
	b, err := New(64, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic freeing an unallocated slot")
		}
	}()
	b.FreePage(0)
}

func TestReadWriteIndependentSlots(t *testing.T) {
	b, err := New(8, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	s0, _ := b.AllocatePage()
	s1, _ := b.AllocatePage()

	w0 := b.WritePage(s0)
	copy(w0.Bytes(), []byte{1, 2, 3, 4, 5, 6, 7, 8})
	w0.Release()

	w1 := b.WritePage(s1)
	copy(w1.Bytes(), []byte{8, 7, 6, 5, 4, 3, 2, 1})
	w1.Release()

	r0 := b.ReadPage(s0)
	if r0.Bytes()[0] != 1 {
		t.Fatalf("expected frame 0 to hold 1, got %d", r0.Bytes()[0])
	}
	r0.Release()

	r1 := b.ReadPage(s1)
	if r1.Bytes()[0] != 8 {
		t.Fatalf("expected frame 1 to hold 8, got %d", r1.Bytes()[0])
	}
	r1.Release()
}

func TestMultipleReadersAllowed(t *testing.T) {
	b, err := New(8, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	slot, _ := b.AllocatePage()
	r1 := b.ReadPage(slot)
	r2 := b.ReadPage(slot)
	r1.Release()
	r2.Release()
}
