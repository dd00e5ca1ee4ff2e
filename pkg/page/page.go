// Package page implements the byte-level view over a single database page.
//
// A page is a fixed-size array of bytes; View wraps that array without
// copying it so callers can read and write typed fields in place, the same
// zero-copy pattern the teacher repo's record layer used for mmap'd record
// data.
package page

import (
	"encoding/binary"
	"errors"
)

// MinSize and MaxSize bound the legal page sizes per the storage format.
const (
	MinSize = 512
	MaxSize = 32768
)

// ErrInvalidSize is returned when a requested page size is not a power of
// two within [MinSize, MaxSize].
var ErrInvalidSize = errors.New("page: size must be a power of two in [512, 32768]")

// ValidSize reports whether size is an acceptable page size.
func ValidSize(size int) bool {
	if size < MinSize || size > MaxSize {
		return false
	}
	return size&(size-1) == 0
}

// View is a zero-copy window onto a page-sized byte buffer. It never
// allocates on access; every getter/setter reads or writes through the
// backing slice directly. Callers are responsible for holding whatever
// lock guards the backing memory (see buffer.ReadGuard / buffer.WriteGuard).
type View struct {
	data  []byte
	order binary.ByteOrder
}

// NewView wraps data (which must be exactly pageSize bytes, checked by the
// caller) as a View using the given byte order. order defaults to
// LittleEndian when nil, matching every fixed-layout structure elsewhere in
// this module.
func NewView(data []byte, order binary.ByteOrder) View {
	if order == nil {
		order = binary.LittleEndian
	}
	return View{data: data, order: order}
}

// Bytes returns the full backing slice.
func (v View) Bytes() []byte { return v.data }

// Len returns the page size in bytes.
func (v View) Len() int { return len(v.data) }

// Slice returns the sub-range [start, start+length) of the page, panicking
// if it falls outside the page the way a slice index out of range would.
func (v View) Slice(start, length int) []byte {
	return v.data[start : start+length]
}

// Zero clears the entire page to zero bytes, the state a freshly allocated
// or reused page must start from.
func (v View) Zero() {
	clear(v.data)
}

// Uint16 reads a u16 at the given byte offset.
func (v View) Uint16(offset int) uint16 {
	return v.order.Uint16(v.data[offset : offset+2])
}

// PutUint16 writes a u16 at the given byte offset.
func (v View) PutUint16(offset int, value uint16) {
	v.order.PutUint16(v.data[offset:offset+2], value)
}

// Uint32 reads a u32 at the given byte offset.
func (v View) Uint32(offset int) uint32 {
	return v.order.Uint32(v.data[offset : offset+4])
}

// PutUint32 writes a u32 at the given byte offset.
func (v View) PutUint32(offset int, value uint32) {
	v.order.PutUint32(v.data[offset:offset+4], value)
}

// Uint64 reads a u64 at the given byte offset.
func (v View) Uint64(offset int) uint64 {
	return v.order.Uint64(v.data[offset : offset+8])
}

// PutUint64 writes a u64 at the given byte offset.
func (v View) PutUint64(offset int, value uint64) {
	v.order.PutUint64(v.data[offset:offset+8], value)
}

// Diff returns the minimal [start, end) range outside which old and
// updated hold identical bytes, and changed reports whether they differ
// at all. old and updated must be the same length, matching two
// snapshots of the same page (spec.md §4.6 step 2, property
// P-DiffRoundTrip: a transaction derives the changed range itself rather
// than trusting the caller to supply it).
func Diff(old, updated []byte) (start, end int, changed bool) {
	if len(old) != len(updated) {
		panic("page: Diff: length mismatch")
	}
	for start < len(old) && old[start] == updated[start] {
		start++
	}
	if start == len(old) {
		return 0, 0, false
	}
	end = len(old)
	for end > start && old[end-1] == updated[end-1] {
		end--
	}
	return start, end, true
}
