package storage

import (
	"testing"

	"acorn/pkg/pageid"
)

func TestMemoryInterface(t *testing.T) {
	var _ Storage = (*Memory)(nil)
}

func TestMemoryReadUnwrittenIsZero(t *testing.T) {
	m := NewMemory(512)
	buf := make([]byte, 512)
	for i := range buf {
		buf[i] = 0xAA
	}
	if err := m.ReadPage(buf, pageid.New(0, 1)); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d: expected 0, got %#x", i, b)
		}
	}
}

func TestMemoryWriteReadRoundTrip(t *testing.T) {
	m := NewMemory(8)
	id := pageid.New(0, 1)
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	if err := m.WritePage(want, id); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got := make([]byte, 8)
	if err := m.ReadPage(got, id); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: want %d, got %d", i, want[i], got[i])
		}
	}
	if m.WriteCount(id) != 1 {
		t.Fatalf("expected 1 write, got %d", m.WriteCount(id))
	}
}

func TestMemorySizeMismatch(t *testing.T) {
	m := NewMemory(8)
	if err := m.WritePage(make([]byte, 4), pageid.New(0, 1)); err == nil {
		t.Fatal("expected error for wrong-size buffer")
	}
}

func TestMemorySegmentNums(t *testing.T) {
	m := NewMemory(8)
	if err := m.WritePage(make([]byte, 8), pageid.New(3, 1)); err != nil {
		t.Fatal(err)
	}
	if err := m.WritePage(make([]byte, 8), pageid.New(7, 1)); err != nil {
		t.Fatal(err)
	}
	nums := m.SegmentNums()
	if len(nums) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(nums))
	}
}

func TestMetaRoundTrip(t *testing.T) {
	m, err := NewMeta(4096, 1000)
	if err != nil {
		t.Fatalf("NewMeta: %v", err)
	}
	data := m.Encode()

	decoded, err := LoadMeta(data)
	if err != nil {
		t.Fatalf("LoadMeta: %v", err)
	}
	if decoded.PageSize != 4096 {
		t.Errorf("expected page size 4096, got %d", decoded.PageSize)
	}
	if decoded.SegmentNumLimit != 1000 {
		t.Errorf("expected segment limit 1000, got %d", decoded.SegmentNumLimit)
	}
}

func TestMetaRejectsBadMagic(t *testing.T) {
	data := make([]byte, MetaSize)
	copy(data, "XXXX")
	if _, err := LoadMeta(data); err != ErrNotAMetaFile {
		t.Fatalf("expected ErrNotAMetaFile, got %v", err)
	}
}

func TestMetaRejectsUnsupportedVersion(t *testing.T) {
	m, _ := NewMeta(4096, 0)
	data := m.Encode()
	data[4] = 99
	if _, err := LoadMeta(data); err == nil {
		t.Fatal("expected unsupported version error")
	}
}

func TestMetaRejectsByteOrderMismatch(t *testing.T) {
	m, _ := NewMeta(4096, 0)
	data := m.Encode()
	data[5] = byte(1 - Host)
	if _, err := LoadMeta(data); err != ErrByteOrderMismatch {
		t.Fatalf("expected ErrByteOrderMismatch, got %v", err)
	}
}

func TestMetaClampsOversizedExponent(t *testing.T) {
	m, _ := NewMeta(4096, 0)
	data := m.Encode()
	data[6] = 30 // absurd exponent
	decoded, err := LoadMeta(data)
	if err != nil {
		t.Fatalf("LoadMeta: %v", err)
	}
	if decoded.PageSize != 1<<MaxPageSizeExponent {
		t.Fatalf("expected clamp to %d, got %d", 1<<MaxPageSizeExponent, decoded.PageSize)
	}
}
