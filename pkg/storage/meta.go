package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"acorn/pkg/page"
)

// Meta file layout (spec.md §6), a fixed 12-byte header at offset 0 of the
// "meta" file:
//
//	0-3:  magic "ACNM"
//	4:    format_version (1)
//	5:    byte_order (0 = little, 1 = big)
//	6:    page_size_exponent (log2(page_size), clamped to MaxPageSizeExponent on read)
//	7:    reserved (0)
//	8-11: segment_num_limit (u32)
const (
	MetaSize = 12

	// MagicString identifies a valid acorn meta file: ASCII "ACNM".
	MagicString = "ACNM"

	// CurrentFormatVersion is the only format_version this package writes
	// or accepts.
	CurrentFormatVersion = 1

	// MaxPageSizeExponent is log2(page.MaxSize); any larger exponent
	// decoded from a header is clamped down to this value rather than
	// rejected, matching the original Rust implementation's meta.rs
	// (see SPEC_FULL.md §3).
	MaxPageSizeExponent = 15
)

// ByteOrderTag identifies which binary.ByteOrder a meta header was written
// with.
type ByteOrderTag uint8

const (
	LittleEndian ByteOrderTag = 0
	BigEndian    ByteOrderTag = 1
)

func (t ByteOrderTag) order() binary.ByteOrder {
	if t == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Host is the byte order tag matching this package's own encoding/binary
// usage (little-endian), the default every other fixed-layout structure in
// this module also picks.
const Host = LittleEndian

var (
	ErrNotAMetaFile      = errors.New("storage: not a meta file")
	ErrUnsupportedVersion = errors.New("storage: unsupported meta format version")
	ErrByteOrderMismatch = errors.New("storage: meta byte order does not match host")
	ErrPageSizeBounds    = errors.New("storage: meta page size exponent out of bounds")
	ErrMetaCorrupted     = errors.New("storage: meta header corrupted")
)

// Meta is the decoded form of the meta file header.
type Meta struct {
	FormatVersion    uint8
	ByteOrder        ByteOrderTag
	PageSize         uint16 // 1 << PageSizeExponent, already clamped
	SegmentNumLimit  uint32
}

// Encode serializes m to a MetaSize-byte header.
func (m Meta) Encode() []byte {
	buf := make([]byte, MetaSize)
	copy(buf[0:4], MagicString)
	buf[4] = m.FormatVersion
	buf[5] = byte(m.ByteOrder)
	buf[6] = pageSizeExponent(m.PageSize)
	buf[7] = 0
	m.ByteOrder.order().PutUint32(buf[8:12], m.SegmentNumLimit)
	return buf
}

// LoadMeta decodes and validates a meta header, enforcing the load-failure
// taxonomy of spec.md §7 (NotAMetaFile / UnsupportedVersion /
// ByteOrderMismatch / PageSizeBounds / Corrupted). It only rejects a
// mismatched host byte order; it does not itself decide whether a
// mismatched byte order database should be rewritten, matching the
// original source's conservative "fail to open" behavior.
func LoadMeta(data []byte) (Meta, error) {
	if len(data) < MetaSize {
		return Meta{}, fmt.Errorf("%w: header is %d bytes, want %d", ErrMetaCorrupted, len(data), MetaSize)
	}
	if string(data[0:4]) != MagicString {
		return Meta{}, ErrNotAMetaFile
	}
	version := data[4]
	if version != CurrentFormatVersion {
		return Meta{}, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, version)
	}
	order := ByteOrderTag(data[5])
	if order != LittleEndian && order != BigEndian {
		return Meta{}, fmt.Errorf("%w: byte_order tag %d", ErrMetaCorrupted, data[5])
	}
	if order != Host {
		return Meta{}, ErrByteOrderMismatch
	}

	exponent := data[6]
	if exponent > MaxPageSizeExponent {
		exponent = MaxPageSizeExponent
	}
	pageSize := uint16(1) << exponent
	if pageSize == 0 || int(pageSize) < page.MinSize {
		return Meta{}, ErrPageSizeBounds
	}

	segmentLimit := order.order().Uint32(data[8:12])

	return Meta{
		FormatVersion:   version,
		ByteOrder:       order,
		PageSize:        pageSize,
		SegmentNumLimit: segmentLimit,
	}, nil
}

// NewMeta builds a Meta header for a freshly initialized database, using
// the host byte order.
func NewMeta(pageSize uint16, segmentNumLimit uint32) (Meta, error) {
	if pageSize == 0 || pageSize&(pageSize-1) != 0 {
		return Meta{}, ErrPageSizeBounds
	}
	return Meta{
		FormatVersion:   CurrentFormatVersion,
		ByteOrder:       Host,
		PageSize:        pageSize,
		SegmentNumLimit: segmentNumLimit,
	}, nil
}

func pageSizeExponent(pageSize uint16) byte {
	exp := byte(0)
	for size := uint16(1); size < pageSize; size <<= 1 {
		exp++
	}
	return exp
}
