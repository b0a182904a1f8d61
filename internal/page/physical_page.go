// Package page implements the fixed-capacity physical page: a byte buffer
// holding N fixed-width 8-byte signed integer slots, per spec.md §4.1.
package page

import (
	"encoding/binary"
	"errors"

	"github.com/zhukovaskychina/lstore-engine/internal/config"
)

// ErrPageFull is returned by Write when the page has no free slot left.
var ErrPageFull = errors.New("page: full")

// ErrSlotOutOfRange is returned by Read/Update for a slot beyond NumItems
// (Read) or beyond Capacity (Update).
var ErrSlotOutOfRange = errors.New("page: slot out of range")

// Physical is one fixed-size 4 KiB column page. It owns its own write
// cursor; reads are bounds-checked against that cursor, matching spec.md's
// "updates mutate any existing slot; reads by slot index are bounds-checked
// against num_items" rule.
type Physical struct {
	buf      [config.PageCapacity]int64
	numItems int
}

// New returns an empty physical page.
func New() *Physical {
	return &Physical{}
}

// NumItems returns the write cursor: how many of Capacity slots are live.
func (p *Physical) NumItems() int { return p.numItems }

// Capacity is the fixed slot count of every physical page.
func (p *Physical) Capacity() int { return config.PageCapacity }

// HasCapacity reports whether one more Write will fit.
func (p *Physical) HasCapacity() bool { return p.numItems < config.PageCapacity }

// Write appends one slot, returning its index, or ErrPageFull.
func (p *Physical) Write(v int64) (int, error) {
	if !p.HasCapacity() {
		return 0, ErrPageFull
	}
	idx := p.numItems
	p.buf[idx] = v
	p.numItems++
	return idx, nil
}

// Read returns the value at slot i, failing if i is beyond NumItems.
func (p *Physical) Read(i int) (int64, error) {
	if i < 0 || i >= p.numItems {
		return 0, ErrSlotOutOfRange
	}
	return p.buf[i], nil
}

// Update overwrites slot i in place. Unlike Write, it never extends
// NumItems — it is meant for RID invalidation and merge writeback into
// already-written slots. The bound checked here is the full physical
// capacity, not numItems; a slot written at or past NumItems stays
// unreadable through Read.
func (p *Physical) Update(i int, v int64) error {
	if i < 0 || i >= config.PageCapacity {
		return ErrSlotOutOfRange
	}
	p.buf[i] = v
	return nil
}

// Bytes serializes the page to its raw on-disk image: Capacity little-
// endian int64 values, PageSize bytes total, regardless of NumItems. Use
// TruncatedBytes to get the disk-truncated tail-file image.
func (p *Physical) Bytes() []byte {
	out := make([]byte, config.PageSize)
	for i := 0; i < config.PageCapacity; i++ {
		binary.LittleEndian.PutUint64(out[i*config.Cell:], uint64(p.buf[i]))
	}
	return out
}

// TruncatedBytes returns only the live prefix (NumItems*Cell bytes), the
// format tail page files are stored in per spec.md §6.
func (p *Physical) TruncatedBytes() []byte {
	out := make([]byte, p.numItems*config.Cell)
	for i := 0; i < p.numItems; i++ {
		binary.LittleEndian.PutUint64(out[i*config.Cell:], uint64(p.buf[i]))
	}
	return out
}

// Clone deep-copies the page; used by merge to build a scratch column image
// before swapping it in under the buffer pool's lock.
func (p *Physical) Clone() *Physical {
	cp := &Physical{numItems: p.numItems}
	cp.buf = p.buf
	return cp
}

// Restore rebuilds a physical page from a raw byte blob and an explicit
// logical item count, as persisted on disk.
func Restore(raw []byte, numItems int) *Physical {
	p := &Physical{numItems: numItems}
	n := len(raw) / config.Cell
	for i := 0; i < n && i < config.PageCapacity; i++ {
		p.buf[i] = int64(binary.LittleEndian.Uint64(raw[i*config.Cell:]))
	}
	return p
}
