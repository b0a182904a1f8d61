// Package config holds the immutable layout constants of the storage
// engine plus a thin loader for runtime-tunable knobs.
package config

import (
	"time"

	"gopkg.in/ini.v1"
)

// Fixed physical layout. These never change at runtime: the record layout,
// the page directory math and the on-disk file format all depend on them.
const (
	PageSize     = 4096 // bytes per physical page
	Cell         = 8    // bytes per slot (one int64)
	PageCapacity = PageSize / Cell

	IndirectionColumn     = 0
	RIDColumn             = 1
	TimestampColumn       = 2
	SchemaEncodingColumn  = 3
	BaseRIDColumn         = 4
	UserColumnStart       = 5
	NumMetadataColumns    = UserColumnStart
	NoIndirection   int64 = -1
	InvalidRID      int64 = -1
)

// Runtime defaults, overridable through Tunables/LoadTunables.
const (
	DefaultBufferPoolCapacity = 1000
	DefaultMergePeriod        = time.Second
	DefaultMergePageBudget    = 15
)

// Tunables groups the knobs spec.md §6 calls "runtime" rather than
// "physical": buffer pool residency cap, merge cadence and the tail-page
// count at which an update triggers an extra merge pass.
type Tunables struct {
	BufferPoolCapacity int
	MergePeriod        time.Duration
	MergePageBudget    int
}

// DefaultTunables returns the engine's built-in defaults.
func DefaultTunables() Tunables {
	return Tunables{
		BufferPoolCapacity: DefaultBufferPoolCapacity,
		MergePeriod:        DefaultMergePeriod,
		MergePageBudget:    DefaultMergePageBudget,
	}
}

// LoadTunables reads overrides from an ini file under section "lstore".
// Missing keys keep their default value; a missing file is not an error —
// callers that don't need overrides simply don't call this.
func LoadTunables(path string) (Tunables, error) {
	t := DefaultTunables()

	f, err := ini.LooseLoad(path)
	if err != nil {
		return t, err
	}
	sec := f.Section("lstore")

	if k, err := sec.GetKey("buffer_pool_capacity"); err == nil {
		t.BufferPoolCapacity = k.MustInt(t.BufferPoolCapacity)
	}
	if k, err := sec.GetKey("merge_period"); err == nil {
		if d, err := time.ParseDuration(k.Value()); err == nil {
			t.MergePeriod = d
		}
	}
	if k, err := sec.GetKey("merge_page_budget"); err == nil {
		t.MergePageBudget = k.MustInt(t.MergePageBudget)
	}

	return t, nil
}

// RIDToSlot decomposes a RID into its (page index, slot index) pair,
// per spec.md §3's invariant.
func RIDToSlot(rid int64) (pageIdx int, slotIdx int) {
	return int(rid) / PageCapacity, int(rid) % PageCapacity
}
