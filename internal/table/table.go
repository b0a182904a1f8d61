// Package table implements spec.md §4.6: a table owns its page range, its
// index, its lock manager and its background merge thread, and hosts the
// rollback routines transactions call during abort.
//
// Grounded on the teacher's manager-of-managers composition style, e.g.
// TransactionManager owning a redoManager/undoManager pair and delegating
// to them (manager/transaction_manager.go).
package table

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/lstore-engine/internal/bufferpool"
	"github.com/zhukovaskychina/lstore-engine/internal/config"
	"github.com/zhukovaskychina/lstore-engine/internal/index"
	"github.com/zhukovaskychina/lstore-engine/internal/lockmgr"
	"github.com/zhukovaskychina/lstore-engine/internal/merge"
	"github.com/zhukovaskychina/lstore-engine/internal/pagerange"
	"github.com/zhukovaskychina/lstore-engine/internal/record"
	"github.com/zhukovaskychina/lstore-engine/internal/xlog"
)

// ErrInvariant wraps an internal inconsistency — spec.md §7 error kind 5,
// the only kind meant to propagate as a real Go error instead of a falsy
// query result.
var ErrInvariant = errors.New("table: invariant violation")

// Table is one L-Store table.
type Table struct {
	Name           string
	numUserColumns int
	keyColumn      int

	pr    *pagerange.PageRange
	idx   *index.Manager
	locks *lockmgr.Manager

	tunables config.Tunables

	mergeStop chan struct{}
	mergeDone chan struct{}
	closeOnce sync.Once
}

// New creates a table with an empty page range, index and lock manager,
// and starts its background merge goroutine, per spec.md §4.6.
func New(name, dir string, numUserColumns, keyColumn int, tunables config.Tunables) *Table {
	pool := bufferpool.New(tunables.BufferPoolCapacity)
	pr := pagerange.New(dir, numUserColumns, pool)

	t := &Table{
		Name:           name,
		numUserColumns: numUserColumns,
		keyColumn:      keyColumn,
		pr:             pr,
		locks:          lockmgr.New(),
		tunables:       tunables,
		mergeStop:      make(chan struct{}),
		mergeDone:      make(chan struct{}),
	}
	t.idx = index.NewManager(keyColumn, t)
	t.startMergeWorker()
	return t
}

// Restore rebuilds a table from persisted metadata (counters) with pages
// loaded lazily from dir on first access.
func Restore(name, dir string, numUserColumns, keyColumn int, tunables config.Tunables, numBaseRecords, numTailRecords int64) *Table {
	pool := bufferpool.New(tunables.BufferPoolCapacity)
	pr := pagerange.Restore(dir, numUserColumns, pool, numBaseRecords, numTailRecords)

	t := &Table{
		Name:           name,
		numUserColumns: numUserColumns,
		keyColumn:      keyColumn,
		pr:             pr,
		locks:          lockmgr.New(),
		tunables:       tunables,
		mergeStop:      make(chan struct{}),
		mergeDone:      make(chan struct{}),
	}
	t.idx = index.NewManager(keyColumn, t)
	rids, keys, err := t.ScanBaseColumn(keyColumn)
	if err != nil {
		xlog.For("table", nil).WithField("table", name).WithError(err).Error("failed to rebuild primary key index on restore")
	}
	for i, rid := range rids {
		t.idx.Add(keyColumn, keys[i], rid, index.BaseKind)
	}
	t.startMergeWorker()
	return t
}

// NumUserColumns is M.
func (t *Table) NumUserColumns() int { return t.numUserColumns }

// KeyColumn is the user-column index of the primary key.
func (t *Table) KeyColumn() int { return t.keyColumn }

// Index exposes the index manager for callers that need to create/drop
// secondary indexes or query column membership directly.
func (t *Table) Index() *index.Manager { return t.idx }

// Locks exposes the lock manager so query/txn layers can acquire/release
// record locks under this table's own lock table.
func (t *Table) Locks() *lockmgr.Manager { return t.locks }

// PageRange exposes the page directory for the query layer's read/write
// paths.
func (t *Table) PageRange() *pagerange.PageRange { return t.pr }

// Tunables exposes the runtime knobs this table was created with, so the
// query layer can check the merge-page budget before triggering a merge.
func (t *Table) Tunables() config.Tunables { return t.tunables }

func (t *Table) startMergeWorker() {
	go func() {
		defer close(t.mergeDone)
		ticker := time.NewTicker(t.tunables.MergePeriod)
		defer ticker.Stop()
		log := xlog.For("table", nil).WithField("table", t.Name)
		for {
			select {
			case <-ticker.C:
				if t.pr.NumTailRecords() > 0 {
					if err := t.Merge(); err != nil {
						log.WithError(err).Error("background merge failed")
					}
				}
			case <-t.mergeStop:
				return
			}
		}
	}()
}

// Merge runs one merge pass now, independent of the background ticker —
// exposed so tests and a query's "optional: trigger a merge" step (spec.md
// §4.7 update step 10) can force one synchronously.
func (t *Table) Merge() error {
	return merge.Run(t.pr, t.numUserColumns)
}

// Close stops the merge thread and flushes all resident pages, per
// spec.md §3's table lifecycle.
func (t *Table) Close() error {
	t.closeOnce.Do(func() {
		close(t.mergeStop)
	})
	<-t.mergeDone
	return t.pr.SaveToDisk()
}

// ScanBaseColumn implements index.Scanner by walking every live base
// record (RID != -1) and reporting its value in user column col.
func (t *Table) ScanBaseColumn(col int) (rids []int64, values []int64, err error) {
	n := t.pr.NumBaseRecords()
	for rid := int64(0); rid < n; rid++ {
		pageIdx, slotIdx := config.RIDToSlot(rid)
		raw, err := t.pr.ReadBase(pageIdx, slotIdx)
		if err != nil {
			return nil, nil, err
		}
		if raw.RID == config.InvalidRID {
			continue
		}
		rids = append(rids, raw.RID)
		values = append(values, raw.Columns[col])
	}
	return rids, values, nil
}

// ScanTailColumn implements index.Scanner by walking every tail record
// and reporting its value in user column col.
func (t *Table) ScanTailColumn(col int) (rids []int64, values []int64, err error) {
	n := t.pr.NumTailRecords()
	for rid := int64(0); rid < n; rid++ {
		pageIdx, slotIdx := config.RIDToSlot(rid)
		raw, err := t.pr.ReadTail(pageIdx, slotIdx)
		if err != nil {
			return nil, nil, err
		}
		rids = append(rids, raw.RID)
		values = append(values, raw.Columns[col])
	}
	return rids, values, nil
}

// baseRaw reads the base record at rid.
func (t *Table) baseRaw(rid int64) (*record.Raw, error) {
	pageIdx, slotIdx := config.RIDToSlot(rid)
	return t.pr.ReadBase(pageIdx, slotIdx)
}

func (t *Table) tailRaw(rid int64) (*record.Raw, error) {
	pageIdx, slotIdx := config.RIDToSlot(rid)
	return t.pr.ReadTail(pageIdx, slotIdx)
}
