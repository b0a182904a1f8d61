// Package txn implements the transaction lifecycle and undo-log rollback
// of spec.md §4.9; the transaction worker lives in internal/worker. Grounded on the
// teacher's manager/transaction_manager.go Transaction struct
// (ID/State/UndoLogs, Begin/Commit/Rollback), simplified to undo-only
// bookkeeping since this engine carries no redo/WAL (Non-goals exclude
// crash-safe logging).
package txn

import (
	"sync"

	"github.com/zhukovaskychina/lstore-engine/internal/lockmgr"
	"github.com/zhukovaskychina/lstore-engine/internal/table"
	"github.com/zhukovaskychina/lstore-engine/internal/xlog"
)

// State is a transaction's lifecycle stage, per spec.md §4.9:
// building -> running -> {committed, aborted}.
type State int

const (
	Building State = iota
	Running
	Committed
	Aborted
)

// Op identifies which rollback routine an UndoEntry replays.
type Op int

const (
	OpInsert Op = iota
	OpUpdate
	OpDelete
)

// UndoEntry is one undo-log record: enough to call the right table
// rollback routine with its saved payload, per spec.md §4.9.
type UndoEntry struct {
	Table *table.Table
	Op    Op

	RID int64

	// OpUpdate payload.
	OldIndirection int64
	OldPK          *int64

	// OpDelete payload.
	OldColumns []int64
}

// QueryFunc is a query call bound to its arguments, invoked with the
// owning transaction so it can acquire locks and log undo entries under
// this transaction's ID.
type QueryFunc func(tx *Transaction) bool

type queuedQuery struct {
	fn    QueryFunc
	table *table.Table
}

// Transaction groups queries, records an undo log, and commits or aborts
// with full undo, per spec.md §4.9.
type Transaction struct {
	ID int64

	mu      sync.Mutex
	state   State
	queries []queuedQuery
	touched map[*table.Table]struct{}
	undo    []UndoEntry
}

// New creates a fresh transaction in the "building" state.
func New(id int64) *Transaction {
	return &Transaction{
		ID:      id,
		state:   Building,
		touched: make(map[*table.Table]struct{}),
	}
}

// State returns the transaction's current lifecycle stage.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// AddQuery enqueues fn, to run against tbl when Run executes this
// transaction, and records tbl in the touched-table set so its locks get
// released on commit/abort.
func (t *Transaction) AddQuery(fn QueryFunc, tbl *table.Table) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queries = append(t.queries, queuedQuery{fn: fn, table: tbl})
	t.touched[tbl] = struct{}{}
}

// LogUndo appends one undo entry; called by the query layer from inside
// each mutating query (after the base insert for Insert, before the tail
// append or RID invalidation for Update and Delete), before the next
// query runs.
func (t *Transaction) LogUndo(e UndoEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undo = append(t.undo, e)
}

// AcquireLock is a convenience wrapper the query layer uses so call sites
// don't need to reach into tbl.Locks() themselves.
func (t *Transaction) AcquireLock(tbl *table.Table, rid int64, mode lockmgr.Mode) error {
	return tbl.Locks().Acquire(t.ID, rid, mode)
}

// Run executes every queued query in insertion order. A query returning
// false triggers Abort; otherwise Commit runs once all queries succeed.
func (t *Transaction) Run() bool {
	t.mu.Lock()
	t.state = Running
	queries := make([]queuedQuery, len(t.queries))
	copy(queries, t.queries)
	t.mu.Unlock()

	for _, q := range queries {
		if !q.fn(t) {
			t.Abort()
			return false
		}
	}
	return t.Commit()
}

// Commit releases every lock this transaction holds across every touched
// table, clears the undo log, and marks the transaction committed.
func (t *Transaction) Commit() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for tbl := range t.touched {
		tbl.Locks().ReleaseAll(t.ID)
	}
	t.undo = nil
	t.state = Committed
	return true
}

// Abort replays the undo log in LIFO order, invoking each table's
// rollback routine with its saved payload, then releases every lock this
// transaction holds.
func (t *Transaction) Abort() bool {
	t.mu.Lock()
	undo := make([]UndoEntry, len(t.undo))
	copy(undo, t.undo)
	touched := make([]*table.Table, 0, len(t.touched))
	for tbl := range t.touched {
		touched = append(touched, tbl)
	}
	t.mu.Unlock()

	log := xlog.For("txn", nil)

	for i := len(undo) - 1; i >= 0; i-- {
		e := undo[i]
		var err error
		switch e.Op {
		case OpInsert:
			err = e.Table.RollbackInsert(e.RID)
		case OpUpdate:
			err = e.Table.RollbackUpdate(e.RID, e.OldIndirection, e.OldPK)
		case OpDelete:
			err = e.Table.RollbackDelete(e.RID, e.OldColumns)
		}
		if err != nil {
			log.WithField("txn_id", t.ID).WithError(err).Error("rollback step failed")
		}
	}

	t.mu.Lock()
	t.undo = nil
	t.state = Aborted
	t.mu.Unlock()

	for _, tbl := range touched {
		tbl.Locks().ReleaseAll(t.ID)
	}

	return false
}
