// Package query implements the row-level operations of spec.md §4.7:
// insert, select/select_version, update, delete, sum/sum_version and
// increment. Each method takes an optional *txn.Transaction — nil means
// autocommit, a single operation with no lock acquisition and no undo
// logging, since there is nothing to roll back to.
//
// Grounded on the teacher's manager/page_tx.go combination of page
// access, lock acquisition and undo bookkeeping behind one call path;
// sum accumulation uses shopspring/decimal rather than a running int64,
// following the same overflow-safety discipline the teacher's
// manager/compute_stats.go aggregation applies to large scans.
package query

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zhukovaskychina/lstore-engine/internal/config"
	"github.com/zhukovaskychina/lstore-engine/internal/index"
	"github.com/zhukovaskychina/lstore-engine/internal/lockmgr"
	"github.com/zhukovaskychina/lstore-engine/internal/record"
	"github.com/zhukovaskychina/lstore-engine/internal/table"
	"github.com/zhukovaskychina/lstore-engine/internal/txn"
)

// Query binds the §4.7 operations to one table.
type Query struct {
	T *table.Table
}

// New returns a Query bound to t.
func New(t *table.Table) *Query {
	return &Query{T: t}
}

func readBaseRaw(t *table.Table, rid int64) (*record.Raw, error) {
	pageIdx, slotIdx := config.RIDToSlot(rid)
	return t.PageRange().ReadBase(pageIdx, slotIdx)
}

func readTailRaw(t *table.Table, rid int64) (*record.Raw, error) {
	pageIdx, slotIdx := config.RIDToSlot(rid)
	return t.PageRange().ReadTail(pageIdx, slotIdx)
}

// buildChain walks a base record's indirection chain from newest to
// oldest tail record, bounding itself by the set of RIDs already seen so
// a corrupt cycle can never loop forever.
func buildChain(t *table.Table, startIndirection int64) ([]*record.Raw, error) {
	var chain []*record.Raw
	seen := make(map[int64]bool)
	cur := startIndirection
	for cur != config.NoIndirection {
		if seen[cur] {
			break
		}
		seen[cur] = true
		tail, err := readTailRaw(t, cur)
		if err != nil {
			return nil, err
		}
		chain = append(chain, tail)
		cur = tail.Indirection
	}
	return chain, nil
}

// applyVersion reconstructs a row at the requested version, per spec.md
// §4.7's select_version: version 0 applies every tail record in the
// chain (oldest to newest); version -d skips the newest d tail records
// and applies the rest, still oldest to newest.
func applyVersion(baseCols []int64, chain []*record.Raw, version int) []int64 {
	m := len(baseCols)
	result := make([]int64, m)
	copy(result, baseCols)

	skip := 0
	if version < 0 {
		skip = -version
	}
	for i := len(chain) - 1; i >= skip; i-- {
		tail := chain[i]
		for c := 0; c < m; c++ {
			if record.SchemaBit(tail.SchemaEncoding, c) {
				result[c] = tail.Columns[c]
			}
		}
	}
	return result
}

// Insert rejects a duplicate primary key, allocates and writes the base
// row, X-locks it under tx, logs an undo entry, and indexes it — per
// spec.md §4.7's insert.
func (q *Query) Insert(cols []int64, tx *txn.Transaction) bool {
	t := q.T
	key := cols[t.KeyColumn()]

	if base, _, err := t.Index().Locate(t.KeyColumn(), key); err != nil || len(base) > 0 {
		return false
	}

	ts := time.Now().UnixNano()
	rid, pageIdx, slotIdx, err := t.PageRange().InsertBase(ts, cols)
	if err != nil {
		return false
	}

	if tx != nil {
		if err := tx.AcquireLock(t, rid, lockmgr.Exclusive); err != nil {
			_ = t.PageRange().SetBaseValue(pageIdx, slotIdx, config.RIDColumn, config.InvalidRID)
			return false
		}
		tx.LogUndo(txn.UndoEntry{Table: t, Op: txn.OpInsert, RID: rid})
	}

	t.Index().InsertValue(cols, rid, index.BaseKind)
	return true
}

// SelectVersion locates matching base RIDs by searchCol, S-locks each,
// resolves each row at version, projects it, and drops any row whose
// resolved searchCol value no longer equals key — per spec.md §4.7's
// select_version.
func (q *Query) SelectVersion(key int64, searchCol int, projection []int, version int, tx *txn.Transaction) ([]*record.Projection, bool) {
	t := q.T

	base, _, err := t.Index().Locate(searchCol, key)
	if err != nil {
		return nil, false
	}

	var out []*record.Projection
	for _, rid := range base {
		if tx != nil {
			if err := tx.AcquireLock(t, rid, lockmgr.Shared); err != nil {
				return nil, false
			}
		}

		raw, err := readBaseRaw(t, rid)
		if err != nil {
			return nil, false
		}
		if raw.RID == config.InvalidRID {
			continue
		}

		chain, err := buildChain(t, raw.Indirection)
		if err != nil {
			return nil, false
		}
		resolved := applyVersion(raw.Columns, chain, version)

		if resolved[searchCol] != key {
			continue
		}
		out = append(out, record.Project(resolved, projection))
	}
	return out, true
}

// Select is SelectVersion at version 0 — the current committed row.
func (q *Query) Select(key int64, searchCol int, projection []int, tx *txn.Transaction) ([]*record.Projection, bool) {
	return q.SelectVersion(key, searchCol, projection, 0, tx)
}

// Update locates the row by primary key, X-locks it, appends a tail
// record carrying only the columns this call actually sets (unset
// columns stored as 0), unions the new schema bits into the base's
// cumulative schema, repoints the base indirection at the new tail, and
// swaps index entries if the primary key itself changed — per spec.md
// §4.7's update.
func (q *Query) Update(key int64, cols []*int64, tx *txn.Transaction) bool {
	t := q.T
	keyCol := t.KeyColumn()

	base, _, err := t.Index().Locate(keyCol, key)
	if err != nil || len(base) != 1 {
		return false
	}
	rid := base[0]

	var newKey *int64
	if cols[keyCol] != nil && *cols[keyCol] != key {
		if dup, _, err := t.Index().Locate(keyCol, *cols[keyCol]); err != nil || len(dup) > 0 {
			return false
		}
		newKey = cols[keyCol]
	}

	if tx != nil {
		if err := tx.AcquireLock(t, rid, lockmgr.Exclusive); err != nil {
			return false
		}
	}

	raw, err := readBaseRaw(t, rid)
	if err != nil {
		return false
	}
	if raw.RID == config.InvalidRID {
		return false
	}

	m := t.NumUserColumns()
	tailCols := make([]int64, m)
	var updateSchema int64
	for c := 0; c < m; c++ {
		if cols[c] != nil {
			tailCols[c] = *cols[c]
			updateSchema = record.WithBit(updateSchema, c)
		}
	}
	if updateSchema == 0 {
		return true
	}

	if tx != nil {
		var oldPK *int64
		if newKey != nil {
			k := key
			oldPK = &k
		}
		tx.LogUndo(txn.UndoEntry{
			Table:          t,
			Op:             txn.OpUpdate,
			RID:            rid,
			OldIndirection: raw.Indirection,
			OldPK:          oldPK,
		})
	}

	ts := time.Now().UnixNano()
	tailRID, _, _, err := t.PageRange().AppendTail(raw.Indirection, ts, updateSchema, rid, tailCols)
	if err != nil {
		return false
	}

	pageIdx, slotIdx := config.RIDToSlot(rid)
	if err := t.PageRange().UpdateBaseIndirection(pageIdx, slotIdx, tailRID); err != nil {
		return false
	}
	if err := t.PageRange().UpdateBaseSchemaEncoding(pageIdx, slotIdx, raw.SchemaEncoding|updateSchema); err != nil {
		return false
	}

	if newKey != nil {
		t.Index().Remove(keyCol, key, rid)
		t.Index().Add(keyCol, *newKey, rid, index.BaseKind)
	}

	if t.PageRange().NumTailPages() >= t.Tunables().MergePageBudget {
		go func() { _ = t.Merge() }()
	}

	return true
}

// Delete locates the row, X-locks it, logs an undo entry carrying the
// fully resolved current row, invalidates the base RID column, and
// removes the primary-key index entry — per spec.md §4.7's delete. The
// tail chain itself is left untouched; see SPEC_FULL.md's discussion of
// why this can never resurrect a deleted row.
func (q *Query) Delete(key int64, tx *txn.Transaction) bool {
	t := q.T
	keyCol := t.KeyColumn()

	base, _, err := t.Index().Locate(keyCol, key)
	if err != nil || len(base) != 1 {
		return false
	}
	rid := base[0]

	if tx != nil {
		if err := tx.AcquireLock(t, rid, lockmgr.Exclusive); err != nil {
			return false
		}
	}

	raw, err := readBaseRaw(t, rid)
	if err != nil {
		return false
	}
	if raw.RID == config.InvalidRID {
		return false
	}

	chain, err := buildChain(t, raw.Indirection)
	if err != nil {
		return false
	}
	resolved := applyVersion(raw.Columns, chain, 0)

	if tx != nil {
		tx.LogUndo(txn.UndoEntry{Table: t, Op: txn.OpDelete, RID: rid, OldColumns: resolved})
	}

	pageIdx, slotIdx := config.RIDToSlot(rid)
	if err := t.PageRange().SetBaseValue(pageIdx, slotIdx, config.RIDColumn, config.InvalidRID); err != nil {
		return false
	}
	t.Index().DeleteKey(key)
	return true
}

// SumVersion accumulates column col over every live row whose primary
// key lies in [startKey, endKey], resolved at version, using
// decimal.Decimal so a long run of large values can never silently wrap
// an int64 accumulator — per spec.md §4.7's sum_version.
func (q *Query) SumVersion(startKey, endKey int64, col int, version int, tx *txn.Transaction) (int64, bool) {
	t := q.T
	hits := t.Index().LocateRange(t.KeyColumn(), startKey, endKey)

	total := decimal.Zero
	for _, hit := range hits {
		for _, rid := range hit.Base {
			if tx != nil {
				if err := tx.AcquireLock(t, rid, lockmgr.Shared); err != nil {
					return 0, false
				}
			}

			raw, err := readBaseRaw(t, rid)
			if err != nil {
				return 0, false
			}
			if raw.RID == config.InvalidRID {
				continue
			}

			chain, err := buildChain(t, raw.Indirection)
			if err != nil {
				return 0, false
			}
			resolved := applyVersion(raw.Columns, chain, version)
			total = total.Add(decimal.NewFromInt(resolved[col]))
		}
	}
	return total.IntPart(), true
}

// Sum is SumVersion at version 0 — the current committed values.
func (q *Query) Sum(startKey, endKey int64, col int, tx *txn.Transaction) (int64, bool) {
	return q.SumVersion(startKey, endKey, col, 0, tx)
}

// Increment reads the row's current value for col, adds one, and calls
// Update with every other column left unset — per spec.md §4.7's
// increment.
func (q *Query) Increment(key int64, col int, tx *txn.Transaction) bool {
	t := q.T

	base, _, err := t.Index().Locate(t.KeyColumn(), key)
	if err != nil || len(base) != 1 {
		return false
	}
	rid := base[0]

	raw, err := readBaseRaw(t, rid)
	if err != nil {
		return false
	}
	chain, err := buildChain(t, raw.Indirection)
	if err != nil {
		return false
	}
	resolved := applyVersion(raw.Columns, chain, 0)

	newVal := resolved[col] + 1
	cols := make([]*int64, t.NumUserColumns())
	cols[col] = &newVal
	return q.Update(key, cols, tx)
}
