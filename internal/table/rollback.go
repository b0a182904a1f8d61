package table

import (
	"github.com/zhukovaskychina/lstore-engine/internal/config"
	"github.com/zhukovaskychina/lstore-engine/internal/index"
)

// RollbackInsert undoes an insert: read the base record, remove its key
// from the index, invalidate the RID slot and reset its indirection, per
// spec.md §4.9.
func (t *Table) RollbackInsert(rid int64) error {
	raw, err := t.baseRaw(rid)
	if err != nil {
		return err
	}

	key := raw.Columns[t.keyColumn]
	t.idx.DeleteKey(key)

	pageIdx, slotIdx := config.RIDToSlot(rid)
	if err := t.pr.SetBaseValue(pageIdx, slotIdx, config.RIDColumn, config.InvalidRID); err != nil {
		return err
	}
	return t.pr.UpdateBaseIndirection(pageIdx, slotIdx, config.NoIndirection)
}

// RollbackUpdate undoes an update: find the tail RID the update created
// (the base's current indirection), restore the base's indirection to
// oldIndirection, invalidate that tail slot, and if the primary key
// changed, swap the index entries back, per spec.md §4.9.
//
// Query.Update never writes a changed primary key into the base record's
// user columns — the new key lives only in the tail overlay and the
// index entry it adds. So the key to remove from the index here is the
// one recorded on the tail record being invalidated, not the base
// record's (still-old) column value.
func (t *Table) RollbackUpdate(rid int64, oldIndirection int64, oldPK *int64) error {
	raw, err := t.baseRaw(rid)
	if err != nil {
		return err
	}

	newTailRID := raw.Indirection
	var newKey int64
	if newTailRID != config.NoIndirection {
		if oldPK != nil {
			tail, err := t.tailRaw(newTailRID)
			if err != nil {
				return err
			}
			newKey = tail.Columns[t.keyColumn]
		}
		tailPageIdx, tailSlotIdx := config.RIDToSlot(newTailRID)
		if err := t.pr.SetTailValue(tailPageIdx, tailSlotIdx, config.RIDColumn, config.InvalidRID); err != nil {
			return err
		}
	}

	pageIdx, slotIdx := config.RIDToSlot(rid)
	if err := t.pr.UpdateBaseIndirection(pageIdx, slotIdx, oldIndirection); err != nil {
		return err
	}

	if oldPK != nil {
		t.idx.Remove(t.keyColumn, newKey, rid)
		t.idx.Add(t.keyColumn, *oldPK, rid, index.BaseKind)
	}

	return nil
}

// RollbackDelete undoes a delete: restore the base RID column and
// reinsert the primary-key index entry from the saved column values, per
// spec.md §4.9. Delete itself only ever removes the primary-key index
// entry (spec.md §4.7's delete step), so rollback only ever needs to
// restore that one entry — secondary indexes were never touched.
func (t *Table) RollbackDelete(rid int64, oldColumns []int64) error {
	pageIdx, slotIdx := config.RIDToSlot(rid)
	if err := t.pr.SetBaseValue(pageIdx, slotIdx, config.RIDColumn, rid); err != nil {
		return err
	}

	key := oldColumns[t.keyColumn]
	t.idx.Add(t.keyColumn, key, rid, index.BaseKind)
	return nil
}
