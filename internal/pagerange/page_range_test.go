package pagerange

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/lstore-engine/internal/bufferpool"
	"github.com/zhukovaskychina/lstore-engine/internal/config"
)

func TestInsertBaseAssignsMonotonicRIDs(t *testing.T) {
	dir := t.TempDir()
	pr := New(dir, 3, bufferpool.New(100))

	rid0, _, _, err := pr.InsertBase(1, []int64{906659671, 92, 0})
	require.NoError(t, err)
	rid1, _, _, err := pr.InsertBase(2, []int64{906659672, 93, 0})
	require.NoError(t, err)

	require.Equal(t, int64(0), rid0)
	require.Equal(t, int64(1), rid1)
	require.Equal(t, int64(2), pr.NumBaseRecords())
}

func TestReadBaseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pr := New(dir, 3, bufferpool.New(100))

	rid, pageIdx, slotIdx, err := pr.InsertBase(1000, []int64{906659671, 92, 0})
	require.NoError(t, err)

	raw, err := pr.ReadBase(pageIdx, slotIdx)
	require.NoError(t, err)
	require.Equal(t, rid, raw.RID)
	require.Equal(t, config.NoIndirection, raw.Indirection)
	require.Equal(t, []int64{906659671, 92, 0}, raw.Columns)
}

func TestAppendTailAndIndirectionChain(t *testing.T) {
	dir := t.TempDir()
	pr := New(dir, 2, bufferpool.New(100))

	baseRID, basePage, baseSlot, err := pr.InsertBase(1, []int64{1, 100})
	require.NoError(t, err)

	schema := int64(0b10) // column 1 updated
	tailRID, _, _, err := pr.AppendTail(config.NoIndirection, 2, schema, baseRID, []int64{0, 200})
	require.NoError(t, err)
	require.NoError(t, pr.UpdateBaseIndirection(basePage, baseSlot, tailRID))

	raw, err := pr.ReadBase(basePage, baseSlot)
	require.NoError(t, err)
	require.Equal(t, tailRID, raw.Indirection)

	tailPage, tailSlot := config.RIDToSlot(tailRID)
	tail, err := pr.ReadTail(tailPage, tailSlot)
	require.NoError(t, err)
	require.Equal(t, baseRID, tail.BaseRID)
	require.Equal(t, int64(200), tail.Columns[1])
}

func TestApplyColumnPatchesRewritesBaseColumn(t *testing.T) {
	dir := t.TempDir()
	pr := New(dir, 2, bufferpool.New(100))

	_, page0, slot0, err := pr.InsertBase(1, []int64{1, 100})
	require.NoError(t, err)

	err = pr.ApplyColumnPatches(config.UserColumnStart+1, map[int]map[int]int64{
		page0: {slot0: 999},
	})
	require.NoError(t, err)

	raw, err := pr.ReadBase(page0, slot0)
	require.NoError(t, err)
	require.Equal(t, int64(999), raw.Columns[1])
}

func TestSaveToDiskAndRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pool := bufferpool.New(100)
	pr := New(dir, 3, pool)

	_, _, _, err := pr.InsertBase(1, []int64{906659671, 92, 0})
	require.NoError(t, err)
	_, _, _, err = pr.InsertBase(2, []int64{42, 7, 0})
	require.NoError(t, err)
	require.NoError(t, pr.SaveToDisk())

	restored := Restore(dir, 3, bufferpool.New(100), pr.NumBaseRecords(), pr.NumTailRecords())
	raw, err := restored.ReadBase(config.RIDToSlot(0))
	require.NoError(t, err)
	require.Equal(t, []int64{906659671, 92, 0}, raw.Columns)
}
