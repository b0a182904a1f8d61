package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/lstore-engine/internal/bufferpool"
	"github.com/zhukovaskychina/lstore-engine/internal/config"
	"github.com/zhukovaskychina/lstore-engine/internal/pagerange"
)

func TestRunConsolidatesNewestTailValuePerColumn(t *testing.T) {
	dir := t.TempDir()
	pr := pagerange.New(dir, 2, bufferpool.New(100))

	baseRID, basePage, baseSlot, err := pr.InsertBase(1, []int64{906659671, 1})
	require.NoError(t, err)

	tail1, _, _, err := pr.AppendTail(config.NoIndirection, 2, 0b10, baseRID, []int64{0, 10})
	require.NoError(t, err)
	require.NoError(t, pr.UpdateBaseIndirection(basePage, baseSlot, tail1))
	require.NoError(t, pr.UpdateBaseSchemaEncoding(basePage, baseSlot, 0b10))

	tail2, _, _, err := pr.AppendTail(tail1, 3, 0b10, baseRID, []int64{0, 20})
	require.NoError(t, err)
	require.NoError(t, pr.UpdateBaseIndirection(basePage, baseSlot, tail2))

	require.NoError(t, Run(pr, 2))

	raw, err := pr.ReadBase(basePage, baseSlot)
	require.NoError(t, err)
	require.Equal(t, int64(20), raw.Columns[1], "merge must keep the newest tail value")
	require.Equal(t, int64(906659671), raw.Columns[0], "untouched column must survive merge unchanged")
	require.Equal(t, config.NoIndirection, raw.Indirection, "merge resets indirection once consolidated")
	require.Equal(t, int64(0), raw.SchemaEncoding, "merge resets schema encoding once consolidated")
}

func TestRunIsNoOpWithNoTailRecords(t *testing.T) {
	dir := t.TempDir()
	pr := pagerange.New(dir, 2, bufferpool.New(100))
	_, _, _, err := pr.InsertBase(1, []int64{1, 2})
	require.NoError(t, err)

	require.NoError(t, Run(pr, 2))
	require.Equal(t, int64(0), pr.NumTailRecords())
}

func TestRunHandlesIndependentColumnsSeparately(t *testing.T) {
	dir := t.TempDir()
	pr := pagerange.New(dir, 2, bufferpool.New(100))

	baseRID, basePage, baseSlot, err := pr.InsertBase(1, []int64{1, 1})
	require.NoError(t, err)

	// One tail touches only column 0, a later one touches only column 1;
	// merge must not let the column-1 tail clobber column 0's value.
	tail1, _, _, err := pr.AppendTail(config.NoIndirection, 2, 0b01, baseRID, []int64{100, 0})
	require.NoError(t, err)
	require.NoError(t, pr.UpdateBaseIndirection(basePage, baseSlot, tail1))

	tail2, _, _, err := pr.AppendTail(tail1, 3, 0b10, baseRID, []int64{0, 200})
	require.NoError(t, err)
	require.NoError(t, pr.UpdateBaseIndirection(basePage, baseSlot, tail2))
	require.NoError(t, pr.UpdateBaseSchemaEncoding(basePage, baseSlot, 0b11))

	require.NoError(t, Run(pr, 2))

	raw, err := pr.ReadBase(basePage, baseSlot)
	require.NoError(t, err)
	require.Equal(t, int64(100), raw.Columns[0])
	require.Equal(t, int64(200), raw.Columns[1])
}
