package query_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/lstore-engine/internal/config"
	"github.com/zhukovaskychina/lstore-engine/internal/query"
	"github.com/zhukovaskychina/lstore-engine/internal/table"
)

func newTestTable(t *testing.T, numCols, keyCol int) *table.Table {
	t.Helper()
	tunables := config.Tunables{BufferPoolCapacity: 1000, MergePeriod: time.Hour, MergePageBudget: 1 << 30}
	tbl := table.New("grades", t.TempDir(), numCols, keyCol, tunables)
	t.Cleanup(func() { _ = tbl.Close() })
	return tbl
}

func TestInsertSelectRoundTrip(t *testing.T) {
	tbl := newTestTable(t, 3, 0)
	q := query.New(tbl)

	require.True(t, q.Insert([]int64{906659671, 92, 100}, nil))

	rows, ok := q.Select(906659671, 0, []int{1, 1, 1}, nil)
	require.True(t, ok)
	require.Len(t, rows, 1)
	require.Equal(t, []int64{906659671, 92, 100}, rows[0].Columns)
}

func TestInsertRejectsDuplicatePrimaryKey(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	q := query.New(tbl)

	require.True(t, q.Insert([]int64{1, 1}, nil))
	require.False(t, q.Insert([]int64{1, 2}, nil))
}

func TestSelectProjectionFiltersColumns(t *testing.T) {
	tbl := newTestTable(t, 3, 0)
	q := query.New(tbl)
	require.True(t, q.Insert([]int64{1, 10, 20}, nil))

	rows, ok := q.Select(1, 0, []int{1, 0, 1}, nil)
	require.True(t, ok)
	require.Equal(t, []int64{1, 20}, rows[0].Columns)
}

func TestUpdateThenVersionWalkReconstructsHistory(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	q := query.New(tbl)
	require.True(t, q.Insert([]int64{1, 10}, nil))

	v1 := int64(20)
	require.True(t, q.Update(1, []*int64{nil, &v1}, nil))
	v2 := int64(30)
	require.True(t, q.Update(1, []*int64{nil, &v2}, nil))

	rows, ok := q.SelectVersion(1, 0, []int{0, 1}, 0, nil)
	require.True(t, ok)
	require.Equal(t, int64(30), rows[0].Columns[0], "version 0 is the newest value")

	rows, ok = q.SelectVersion(1, 0, []int{0, 1}, -1, nil)
	require.True(t, ok)
	require.Equal(t, int64(20), rows[0].Columns[0], "version -1 skips the newest update")

	rows, ok = q.SelectVersion(1, 0, []int{0, 1}, -2, nil)
	require.True(t, ok)
	require.Equal(t, int64(10), rows[0].Columns[0], "version -2 skips both updates, back to the base value")
}

func TestUpdateChangingPrimaryKeyMovesIndexEntry(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	q := query.New(tbl)
	require.True(t, q.Insert([]int64{1, 10}, nil))

	newKey := int64(2)
	require.True(t, q.Update(1, []*int64{&newKey, nil}, nil))

	rows, ok := q.Select(1, 0, []int{1, 1}, nil)
	require.True(t, ok)
	require.Empty(t, rows, "old key must no longer resolve")

	rows, ok = q.Select(2, 0, []int{1, 1}, nil)
	require.True(t, ok)
	require.Len(t, rows, 1)
}

func TestUpdateRejectsDuplicateNewPrimaryKey(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	q := query.New(tbl)
	require.True(t, q.Insert([]int64{1, 10}, nil))
	require.True(t, q.Insert([]int64{2, 20}, nil))

	dup := int64(2)
	require.False(t, q.Update(1, []*int64{&dup, nil}, nil))
}

func TestDeleteThenSelectIsEmptyAndKeyIsReusable(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	q := query.New(tbl)
	require.True(t, q.Insert([]int64{1, 10}, nil))

	require.True(t, q.Delete(1, nil))

	rows, ok := q.Select(1, 0, []int{1, 1}, nil)
	require.True(t, ok)
	require.Empty(t, rows)

	require.True(t, q.Insert([]int64{1, 99}, nil))
	rows, ok = q.Select(1, 0, []int{1, 1}, nil)
	require.True(t, ok)
	require.Equal(t, int64(99), rows[0].Columns[1])
}

func TestDeleteUnknownKeyFails(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	q := query.New(tbl)
	require.False(t, q.Delete(42, nil))
}

func TestSumOverKeyRange(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	q := query.New(tbl)
	for k := int64(1); k <= 10; k++ {
		require.True(t, q.Insert([]int64{k, k * 10}, nil))
	}

	sum, ok := q.Sum(1, 10, 1, nil)
	require.True(t, ok)
	require.Equal(t, int64(550), sum) // 10+20+...+100
}

func TestSumAfterUpdateReflectsCurrentValues(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	q := query.New(tbl)
	require.True(t, q.Insert([]int64{1, 10}, nil))
	require.True(t, q.Insert([]int64{2, 20}, nil))

	v := int64(100)
	require.True(t, q.Update(1, []*int64{nil, &v}, nil))

	sum, ok := q.Sum(1, 2, 1, nil)
	require.True(t, ok)
	require.Equal(t, int64(120), sum)
}

func TestIncrementAddsOneToCurrentValue(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	q := query.New(tbl)
	require.True(t, q.Insert([]int64{1, 41}, nil))

	require.True(t, q.Increment(1, 1, nil))

	rows, ok := q.Select(1, 0, []int{1, 1}, nil)
	require.True(t, ok)
	require.Equal(t, int64(42), rows[0].Columns[1])
}

func TestUpdateTriggersMergeOnceBudgetExceeded(t *testing.T) {
	tunables := config.Tunables{BufferPoolCapacity: 1000, MergePeriod: time.Hour, MergePageBudget: 1}
	tbl := table.New("merge_trigger", t.TempDir(), 2, 0, tunables)
	t.Cleanup(func() { _ = tbl.Close() })
	q := query.New(tbl)

	require.True(t, q.Insert([]int64{1, 1}, nil))
	for i := 0; i < config.PageCapacity+5; i++ {
		v := int64(i)
		require.True(t, q.Update(1, []*int64{nil, &v}, nil))
	}

	require.Eventually(t, func() bool {
		rows, ok := q.Select(1, 0, []int{0, 1}, nil)
		return ok && len(rows) == 1 && rows[0].Columns[0] == int64(config.PageCapacity+4)
	}, time.Second, time.Millisecond, "merge must preserve the latest value once it runs")
}
