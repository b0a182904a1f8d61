package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/lstore-engine/catalog"
	"github.com/zhukovaskychina/lstore-engine/internal/query"
)

func TestCreateTableThenGetTable(t *testing.T) {
	db, err := catalog.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tbl, err := db.CreateTable("students", 3, 0)
	require.NoError(t, err)
	require.NotNil(t, tbl)

	got, ok := db.GetTable("students")
	require.True(t, ok)
	require.Same(t, tbl, got)
}

func TestCreateTableRejectsDuplicateName(t *testing.T) {
	db, err := catalog.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.CreateTable("t", 2, 0)
	require.NoError(t, err)
	_, err = db.CreateTable("t", 2, 0)
	require.ErrorIs(t, err, catalog.ErrTableExists)
}

func TestDropTableThenGetTableFails(t *testing.T) {
	db, err := catalog.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.CreateTable("t", 2, 0)
	require.NoError(t, err)
	require.NoError(t, db.DropTable("t"))

	_, ok := db.GetTable("t")
	require.False(t, ok)
}

func TestDropUnknownTableFails(t *testing.T) {
	db, err := catalog.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.ErrorIs(t, db.DropTable("ghost"), catalog.ErrTableNotFound)
}

func TestDataSurvivesCloseAndReopen(t *testing.T) {
	dir := t.TempDir()

	db, err := catalog.Open(dir)
	require.NoError(t, err)
	tbl, err := db.CreateTable("students", 2, 0)
	require.NoError(t, err)

	q := query.New(tbl)
	require.True(t, q.Insert([]int64{906659671, 92}, nil))
	require.NoError(t, db.Close())

	reopened, err := catalog.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	restored, ok := reopened.GetTable("students")
	require.True(t, ok)

	q2 := query.New(restored)
	rows, ok := q2.Select(906659671, 0, []int{1, 1}, nil)
	require.True(t, ok)
	require.Len(t, rows, 1)
	require.Equal(t, []int64{906659671, 92}, rows[0].Columns)
}

func TestNextTxnIDIsUniqueAndMonotonic(t *testing.T) {
	db, err := catalog.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	a := db.NextTxnID()
	b := db.NextTxnID()
	require.NotEqual(t, a, b)
	require.Less(t, a, b)
}
