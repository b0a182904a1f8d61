package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/lstore-engine/internal/page"
)

func TestPoolGetPutRoundTrip(t *testing.T) {
	p := New(10)
	lp := page.NewLogical(6)
	evicted, didEvict := p.Put(0, lp, Base)
	require.False(t, didEvict)
	require.Nil(t, evicted)

	got, ok := p.Get(0, Base)
	require.True(t, ok)
	require.Same(t, lp, got)
}

func TestPoolEvictsGloballyLeastRecentlyUsed(t *testing.T) {
	p := New(2)

	lp0 := page.NewLogical(6)
	lp1 := page.NewLogical(6)
	lp2 := page.NewLogical(6)

	_, _ = p.Put(0, lp0, Base)
	_, _ = p.Put(1, lp1, Base)
	require.Equal(t, 2, p.Len())

	// Touch page 0 so it becomes most-recently-used, leaving page 1 as the
	// eviction candidate.
	_, _ = p.Get(0, Base)

	evicted, didEvict := p.Put(2, lp2, Base)
	require.True(t, didEvict)
	require.Equal(t, 1, evicted.Index)
	require.Equal(t, Base, evicted.Kind)

	require.True(t, p.Has(0, Base))
	require.False(t, p.Has(1, Base))
	require.True(t, p.Has(2, Base))
}

func TestPoolEvictsTrueLRUEvenWhenItsChainIsShorter(t *testing.T) {
	p := New(3)

	// Tail page 0 is put first, so it starts out the oldest entry overall.
	_, _ = p.Put(0, page.NewLogical(6), Tail)
	_, _ = p.Put(0, page.NewLogical(6), Base)
	_, _ = p.Put(1, page.NewLogical(6), Base)
	require.Equal(t, 3, p.Len())

	// Touch both base pages so the tail page becomes the least-recently-used
	// entry overall, even though the base chain (length 2) is longer than
	// the tail chain (length 1).
	_, _ = p.Get(0, Base)
	_, _ = p.Get(1, Base)

	evicted, didEvict := p.Put(2, page.NewLogical(6), Base)
	require.True(t, didEvict)
	require.Equal(t, Tail, evicted.Kind, "must evict the globally-oldest tail page, not a base page, just because the base chain is longer")
	require.Equal(t, 0, evicted.Index)
}

func TestPoolCapacityIsSharedAcrossKinds(t *testing.T) {
	p := New(1)
	_, _ = p.Put(0, page.NewLogical(6), Base)
	evicted, didEvict := p.Put(0, page.NewLogical(6), Tail)
	require.True(t, didEvict)
	require.Equal(t, Base, evicted.Kind)
	require.Equal(t, 1, p.Len())
}

func TestPoolRemoveDropsWithoutEviction(t *testing.T) {
	p := New(5)
	_, _ = p.Put(0, page.NewLogical(6), Base)
	p.Remove(0, Base)
	require.False(t, p.Has(0, Base))
	require.Equal(t, 0, p.Len())
}
