package pagerange

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/lstore-engine/internal/bufferpool"
	"github.com/zhukovaskychina/lstore-engine/internal/config"
	"github.com/zhukovaskychina/lstore-engine/internal/page"
)

// kindDirName follows spec.md §6: each column directory holds "Base" and
// "Tail" subdirectories, each containing one file per page index.
func kindDirName(kind bufferpool.Kind) string {
	if kind == bufferpool.Base {
		return "Base"
	}
	return "Tail"
}

func (pr *PageRange) columnDir(col int) string {
	return filepath.Join(pr.dir, fmt.Sprintf("%d", col))
}

func (pr *PageRange) pageFilePath(kind bufferpool.Kind, col, pageIdx int) string {
	return filepath.Join(pr.columnDir(col), kindDirName(kind), fmt.Sprintf("%d", pageIdx))
}

// flushPage writes every column of one logical page to its per-column
// file. Base pages are always written at full PageSize; tail pages are
// truncated to their live prefix, per spec.md §6.
func (pr *PageRange) flushPage(kind bufferpool.Kind, pageIdx int, lp *page.Logical) error {
	for col, phys := range lp.Columns {
		dir := filepath.Join(pr.columnDir(col), kindDirName(kind))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "pagerange: mkdir %s", dir)
		}

		var data []byte
		if kind == bufferpool.Base {
			data = phys.Bytes()
		} else {
			data = phys.TruncatedBytes()
		}

		path := pr.pageFilePath(kind, col, pageIdx)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return errors.Wrapf(err, "pagerange: write %s", path)
		}
	}
	return nil
}

// loadFromDiskLocked reconstructs one logical page by reading every
// column's per-kind file for pageIdx. Callers must hold pr.mu.
func (pr *PageRange) loadFromDiskLocked(kind bufferpool.Kind, pageIdx int) (*page.Logical, error) {
	lp := page.NewLogical(pr.numColumns)

	numItems := pr.numItemsForPage(kind, pageIdx)

	for col := 0; col < pr.numColumns; col++ {
		path := pr.pageFilePath(kind, col, pageIdx)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				// A page that was allocated but never flushed (e.g. the
				// process crashed before its first flush) restores empty;
				// callers will simply see zero-filled, zero-length columns.
				continue
			}
			return nil, errors.Wrapf(err, "pagerange: read %s", path)
		}
		lp.Columns[col] = page.Restore(data, numItems)
	}

	return lp, nil
}

// numItemsForPage derives how many live slots a given page holds from the
// monotonic record counters, per spec.md's RID-monotonicity guarantee:
// every page before the last is full, and the last page holds the
// remainder.
func (pr *PageRange) numItemsForPage(kind bufferpool.Kind, pageIdx int) int {
	total := pr.countFor(kind)
	lastPageIdx := numPagesFor(total) - 1
	if pageIdx < lastPageIdx {
		return config.PageCapacity
	}
	if pageIdx == lastPageIdx {
		rem := int(total % config.PageCapacity)
		if rem == 0 {
			return config.PageCapacity
		}
		return rem
	}
	return 0
}

// SaveToDisk flushes every currently resident page (base and tail) to its
// on-disk file. Called on table close; spec.md's persistence model is
// checkpoint-style, not crash-safe WAL.
func (pr *PageRange) SaveToDisk() error {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	for pageIdx := 0; pageIdx < numPagesFor(pr.numBaseRecords); pageIdx++ {
		if lp, ok := pr.pool.Get(pageIdx, bufferpool.Base); ok {
			if err := pr.flushPage(bufferpool.Base, pageIdx, lp); err != nil {
				return err
			}
		}
	}
	for pageIdx := 0; pageIdx < numPagesFor(pr.numTailRecords); pageIdx++ {
		if lp, ok := pr.pool.Get(pageIdx, bufferpool.Tail); ok {
			if err := pr.flushPage(bufferpool.Tail, pageIdx, lp); err != nil {
				return err
			}
		}
	}
	return nil
}
