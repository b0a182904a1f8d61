package index

import "sync"

// Scanner is how a Manager reaches the actual page storage for linear-scan
// fallback and for create_index's rebuild-from-scratch pass. Implemented
// by the owning table.
type Scanner interface {
	// ScanBaseColumn walks every live base record, returning parallel
	// rid/value slices for column col.
	ScanBaseColumn(col int) (rids []int64, values []int64, err error)
	// ScanTailColumn walks every tail record similarly.
	ScanTailColumn(col int) (rids []int64, values []int64, err error)
}

// Manager owns one Column index per indexed column for a table, plus the
// mandatory primary-key index, per spec.md §4.4.
type Manager struct {
	mu        sync.RWMutex
	keyColumn int
	columns   map[int]*Column
	scanner   Scanner
}

// NewManager creates a Manager with the primary-key column already
// indexed, per spec.md §4.6 ("the primary-key column automatically
// indexed at construction").
func NewManager(keyColumn int, scanner Scanner) *Manager {
	m := &Manager{
		keyColumn: keyColumn,
		columns:   make(map[int]*Column),
		scanner:   scanner,
	}
	m.columns[keyColumn] = newColumn()
	return m
}

// KeyColumn is the primary-key column index.
func (m *Manager) KeyColumn() int { return m.keyColumn }

func (m *Manager) columnLocked(col int) (*Column, bool) {
	c, ok := m.columns[col]
	return c, ok
}

// Has reports whether col has a materialized index.
func (m *Manager) Has(col int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.columns[col]
	return ok
}

// CreateIndex materializes an index for col by scanning every base record
// then every tail record, per spec.md §4.4.
func (m *Manager) CreateIndex(col int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.columns[col]; ok {
		return nil
	}
	c := newColumn()

	baseRids, baseVals, err := m.scanner.ScanBaseColumn(col)
	if err != nil {
		return err
	}
	for i, rid := range baseRids {
		c.addLocked(baseVals[i], rid, BaseKind)
	}

	tailRids, tailVals, err := m.scanner.ScanTailColumn(col)
	if err != nil {
		return err
	}
	for i, rid := range tailRids {
		c.addLocked(tailVals[i], rid, TailKind)
	}

	m.columns[col] = c
	return nil
}

// DropIndex removes col's index. The primary-key column can never be
// dropped — it is mandatory per spec.md §4.6.
func (m *Manager) DropIndex(col int) {
	if col == m.keyColumn {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.columns, col)
}

// Locate returns the (base, tail) RID lists for value in col. If col has
// no materialized index, it falls back to a linear scan of the base
// pages and returns matches as base RIDs only, per spec.md §4.4.
func (m *Manager) Locate(col int, value int64) (base, tail []int64, err error) {
	m.mu.RLock()
	c, ok := m.columns[col]
	m.mu.RUnlock()
	if ok {
		base, tail = c.Locate(value)
		return base, tail, nil
	}

	rids, vals, err := m.scanner.ScanBaseColumn(col)
	if err != nil {
		return nil, nil, err
	}
	for i, v := range vals {
		if v == value {
			base = append(base, rids[i])
		}
	}
	return base, nil, nil
}

// LocateRange returns every indexed entry whose key lies in [begin, end].
// Unlike Locate, there is no scan fallback — spec.md only requires it for
// point lookups via the unindexed-select path; range sums always target
// the primary key, which is always indexed.
func (m *Manager) LocateRange(col int, begin, end int64) []RangeHit {
	m.mu.RLock()
	c, ok := m.columns[col]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return c.LocateRange(begin, end)
}

// Add records rid under value in col's index, if col is indexed.
func (m *Manager) Add(col int, value, rid int64, kind Kind) {
	m.mu.RLock()
	c, ok := m.columns[col]
	m.mu.RUnlock()
	if ok {
		c.Add(value, rid, kind)
	}
}

// Remove drops rid from col's index, if col is indexed.
func (m *Manager) Remove(col int, value, rid int64) {
	m.mu.RLock()
	c, ok := m.columns[col]
	m.mu.RUnlock()
	if ok {
		c.Remove(value, rid)
	}
}

// InsertValue is the insert-time variant: records rid under every
// indexed column's current value, per spec.md §4.4's insert_value.
func (m *Manager) InsertValue(userCols []int64, rid int64, kind Kind) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for col, c := range m.columns {
		if col < len(userCols) {
			c.Add(userCols[col], rid, kind)
		}
	}
}

// UpdateIndex is the update-time variant for a single column, per
// spec.md §4.4's update_index.
func (m *Manager) UpdateIndex(col int, key, rid int64, kind Kind) {
	m.Add(col, key, rid, kind)
}

// DeleteKey removes every RID recorded under pk in the primary-key index.
func (m *Manager) DeleteKey(pk int64) {
	m.mu.RLock()
	c := m.columns[m.keyColumn]
	m.mu.RUnlock()
	c.DeleteValue(pk)
}
