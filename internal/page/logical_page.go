package page

// Logical is a column-group of physical pages: one per metadata column
// plus one per user column, per spec.md §4.2.
type Logical struct {
	Columns []*Physical
}

// NewLogical allocates an empty logical page with numColumns physical
// pages (5 metadata + M user columns).
func NewLogical(numColumns int) *Logical {
	l := &Logical{Columns: make([]*Physical, numColumns)}
	for i := range l.Columns {
		l.Columns[i] = New()
	}
	return l
}

// NumColumns is the physical column count (5 + M).
func (l *Logical) NumColumns() int { return len(l.Columns) }

// HasCapacity reports whether the next Write will fit in every column
// (all columns within one logical page advance their cursor together).
func (l *Logical) HasCapacity() bool {
	if len(l.Columns) == 0 {
		return false
	}
	return l.Columns[0].HasCapacity()
}

// WriteRow appends one full row (len(cols) == NumColumns) at the same slot
// index across every column, returning that slot index.
func (l *Logical) WriteRow(cols []int64) (int, error) {
	if len(cols) != len(l.Columns) {
		panic("page: WriteRow column count mismatch")
	}
	if !l.HasCapacity() {
		return 0, ErrPageFull
	}
	slot := -1
	for i, v := range cols {
		idx, err := l.Columns[i].Write(v)
		if err != nil {
			return 0, err
		}
		if slot == -1 {
			slot = idx
		}
	}
	return slot, nil
}

// ReadRow returns every column's value at slot, or an error if out of
// range in the first (and therefore every) column.
func (l *Logical) ReadRow(slot int) ([]int64, error) {
	out := make([]int64, len(l.Columns))
	for i, c := range l.Columns {
		v, err := c.Read(slot)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// SetValue overwrites one column's value at slot without extending the
// column's write cursor.
func (l *Logical) SetValue(slot, col int, v int64) error {
	return l.Columns[col].Update(slot, v)
}

// ReplaceColumn swaps a single column's physical page for a new image,
// the "set" helper spec.md §4.2 requires merge to have: an already-resident
// logical page can have one column's page replaced wholesale.
func (l *Logical) ReplaceColumn(col int, p *Physical) {
	l.Columns[col] = p
}
