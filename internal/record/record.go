// Package record defines the fixed-width row shape shared by base and tail
// pages: five metadata columns followed by the table's user columns, per
// spec.md §3.
package record

import "github.com/zhukovaskychina/lstore-engine/internal/config"

// Raw is a full projection of one base or tail slot: all five metadata
// columns plus every user column, in column order 0..4+M-1.
type Raw struct {
	Indirection    int64
	RID            int64
	Timestamp      int64
	SchemaEncoding int64
	BaseRID        int64
	Columns        []int64 // user columns only, length M
}

// Cols returns the full 5+M column slice ready to hand to a page-level
// write, in physical column order.
func (r *Raw) Cols() []int64 {
	out := make([]int64, config.NumMetadataColumns+len(r.Columns))
	out[config.IndirectionColumn] = r.Indirection
	out[config.RIDColumn] = r.RID
	out[config.TimestampColumn] = r.Timestamp
	out[config.SchemaEncodingColumn] = r.SchemaEncoding
	out[config.BaseRIDColumn] = r.BaseRID
	copy(out[config.UserColumnStart:], r.Columns)
	return out
}

// FromCols builds a Raw projection from a full 5+M physical column slice.
func FromCols(cols []int64) *Raw {
	m := len(cols) - config.NumMetadataColumns
	user := make([]int64, m)
	copy(user, cols[config.UserColumnStart:])
	return &Raw{
		Indirection:    cols[config.IndirectionColumn],
		RID:            cols[config.RIDColumn],
		Timestamp:      cols[config.TimestampColumn],
		SchemaEncoding: cols[config.SchemaEncodingColumn],
		BaseRID:        cols[config.BaseRIDColumn],
		Columns:        user,
	}
}

// SchemaBit reports whether column i (0-indexed over user columns) is set
// in a schema-encoding bitmask.
func SchemaBit(schema int64, i int) bool {
	return schema&(1<<uint(i)) != 0
}

// WithBit returns schema with bit i set.
func WithBit(schema int64, i int) int64 {
	return schema | (1 << uint(i))
}

// Projection is the externally visible result of select/select_version:
// the user columns selected by a projection bitmask, in column order.
type Projection struct {
	Columns []int64
}

// Project extracts columns whose projection[i] != 0 from a full user-column
// row, in ascending column order.
func Project(row []int64, projection []int) *Projection {
	var out []int64
	for i, want := range projection {
		if want != 0 {
			out = append(out, row[i])
		}
	}
	return &Projection{Columns: out}
}
