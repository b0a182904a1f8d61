// Package catalog is the thin database façade spec.md §6 asks for: it
// owns a directory of tables, persists their shape and record counts to
// a root metadata.json, and hands out *table.Table handles. It carries
// none of the engine's core weight — that lives in internal/table,
// internal/query and internal/txn.
//
// Grounded on the teacher's own JSON-shaped metadata descriptors
// (manager/schema_types.go persists schema/column descriptors as JSON);
// table IDs tag log lines with github.com/google/uuid the way the
// teacher's session layer tags connections.
package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/lstore-engine/internal/config"
	"github.com/zhukovaskychina/lstore-engine/internal/table"
	"github.com/zhukovaskychina/lstore-engine/internal/xlog"
)

const metadataFile = "metadata.json"

// ErrTableExists is returned by CreateTable when name is already taken.
var ErrTableExists = errors.New("catalog: table already exists")

// ErrTableNotFound is returned by DropTable when name is unknown.
var ErrTableNotFound = errors.New("catalog: table not found")

// tableMeta is the persisted shape of one table, written into
// metadata.json so a later Open can rebuild the table without rescanning
// column directories for record counts. The table's ID is kept only in
// memory (for log tagging); it is not part of the on-disk shape spec.md
// §6 documents.
type tableMeta struct {
	ID             string `json:"-"`
	NumColumns     int    `json:"num_columns"`
	KeyIndex       int    `json:"key_index"`
	NumBaseRecords int64  `json:"num_base_records"`
	NumTailRecords int64  `json:"num_tail_records"`
}

// databaseMeta is `{ "tables": { <name>: { ... } } }`, per spec.md §6.
type databaseMeta struct {
	Tables map[string]tableMeta `json:"tables"`
}

// Database owns a directory on disk, one subdirectory per table.
type Database struct {
	dir      string
	tunables config.Tunables

	mu     sync.Mutex
	tables map[string]*table.Table
	meta   map[string]tableMeta

	nextTxnID int64
}

// Open opens (or creates) a database rooted at dir, restoring every
// table named in its metadata.json.
func Open(dir string) (*Database, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "catalog: create database dir")
	}

	d := &Database{
		dir:      dir,
		tunables: config.DefaultTunables(),
		tables:   make(map[string]*table.Table),
		meta:     make(map[string]tableMeta),
	}

	dbMeta, err := readMeta(dir)
	if err != nil {
		return nil, err
	}
	for name, tm := range dbMeta.Tables {
		d.meta[name] = tm
		d.tables[name] = table.Restore(
			name, d.tableDir(name),
			tm.NumColumns, tm.KeyIndex,
			d.tunables, tm.NumBaseRecords, tm.NumTailRecords,
		)
	}
	return d, nil
}

func (d *Database) tableDir(name string) string {
	return filepath.Join(d.dir, name)
}

func readMeta(dir string) (databaseMeta, error) {
	var m databaseMeta
	path := filepath.Join(dir, metadataFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return m, errors.Wrap(err, "catalog: read metadata.json")
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, errors.Wrap(err, "catalog: parse metadata.json")
	}
	return m, nil
}

// writeMetaLocked persists the current table set. Caller must hold d.mu.
func (d *Database) writeMetaLocked() error {
	dbMeta := databaseMeta{Tables: make(map[string]tableMeta, len(d.meta))}
	for name, tm := range d.meta {
		tm.NumBaseRecords = d.tables[name].PageRange().NumBaseRecords()
		tm.NumTailRecords = d.tables[name].PageRange().NumTailRecords()
		d.meta[name] = tm
		dbMeta.Tables[name] = tm
	}
	data, err := json.MarshalIndent(dbMeta, "", "  ")
	if err != nil {
		return errors.Wrap(err, "catalog: marshal metadata.json")
	}
	return os.WriteFile(filepath.Join(d.dir, metadataFile), data, 0o644)
}

// CreateTable creates a new table with numColumns user columns and
// primary key at keyIndex, per spec.md §6.
func (d *Database) CreateTable(name string, numColumns, keyIndex int) (*table.Table, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.tables[name]; ok {
		return nil, ErrTableExists
	}

	tm := tableMeta{
		ID:         uuid.NewString(),
		NumColumns: numColumns,
		KeyIndex:   keyIndex,
	}
	t := table.New(name, d.tableDir(name), numColumns, keyIndex, d.tunables)

	d.tables[name] = t
	d.meta[name] = tm
	if err := d.writeMetaLocked(); err != nil {
		xlog.For("catalog", nil).WithField("table", name).WithField("table_id", tm.ID).WithError(err).Error("failed to persist metadata after create")
	}
	return t, nil
}

// DropTable closes and forgets a table; its on-disk column directories
// are left in place (no destructive delete without explicit intent).
func (d *Database) DropTable(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.tables[name]
	if !ok {
		return ErrTableNotFound
	}
	if err := t.Close(); err != nil {
		return errors.Wrap(err, "catalog: close table on drop")
	}
	delete(d.tables, name)
	delete(d.meta, name)
	return d.writeMetaLocked()
}

// GetTable returns the named table, if it exists.
func (d *Database) GetTable(name string) (*table.Table, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tables[name]
	return t, ok
}

// NextTxnID returns a fresh, process-unique transaction ID — an atomic
// counter rather than global mutable state, per spec.md §9's design note
// on avoiding a shared global next-ID variable. Callers pass the result
// to txn.New to start a transaction scoped to this database.
func (d *Database) NextTxnID() int64 {
	return atomic.AddInt64(&d.nextTxnID, 1)
}

// Close flushes every table and persists final record counts.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for _, t := range d.tables {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := d.writeMetaLocked(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
