// Package store persists snapshot trees in SQLite.
//
// One database holds one tree. Save replaces whatever was stored before.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/grove/internal/snapshot"
)

const schema = `
CREATE TABLE IF NOT EXISTS instances (
	id TEXT PRIMARY KEY,
	parent_id TEXT,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	class_name TEXT NOT NULL,
	instigating_source TEXT,
	declared INTEGER NOT NULL DEFAULT 0,
	ignore_unknown INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_instances_parent ON instances(parent_id, position);

CREATE TABLE IF NOT EXISTS properties (
	instance_id TEXT NOT NULL,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	value JSON NOT NULL,
	PRIMARY KEY (instance_id, name)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS relevant_paths (
	path TEXT NOT NULL,
	instance_id TEXT NOT NULL,
	PRIMARY KEY (path, instance_id)
) WITHOUT ROWID;
CREATE INDEX IF NOT EXISTS idx_relevant_instance ON relevant_paths(instance_id);
`

// ErrEmpty is returned by Load when no tree has been saved.
var ErrEmpty = errors.New("store holds no snapshot")

// Store is a SQLite database holding one snapshot tree.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

type writer struct {
	inst, prop, path *sql.Stmt
	count            int
}

// Save replaces the stored tree with root and returns the id assigned to
// the root instance.
func (s *Store) Save(root *snapshot.InstanceSnapshot) (string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"instances", "properties", "relevant_paths"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return "", fmt.Errorf("clear %s: %w", table, err)
		}
	}

	var w writer
	if w.inst, err = tx.Prepare(`
		INSERT INTO instances (id, parent_id, position, name, class_name, instigating_source, declared, ignore_unknown)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`); err != nil {
		return "", err
	}
	defer func() { _ = w.inst.Close() }()
	if w.prop, err = tx.Prepare(`INSERT INTO properties (instance_id, name, type, value) VALUES (?, ?, ?, ?)`); err != nil {
		return "", err
	}
	defer func() { _ = w.prop.Close() }()
	if w.path, err = tx.Prepare(`INSERT OR IGNORE INTO relevant_paths (path, instance_id) VALUES (?, ?)`); err != nil {
		return "", err
	}
	defer func() { _ = w.path.Close() }()

	id, err := w.write(root, nil, 0)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	slog.Debug("snapshot saved", "root", root.Name, "instances", w.count)
	return id, nil
}

func (w *writer) write(n *snapshot.InstanceSnapshot, parentID *string, position int) (string, error) {
	id := uuid.NewString()

	var source *string
	if n.Metadata.InstigatingSource != "" {
		source = &n.Metadata.InstigatingSource
	}
	if _, err := w.inst.Exec(id, parentID, position, n.Name, n.ClassName, source, n.Metadata.Declared, n.Metadata.IgnoreUnknownInstances); err != nil {
		return "", fmt.Errorf("insert instance %s: %w", n.Name, err)
	}
	w.count++

	for name, v := range n.Properties {
		data, err := encodeValue(v)
		if err != nil {
			return "", fmt.Errorf("instance %s property %s: %w", n.Name, name, err)
		}
		if _, err := w.prop.Exec(id, name, string(v.Type()), data); err != nil {
			return "", fmt.Errorf("insert property %s.%s: %w", n.Name, name, err)
		}
	}
	for _, p := range n.Metadata.RelevantPaths {
		if _, err := w.path.Exec(p, id); err != nil {
			return "", fmt.Errorf("insert relevant path %s: %w", p, err)
		}
	}

	for i := range n.Children {
		if _, err := w.write(&n.Children[i], &id, i); err != nil {
			return "", err
		}
	}
	return id, nil
}

type row struct {
	id       string
	parent   sql.NullString
	snapshot snapshot.InstanceSnapshot
}

// Load rebuilds the stored tree. Instance contexts are not persisted, so
// the loaded metadata has a nil Context.
func (s *Store) Load() (*snapshot.InstanceSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT id, parent_id, name, class_name, instigating_source, declared, ignore_unknown
		FROM instances ORDER BY parent_id, position`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var (
		byID     = map[string]*row{}
		children = map[string][]*row{}
		root     *row
	)
	for rows.Next() {
		var (
			r        row
			source   sql.NullString
			declared bool
			ignore   bool
			name     string
			class    string
		)
		if err := rows.Scan(&r.id, &r.parent, &name, &class, &source, &declared, &ignore); err != nil {
			return nil, err
		}
		r.snapshot = snapshot.New(name, class).WithMetadata(snapshot.NewMetadata().
			WithInstigatingSource(source.String).
			WithDeclared(declared).
			WithIgnoreUnknownInstances(ignore))
		byID[r.id] = &r
		if !r.parent.Valid {
			root = &r
		} else {
			children[r.parent.String] = append(children[r.parent.String], &r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if root == nil {
		return nil, ErrEmpty
	}

	if err := s.loadProperties(byID); err != nil {
		return nil, err
	}
	if err := s.loadPaths(byID); err != nil {
		return nil, err
	}

	tree := assemble(root, children)
	return &tree, nil
}

func assemble(r *row, children map[string][]*row) snapshot.InstanceSnapshot {
	if len(children[r.id]) == 0 {
		return r.snapshot
	}
	kids := make([]snapshot.InstanceSnapshot, 0, len(children[r.id]))
	for _, c := range children[r.id] {
		kids = append(kids, assemble(c, children))
	}
	return r.snapshot.WithChildren(kids)
}

func (s *Store) loadProperties(byID map[string]*row) error {
	rows, err := s.db.Query(`SELECT instance_id, name, type, value FROM properties`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, name, typ string
		var data []byte
		if err := rows.Scan(&id, &name, &typ, &data); err != nil {
			return err
		}
		r, ok := byID[id]
		if !ok {
			continue
		}
		v, err := decodeValue(snapshot.ValueType(typ), data)
		if err != nil {
			return fmt.Errorf("instance %s property %s: %w", r.snapshot.Name, name, err)
		}
		r.snapshot.Properties[name] = v
	}
	return rows.Err()
}

func (s *Store) loadPaths(byID map[string]*row) error {
	rows, err := s.db.Query(`SELECT path, instance_id FROM relevant_paths ORDER BY path`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var p, id string
		if err := rows.Scan(&p, &id); err != nil {
			return err
		}
		if r, ok := byID[id]; ok {
			r.snapshot.Metadata = r.snapshot.Metadata.WithRelevantPaths(p)
		}
	}
	return rows.Err()
}

// Dependents returns the names of the instances whose relevant paths
// include p, sorted.
func (s *Store) Dependents(p string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT i.name FROM relevant_paths r
		JOIN instances i ON i.id = r.instance_id
		WHERE r.path = ?
		ORDER BY i.name`, p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
