// Package taxonomy stores the SITC code tree and the labelled training
// examples the classifier shows the model as hints.
package taxonomy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/sitclass/internal/model"
)

// DefaultExampleLimit is how many training examples a prompt carries
const DefaultExampleLimit = 5

// ErrNotFound is returned by Lookup for unknown codes
var ErrNotFound = errors.New("code not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sitc_codes (
	code TEXT NOT NULL,
	clean_code TEXT NOT NULL,
	description TEXT NOT NULL,
	level INTEGER NOT NULL,
	parent_code TEXT,
	PRIMARY KEY (code, level)
);

CREATE INDEX IF NOT EXISTS idx_sitc_codes_level ON sitc_codes (level, code);
CREATE INDEX IF NOT EXISTS idx_sitc_codes_parent ON sitc_codes (parent_code);

CREATE TABLE IF NOT EXISTS training_examples (
	description TEXT NOT NULL,
	sitc_code TEXT NOT NULL,
	level INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_training_examples_level ON training_examples (level, sitc_code);
`

// Store is a SQLite-backed taxonomy. It is read-only while classifying, so
// concurrent readers need no locking.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and ensures the schema exists
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("taxonomy: set WAL mode: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("taxonomy: create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Children returns the codes at level that descend from parent, ascending by
// code. An empty parent returns every code at the level.
func (s *Store) Children(ctx context.Context, level int, parent string) ([]model.Category, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if parent != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT code, description
			FROM sitc_codes
			WHERE level = ? AND code LIKE ? || '%'
			ORDER BY code`, level, parent)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT code, description
			FROM sitc_codes
			WHERE level = ?
			ORDER BY code`, level)
	}
	if err != nil {
		return nil, fmt.Errorf("taxonomy: query children of %q: %w", parent, err)
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.Code, &c.Label); err != nil {
			return nil, fmt.Errorf("taxonomy: scan child: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Examples returns up to limit training examples at level, scoped to codes
// under parent when one is given
func (s *Store) Examples(ctx context.Context, level int, parent string, limit int) ([]model.Example, error) {
	if limit <= 0 {
		limit = DefaultExampleLimit
	}

	var (
		rows *sql.Rows
		err  error
	)
	if parent != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT t.description, t.sitc_code, s.description
			FROM training_examples t
			JOIN sitc_codes s ON t.sitc_code = s.code
			WHERE t.level = ? AND t.sitc_code LIKE ? || '%'
			LIMIT ?`, level, parent, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT t.description, t.sitc_code, s.description
			FROM training_examples t
			JOIN sitc_codes s ON t.sitc_code = s.code
			WHERE t.level = ?
			LIMIT ?`, level, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("taxonomy: query examples: %w", err)
	}
	defer rows.Close()

	var out []model.Example
	for rows.Next() {
		var ex model.Example
		if err := rows.Scan(&ex.Text, &ex.Category.Code, &ex.Category.Label); err != nil {
			return nil, fmt.Errorf("taxonomy: scan example: %w", err)
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

// ExamplesFor returns up to limit training examples classified exactly as code
func (s *Store) ExamplesFor(ctx context.Context, code string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT description
		FROM training_examples
		WHERE sitc_code = ?
		LIMIT ?`, code, limit)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: query examples for %s: %w", code, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("taxonomy: scan example: %w", err)
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

// IsTerminal reports whether no other stored code has code as a prefix
func (s *Store) IsTerminal(ctx context.Context, code string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM sitc_codes
		WHERE code LIKE ? || '%' AND code != ?`, code, code).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("taxonomy: check terminal %s: %w", code, err)
	}
	return n == 0, nil
}

// Lookup returns the stored node for code
func (s *Store) Lookup(ctx context.Context, code string) (model.Node, error) {
	var (
		n      model.Node
		parent sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT code, description, level, parent_code
		FROM sitc_codes
		WHERE code = ?
		ORDER BY level
		LIMIT 1`, code).Scan(&n.Code, &n.Label, &n.Level, &parent)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Node{}, fmt.Errorf("taxonomy: %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return model.Node{}, fmt.Errorf("taxonomy: lookup %s: %w", code, err)
	}
	n.ParentCode = parent.String
	return n, nil
}

// AddCode inserts or replaces a code; level and parent derive from its structure
func (s *Store) AddCode(ctx context.Context, code, label string) error {
	return addCode(ctx, s.db, model.NewNode(code, label))
}

// AddExample records a labelled training description
func (s *Store) AddExample(ctx context.Context, text, code string) error {
	return addExample(ctx, s.db, text, model.NormalizeCode(code))
}

// Stats returns the number of codes and training examples per level
func (s *Store) Stats(ctx context.Context) (codes map[int]int, examples map[int]int, err error) {
	codes, err = s.countByLevel(ctx, "sitc_codes")
	if err != nil {
		return nil, nil, err
	}
	examples, err = s.countByLevel(ctx, "training_examples")
	if err != nil {
		return nil, nil, err
	}
	return codes, examples, nil
}

func (s *Store) countByLevel(ctx context.Context, table string) (map[int]int, error) {
	// table is one of two compile-time constants, never user input
	rows, err := s.db.QueryContext(ctx, "SELECT level, COUNT(*) FROM "+table+" GROUP BY level")
	if err != nil {
		return nil, fmt.Errorf("taxonomy: count %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[int]int)
	for rows.Next() {
		var level, n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("taxonomy: scan count: %w", err)
		}
		out[level] = n
	}
	return out, rows.Err()
}

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func addCode(ctx context.Context, db execer, n model.Node) error {
	if n.Code == "" {
		return fmt.Errorf("taxonomy: empty code")
	}
	if n.Level < 1 || n.Level > model.MaxLevel {
		return fmt.Errorf("taxonomy: code %q has unsupported level %d", n.Code, n.Level)
	}
	var parent any
	if n.ParentCode != "" {
		parent = n.ParentCode
	}
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sitc_codes (code, clean_code, description, level, parent_code)
		VALUES (?, ?, ?, ?, ?)`, n.Code, model.CleanCode(n.Code), n.Label, n.Level, parent)
	if err != nil {
		return fmt.Errorf("taxonomy: insert %s: %w", n.Code, err)
	}
	return nil
}

func addExample(ctx context.Context, db execer, text, code string) error {
	if code == "" {
		return fmt.Errorf("taxonomy: example %q has no code", text)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO training_examples (description, sitc_code, level)
		VALUES (?, ?, ?)`, text, code, model.LevelOf(code))
	if err != nil {
		return fmt.Errorf("taxonomy: insert example for %s: %w", code, err)
	}
	return nil
}
