package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"
)

// Entry is one fingerprinted document.
type Entry struct {
	Index      int
	Hash       string
	Characters int
	Identifier string
	Duplicate  bool
}

// Index remembers the first document seen for each fingerprint.
type Index interface {
	// Add records e and reports whether its hash was already present.
	Add(ctx context.Context, e Entry) (bool, error)
	// NonUnique returns every entry whose hash occurs more than once,
	// ordered by characters, hash and index. Only indexes built with
	// tracking enabled keep the entries needed for this.
	NonUnique(ctx context.Context) ([]Entry, error)
	Close() error
}

// MemoryIndex keeps fingerprints in a map.
type MemoryIndex struct {
	first   map[string]int
	track   bool
	entries []Entry
}

func NewMemoryIndex(track bool) *MemoryIndex {
	return &MemoryIndex{first: map[string]int{}, track: track}
}

func (m *MemoryIndex) Add(_ context.Context, e Entry) (bool, error) {
	_, dup := m.first[e.Hash]
	if !dup {
		m.first[e.Hash] = e.Index
	}
	if m.track {
		e.Duplicate = dup
		m.entries = append(m.entries, e)
	}
	return dup, nil
}

func (m *MemoryIndex) NonUnique(_ context.Context) ([]Entry, error) {
	counts := map[string]int{}
	for _, e := range m.entries {
		counts[e.Hash]++
	}
	var out []Entry
	for _, e := range m.entries {
		if counts[e.Hash] > 1 {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

func (m *MemoryIndex) Close() error { return nil }

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Characters != b.Characters {
			return a.Characters < b.Characters
		}
		if a.Hash != b.Hash {
			return a.Hash < b.Hash
		}
		return a.Index < b.Index
	})
}

const indexSchema = `
CREATE TABLE IF NOT EXISTS fingerprints (
    hash TEXT PRIMARY KEY,
    first_idx INTEGER NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS members (
    idx INTEGER PRIMARY KEY,
    hash TEXT NOT NULL,
    characters INTEGER NOT NULL,
    identifier TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_members_hash ON members(hash);
`

// batchSize bounds the number of inserts per transaction.
const batchSize = 50000

// SQLiteIndex keeps fingerprints in an on-disk sqlite database, for
// datasets whose fingerprint set does not fit in memory.
type SQLiteIndex struct {
	db      *sql.DB
	tx      *sql.Tx
	insFP   *sql.Stmt
	insMem  *sql.Stmt
	pending int
	track   bool
}

// NewSQLiteIndex creates (or truncates) an index database at path.
func NewSQLiteIndex(path string, track bool) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = OFF",
		"PRAGMA synchronous = OFF",
		indexSchema,
		"DELETE FROM fingerprints",
		"DELETE FROM members",
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize index database: %w", err)
		}
	}
	return &SQLiteIndex{db: db, track: track}, nil
}

func (s *SQLiteIndex) begin(ctx context.Context) error {
	if s.tx != nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	insFP, err := tx.PrepareContext(ctx, "INSERT INTO fingerprints (hash, first_idx) VALUES (?, ?) ON CONFLICT(hash) DO NOTHING")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	insMem, err := tx.PrepareContext(ctx, "INSERT INTO members (idx, hash, characters, identifier) VALUES (?, ?, ?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	s.tx, s.insFP, s.insMem = tx, insFP, insMem
	return nil
}

func (s *SQLiteIndex) flush() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx, s.insFP, s.insMem, s.pending = nil, nil, nil, 0
	if err != nil {
		return fmt.Errorf("failed to commit fingerprints: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Add(ctx context.Context, e Entry) (bool, error) {
	if err := s.begin(ctx); err != nil {
		return false, err
	}
	res, err := s.insFP.ExecContext(ctx, e.Hash, e.Index)
	if err != nil {
		return false, fmt.Errorf("failed to insert fingerprint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert fingerprint: %w", err)
	}
	if s.track {
		if _, err := s.insMem.ExecContext(ctx, e.Index, e.Hash, e.Characters, e.Identifier); err != nil {
			return false, fmt.Errorf("failed to insert member: %w", err)
		}
	}
	s.pending++
	if s.pending >= batchSize {
		if err := s.flush(); err != nil {
			return false, err
		}
	}
	return n == 0, nil
}

func (s *SQLiteIndex) NonUnique(ctx context.Context) ([]Entry, error) {
	if err := s.flush(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.idx, m.hash, m.characters, m.identifier, m.idx != f.first_idx
		FROM members m
		JOIN (SELECT hash FROM members GROUP BY hash HAVING COUNT(*) > 1) d ON d.hash = m.hash
		JOIN fingerprints f ON f.hash = m.hash
		ORDER BY m.characters, m.hash, m.idx`)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicates: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Index, &e.Hash, &e.Characters, &e.Identifier, &e.Duplicate); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Close() error {
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	return s.db.Close()
}
