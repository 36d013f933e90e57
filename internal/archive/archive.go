package archive

import (
	"context"
	"database/sql"
	"drivescore/internal/score"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run is the archived summary of an exported test run.
type Run struct {
	ID         int64                  `json:"id"`
	Session    string                 `json:"session"`
	Profile    string                 `json:"profile"`
	Buckets    []score.BucketSnapshot `json:"buckets"`
	Scenario   float64                `json:"scenario"`
	Micro      float64                `json:"micro"`
	Bonus      float64                `json:"bonus"`
	Final      float64                `json:"final"`
	Verdict    string                 `json:"verdict,omitempty"`
	Entries    int                    `json:"entries"`
	ExportedAt time.Time              `json:"exported_at"`
}

// RunFromSnapshot builds the archive row of a session at export time.
func RunFromSnapshot(session, profile string, s score.Snapshot, at time.Time) Run {
	return Run{
		Session:    session,
		Profile:    profile,
		Buckets:    s.Buckets,
		Scenario:   s.Scenario,
		Micro:      s.Micro,
		Bonus:      s.Bonus,
		Final:      s.Final,
		Verdict:    s.Verdict,
		Entries:    s.Entries,
		ExportedAt: at,
	}
}

// Store keeps run summaries in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates the database file and its parent directory when missing.
func Open(path string) (*Store, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve archive path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure archive dir: %w", err)
	}

	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session TEXT NOT NULL,
			profile TEXT NOT NULL,
			buckets_json TEXT NOT NULL,
			scenario REAL NOT NULL,
			micro REAL NOT NULL,
			bonus REAL NOT NULL,
			final REAL NOT NULL,
			verdict TEXT NOT NULL,
			entries INTEGER NOT NULL,
			exported_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create archive schema: %w", err)
	}
	return nil
}

// Save inserts a run and returns its row id.
func (s *Store) Save(ctx context.Context, run Run) (int64, error) {
	buckets, err := json.Marshal(run.Buckets)
	if err != nil {
		return 0, fmt.Errorf("marshal buckets: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (session, profile, buckets_json, scenario, micro, bonus, final, verdict, entries, exported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Session,
		run.Profile,
		string(buckets),
		run.Scenario,
		run.Micro,
		run.Bonus,
		run.Final,
		run.Verdict,
		run.Entries,
		run.ExportedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	return res.LastInsertId()
}

// List returns up to limit runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session, profile, buckets_json, scenario, micro, bonus, final, verdict, entries, exported_at
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run        Run
			buckets    string
			exportedAt string
		)
		if err := rows.Scan(&run.ID, &run.Session, &run.Profile, &buckets, &run.Scenario, &run.Micro,
			&run.Bonus, &run.Final, &run.Verdict, &run.Entries, &exportedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(buckets), &run.Buckets); err != nil {
			return nil, fmt.Errorf("decode buckets of run %d: %w", run.ID, err)
		}
		if run.ExportedAt, err = time.Parse(time.RFC3339Nano, exportedAt); err != nil {
			return nil, fmt.Errorf("decode time of run %d: %w", run.ID, err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
