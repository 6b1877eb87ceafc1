// Package store implements the Run Store (spec §4.4): durable per-run
// persistence with startup reconciliation, grounded on the teacher's
// daemon/db package (modernc.org/sqlite + database/sql, WAL mode, foreign
// keys, a migrate-on-open schema).
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentfleet/fleet/internal/model"
)

// historyLimit bounds the per-worker logs/activity kept on disk (spec §4.4).
const historyLimit = 100

// Store wraps the SQLite connection holding Run snapshots.
type Store struct {
	conn *sql.DB
	mu   sync.Mutex
}

// Open creates or opens a SQLite database at path, enabling WAL mode and
// foreign keys, and runs schema migrations.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id           TEXT PRIMARY KEY,
    status       TEXT NOT NULL,
    created_at   DATETIME NOT NULL,
    data_json    TEXT NOT NULL,
    updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`
	_, err := s.conn.Exec(schema)
	return err
}

// Save atomically persists run under its identifier, truncating each
// worker's logs/activity to the most recent historyLimit entries first
// (spec §4.4). It mutates a clone, never the caller's live Run.
func (s *Store) Save(run *model.Run) error {
	snapshot := run.Clone()
	snapshot.TruncateHistory(historyLimit)

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.conn.Exec(
		`INSERT INTO runs (id, status, created_at, data_json, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET status=excluded.status, data_json=excluded.data_json, updated_at=CURRENT_TIMESTAMP`,
		snapshot.ID, string(snapshot.Status), snapshot.CreatedAt, string(data),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// LoadAll reads every stored Run, applies legacy migration (§6) and
// startup reconciliation (§4.4), and returns the reconciled set. Unreadable
// records are skipped with an error-level log rather than failing the
// whole load.
func (s *Store) LoadAll() ([]*model.Run, error) {
	s.mu.Lock()
	rows, err := s.conn.Query(`SELECT id, data_json FROM runs ORDER BY created_at`)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			log.Printf("store: error scanning run row: %v", err)
			continue
		}
		run, err := decodeRun([]byte(data))
		if err != nil {
			log.Printf("store: skipping unreadable run %s: %v", id, err)
			continue
		}
		Reconcile(run)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// decodeRun parses a stored record, transparently upgrading the legacy
// "cycles" shape (§6) before unmarshaling as a model.Run.
func decodeRun(data []byte) (*model.Run, error) {
	upgraded, err := migrateLegacyCycles(data)
	if err != nil {
		return nil, err
	}
	var run model.Run
	if err := json.Unmarshal(upgraded, &run); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}
	return &run, nil
}

// StartSnapshotTicker runs a background loop that saves every run returned
// by known() every interval, matching the Run Store's periodic snapshot
// duty (spec §4.4). The returned func stops the ticker.
func (s *Store) StartSnapshotTicker(interval time.Duration, known func() []*model.Run) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, run := range known() {
					if err := s.Save(run); err != nil {
						log.Printf("store: periodic snapshot failed for run %s: %v", run.ID, err)
					}
				}
			case <-stop:
				return
			}
		}
	}()
	return func() { close(stop) }
}

// Reconcile forces a freshly loaded Run's in-flight state back to a safe
// resting state (spec §4.4): active runs pause, running workers fail,
// in-progress tasks roll back to pending.
func Reconcile(run *model.Run) {
	if run.Status == model.RunPlanning || run.Status == model.RunExecuting || run.Status == model.RunJudging {
		run.Status = model.RunPaused
	}
	now := time.Now()
	for _, w := range run.Workers {
		if w.Status == model.WorkerRunning {
			w.Status = model.WorkerFailed
			w.CompletedAt = &now
		}
	}
	for _, t := range run.Tasks {
		if t.Status == model.TaskInProgress {
			t.Status = model.TaskPending
			t.StartedAt = nil
		}
	}
}
