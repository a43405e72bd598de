package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/olea"
)

// SQLiteConfig holds configuration for the SQLite store
type SQLiteConfig struct {
	Path   string
	Logger *mdwlog.Logger

	// Memory options of the embedded record index. OnPut is set by
	// the store.
	Memory MemoryOptions
}

// DefaultSQLiteConfig returns default configuration
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{Path: "./data/iguana.db"}
}

// SQLiteStore persists records and saved searches in SQLite. Records
// are loaded into a MemoryRepository on open; queries run there and
// every change is written through.
type SQLiteStore struct {
	*MemoryRepository

	db     *sql.DB
	logger *mdwlog.Logger
	keep   int

	// writeMu serialises changes; pending only holds the records of
	// the running write
	writeMu   sync.Mutex
	pendingMu sync.Mutex
	pending   []pendingWrite
	loading   bool
}

// pendingWrite is a record changed in memory but not yet stored. prev
// is nil for a new record.
type pendingWrite struct {
	prev *model.Record
	rec  *model.Record
}

// NewSQLiteStore opens or creates the database at cfg.Path
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = mdwlog.GetDefault()
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	dsn := cfg.Path + "?_journal_mode=WAL&_synchronous=NORMAL"
	if cfg.Path == ":memory:" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, logger: cfg.Logger.WithField("component", "sqlite-store")}

	memOpts := cfg.Memory
	if memOpts.Logger == nil {
		memOpts.Logger = cfg.Logger
	}
	memOpts.OnPut = s.recordChanged
	mem, err := NewMemory(memOpts)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.MemoryRepository = mem
	s.keep = mem.options.SavedSearchKeep

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.load(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		entity TEXT NOT NULL,
		id INTEGER NOT NULL,
		doc TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (entity, id)
	);

	CREATE TABLE IF NOT EXISTS searches (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		expression TEXT NOT NULL,
		creator_id INTEGER NOT NULL,
		creator_name TEXT NOT NULL DEFAULT '',
		shared_with TEXT,
		persistent INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_searches_expression ON searches(expression);
	`
	_, err := s.db.Exec(schema)
	return err
}

// load reads every stored record into the memory index
func (s *SQLiteStore) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM records ORDER BY entity, id`)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}
	defer rows.Close()

	var records []*model.Record
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return fmt.Errorf("failed to scan record: %w", err)
		}
		var rec model.Record
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return fmt.Errorf("failed to decode record: %w", err)
		}
		rec.RestoreTimes()
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.setLoading(true)
	defer s.setLoading(false)

	if err := s.MemoryRepository.Put(records...); err != nil {
		return err
	}
	s.logger.Info("records loaded", mdwlog.Fields{"count": len(records)})
	return nil
}

func (s *SQLiteStore) recordChanged(prev, rec *model.Record) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if !s.loading {
		s.pending = append(s.pending, pendingWrite{prev: prev, rec: rec.Clone()})
	}
}

func (s *SQLiteStore) setLoading(loading bool) {
	s.pendingMu.Lock()
	s.loading = loading
	s.pendingMu.Unlock()
}

func (s *SQLiteStore) takePending() []pendingWrite {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	pending := s.pending
	s.pending = nil
	return pending
}

// write applies a change to the memory index and stores the changed
// records in one transaction. When either step fails the memory index
// is rolled back.
func (s *SQLiteStore) write(ctx context.Context, apply func() error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := apply()
	pending := s.takePending()
	if err == nil {
		err = s.store(ctx, pending)
	}
	if err != nil {
		s.rollback(pending)
		return err
	}
	return nil
}

// rollback restores the memory index to its state before pending
func (s *SQLiteStore) rollback(pending []pendingWrite) {
	if len(pending) == 0 {
		return
	}
	s.setLoading(true)
	defer s.setLoading(false)

	for i := len(pending) - 1; i >= 0; i-- {
		w := pending[i]
		if w.prev == nil {
			s.MemoryRepository.Delete(w.rec.Entity, w.rec.ID)
			continue
		}
		if err := s.MemoryRepository.Put(w.prev); err != nil {
			s.logger.Error("failed to restore record", mdwlog.Fields{"record": w.rec.Key().String(), "error": err.Error()})
		}
	}
	s.logger.Warn("record changes rolled back", mdwlog.Fields{"count": len(pending)})
}

// store writes records in one transaction
func (s *SQLiteStore) store(ctx context.Context, pending []pendingWrite) error {
	if len(pending) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mdwerror.Wrap(err, "failed to begin transaction").WithCode(mdwerror.CodeDatabaseError)
	}
	defer tx.Rollback()

	for _, w := range pending {
		doc, err := json.Marshal(w.rec)
		if err != nil {
			return mdwerror.Wrap(err, "failed to encode record").
				WithCode(mdwerror.CodeDatabaseError).
				WithDetail("record", w.rec.Key().String())
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO records (entity, id, doc, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(entity, id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at
		`, w.rec.Entity, w.rec.ID, string(doc), time.Now())
		if err != nil {
			return mdwerror.Wrap(err, "failed to store record").
				WithCode(mdwerror.CodeDatabaseError).
				WithDetail("record", w.rec.Key().String())
		}
	}
	if err := tx.Commit(); err != nil {
		return mdwerror.Wrap(err, "failed to commit records").WithCode(mdwerror.CodeDatabaseError)
	}
	return nil
}

// Put stores records in memory and in the database
func (s *SQLiteStore) Put(records ...*model.Record) error {
	return s.write(context.Background(), func() error {
		return s.MemoryRepository.Put(records...)
	})
}

// CreateIssue creates an issue and persists it
func (s *SQLiteStore) CreateIssue(ctx context.Context, project string, in *olea.Instructions, user model.UserRef) (olea.IssueRef, error) {
	return s.CreateIssueInSprint(ctx, project, 0, in, user)
}

// CreateIssueInSprint creates an issue in a sprint and persists it
func (s *SQLiteStore) CreateIssueInSprint(ctx context.Context, project string, sprint int, in *olea.Instructions, user model.UserRef) (olea.IssueRef, error) {
	var ref olea.IssueRef
	err := s.write(ctx, func() (err error) {
		ref, err = s.MemoryRepository.CreateIssueInSprint(ctx, project, sprint, in, user)
		return err
	})
	if err != nil {
		return olea.IssueRef{}, err
	}
	return ref, nil
}

// UpdateIssue updates an issue and persists it
func (s *SQLiteStore) UpdateIssue(ctx context.Context, ref olea.IssueRef, in *olea.Instructions, user model.UserRef) error {
	return s.write(ctx, func() error {
		return s.MemoryRepository.UpdateIssue(ctx, ref, in, user)
	})
}

// AddToSprint moves an issue into a sprint and persists it
func (s *SQLiteStore) AddToSprint(ctx context.Context, ref olea.IssueRef, sprint int, user model.UserRef) error {
	return s.write(ctx, func() error {
		return s.MemoryRepository.AddToSprint(ctx, ref, sprint, user)
	})
}

// LoadFixtureFile imports a fixture file and persists its records
func (s *SQLiteStore) LoadFixtureFile(path string) (int, error) {
	var n int
	err := s.write(context.Background(), func() (err error) {
		n, err = s.MemoryRepository.LoadFixtureFile(path)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// LoadFixture imports a fixture and persists its records
func (s *SQLiteStore) LoadFixture(r io.Reader, format FixtureFormat) (int, error) {
	var n int
	err := s.write(context.Background(), func() (err error) {
		n, err = s.MemoryRepository.LoadFixture(r, format)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// SaveSearchIfNew stores expression unless an identical expression is
// already saved, then prunes non persistent searches beyond the limit
func (s *SQLiteStore) SaveSearchIfNew(ctx context.Context, expression string, user model.UserRef) error {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM searches WHERE expression = ?`, expression).Scan(&count)
	if err != nil {
		return mdwerror.Wrap(err, "failed to look up saved search").WithCode(mdwerror.CodeDatabaseError)
	}
	if count > 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO searches (id, description, expression, creator_id, creator_name, persistent, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`, uuid.NewString(), AutosaveDescription, expression, user.ID, user.Username, time.Now())
	if err != nil {
		return mdwerror.Wrap(err, "failed to save search").WithCode(mdwerror.CodeDatabaseError)
	}
	return s.prune(ctx)
}

func (s *SQLiteStore) prune(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM searches
		WHERE persistent = 0 AND seq NOT IN (
			SELECT seq FROM searches WHERE persistent = 0 ORDER BY seq DESC LIMIT ?
		)
	`, s.keep)
	if err != nil {
		return mdwerror.Wrap(err, "failed to prune saved searches").WithCode(mdwerror.CodeDatabaseError)
	}
	return nil
}

// ListSearches returns the saved searches user may read, newest first
func (s *SQLiteStore) ListSearches(ctx context.Context, user model.UserRef) ([]model.SavedSearch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, expression, creator_id, creator_name, shared_with, persistent, created_at
		FROM searches ORDER BY seq DESC
	`)
	if err != nil {
		return nil, mdwerror.Wrap(err, "failed to list saved searches").WithCode(mdwerror.CodeDatabaseError)
	}
	defer rows.Close()

	var all []model.SavedSearch
	for rows.Next() {
		var ss model.SavedSearch
		var shared sql.NullString
		if err := rows.Scan(&ss.ID, &ss.Description, &ss.Expression, &ss.Creator.ID, &ss.Creator.Username,
			&shared, &ss.Persistent, &ss.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan saved search: %w", err)
		}
		if shared.Valid && shared.String != "" {
			if err := json.Unmarshal([]byte(shared.String), &ss.SharedWith); err != nil {
				return nil, fmt.Errorf("failed to decode shared projects: %w", err)
			}
		}
		all = append(all, ss)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.SavedSearch
	for _, ss := range all {
		if s.searchReadable(ss, user) {
			out = append(out, ss)
		}
	}
	return out, nil
}

// SetPersistent marks a saved search as kept or prunable
func (s *SQLiteStore) SetPersistent(ctx context.Context, id string, persistent bool, user model.UserRef) error {
	var creator int64
	err := s.db.QueryRowContext(ctx, `SELECT creator_id FROM searches WHERE id = ?`, id).Scan(&creator)
	if err == sql.ErrNoRows {
		return mdwerror.Newf("saved search %s not found", id).WithCode(mdwerror.CodeNotFound)
	}
	if err != nil {
		return mdwerror.Wrap(err, "failed to look up saved search").WithCode(mdwerror.CodeDatabaseError)
	}
	if creator != user.ID {
		return mdwerror.Newf("saved search %s belongs to another user", id).WithCode(mdwerror.CodeForbidden)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE searches SET persistent = ? WHERE id = ?`, persistent, id); err != nil {
		return mdwerror.Wrap(err, "failed to update saved search").WithCode(mdwerror.CodeDatabaseError)
	}
	if !persistent {
		return s.prune(ctx)
	}
	return nil
}

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Repository = (*SQLiteStore)(nil)
var _ Repository = (*MemoryRepository)(nil)
