package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/newsdigest/internal/model"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.GetContext(ctx, &v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

const runColumns = `id, started_at, finished_at, status, message_id,
	newsletter_subject, article_count, recipients, error, summary`

// CreateRun inserts a new run. A UUID and start time are assigned when
// missing, and the status defaults to running.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = model.RunStatusRunning
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (
			:id, :started_at, :finished_at, :status, :message_id,
			:newsletter_subject, :article_count, :recipients, :error, :summary
		)`, run)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

// FinishRun writes the final state of a run and stamps finished_at.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.Run) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	result, err := s.db.NamedExecContext(ctx, `
		UPDATE runs SET
			finished_at = :finished_at,
			status = :status,
			message_id = :message_id,
			newsletter_subject = :newsletter_subject,
			article_count = :article_count,
			recipients = :recipients,
			error = :error,
			summary = :summary
		WHERE id = :id`, run)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", run.ID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing run %s: %w", run.ID, ErrRunNotFound)
	}
	return nil
}

// GetRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (s *SQLiteStore) GetRuns(ctx context.Context, limit int) ([]model.Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var runs []model.Run
	if err := s.db.SelectContext(ctx, &runs, query); err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	return runs, nil
}

// GetRunByID returns a single run with its articles. An ID prefix is
// accepted when it is unambiguous.
func (s *SQLiteStore) GetRunByID(ctx context.Context, id string) (*model.Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrRunNotFound
	}

	var runs []model.Run
	err := s.db.SelectContext(ctx, &runs,
		"SELECT "+runColumns+" FROM runs WHERE id = ? OR substr(id, 1, ?) = ? ORDER BY started_at DESC LIMIT 2",
		id, len(id), id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting run %s: %w", id, err)
	}

	var run *model.Run
	switch {
	case len(runs) == 0:
		return nil, fmt.Errorf("getting run %s: %w", id, ErrRunNotFound)
	case runs[0].ID == id || len(runs) == 1:
		run = &runs[0]
	case runs[1].ID == id:
		run = &runs[1]
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}

	articles, err := s.GetArticles(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Articles = articles

	return run, nil
}

// SaveArticles replaces the articles stored for runID, keeping their order.
func (s *SQLiteStore) SaveArticles(ctx context.Context, runID string, articles []model.Article) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM articles WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("clearing articles for run %s: %w", runID, err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO articles (run_id, position, title, summary, link)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing article insert: %w", err)
	}
	defer stmt.Close()

	for i, a := range articles {
		if _, err := stmt.ExecContext(ctx, runID, i, a.Title, a.Summary, a.Link); err != nil {
			return fmt.Errorf("saving article %d for run %s: %w", i, runID, err)
		}
	}

	return tx.Commit()
}

// GetArticles returns the articles stored for runID in extraction order.
func (s *SQLiteStore) GetArticles(ctx context.Context, runID string) ([]model.Article, error) {
	var articles []model.Article
	err := s.db.SelectContext(ctx, &articles,
		"SELECT title, summary, link FROM articles WHERE run_id = ? ORDER BY position",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying articles for run %s: %w", runID, err)
	}
	return articles, nil
}

// IsProcessed reports whether a digest was already produced for messageID.
func (s *SQLiteStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}

	var one int
	err := s.db.GetContext(ctx, &one,
		"SELECT 1 FROM processed_messages WHERE message_id = ?", messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking message %s: %w", messageID, err)
	}
	return true, nil
}

// MarkProcessed records messageID as digested. Marking twice is a no-op.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, messageID string) error {
	if messageID == "" {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO processed_messages (message_id, processed_at)
		VALUES (?, ?)`,
		messageID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("marking message %s processed: %w", messageID, err)
	}
	return nil
}
