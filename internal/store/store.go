package store

import (
	"context"

	"github.com/nhle/newsdigest/internal/model"
)

// Store defines the persistence interface for digest runs, the articles
// each run extracted, and the newsletters already digested.
type Store interface {
	// === Runs ===

	CreateRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, run *model.Run) error
	GetRuns(ctx context.Context, limit int) ([]model.Run, error)
	GetRunByID(ctx context.Context, id string) (*model.Run, error)

	// === Articles ===

	SaveArticles(ctx context.Context, runID string, articles []model.Article) error
	GetArticles(ctx context.Context, runID string) ([]model.Article, error)

	// === Processed newsletters ===

	IsProcessed(ctx context.Context, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, messageID string) error

	Close() error
}
