package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate creates the transcript table and its indexes if they do not exist.
	Migrate(ctx context.Context) error

	// TranscriptEntry model related methods.
	CreateTranscriptEntry(ctx context.Context, create *TranscriptEntry) (*TranscriptEntry, error)
	ListTranscriptEntries(ctx context.Context, find *FindTranscriptEntry) ([]*TranscriptEntry, error)
	ListConversationSummaries(ctx context.Context, find *FindConversationSummary) ([]*ConversationSummary, error)
}
