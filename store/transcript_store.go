package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DefaultRecentLimit is the number of conversations listed when no limit is given.
	DefaultRecentLimit = 50
	// MaxRecentLimit caps a single recent-conversations listing.
	MaxRecentLimit = 500
)

// AppendTranscriptEntry appends one turn to the log. Entries are never updated or deleted.
func (s *Store) AppendTranscriptEntry(ctx context.Context, conversationID string, role Role, content, userID string) (*TranscriptEntry, error) {
	if err := ValidateConversationID(conversationID); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, errors.Wrapf(ErrInvalidRole, "role %q", role)
	}
	if userID == "" {
		userID = AnonymousUserID
	}
	entry, err := s.driver.CreateTranscriptEntry(ctx, &TranscriptEntry{
		UserID:         userID,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to append transcript entry")
	}
	return entry, nil
}

// ListConversationEntries returns every entry of a conversation, oldest first.
// Entries sharing a timestamp keep their insertion order.
func (s *Store) ListConversationEntries(ctx context.Context, conversationID string) ([]*TranscriptEntry, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, ErrEmptyConversation
	}
	list, err := s.driver.ListTranscriptEntries(ctx, &FindTranscriptEntry{ConversationID: conversationID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list transcript entries")
	}
	return list, nil
}

// ListRecentConversations returns conversation summaries, most recently started first.
func (s *Store) ListRecentConversations(ctx context.Context, limit int) ([]*ConversationSummary, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	list, err := s.driver.ListConversationSummaries(ctx, &FindConversationSummary{Limit: limit})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	return list, nil
}

// ValidateConversationID checks that a client-supplied id fits the transcript column.
// Ownership is not checked: any authorized caller may append to any id it knows.
func ValidateConversationID(conversationID string) error {
	if strings.TrimSpace(conversationID) == "" {
		return ErrEmptyConversation
	}
	if len(conversationID) > MaxConversationIDLength {
		return ErrConversationTooLong
	}
	return nil
}
