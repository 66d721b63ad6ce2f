package store

import "github.com/pkg/errors"

// Role is the speaker of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// AnonymousUserID is recorded for callers without a session identity.
const AnonymousUserID = "anonymous"

// MaxConversationIDLength matches the width of the conversation_id column.
const MaxConversationIDLength = 100

var (
	ErrInvalidRole         = errors.New("invalid transcript role")
	ErrEmptyConversation   = errors.New("conversation id is required")
	ErrConversationTooLong = errors.New("conversation id is too long")
)

// TranscriptEntry is one immutable turn of a conversation.
type TranscriptEntry struct {
	ID             int64
	UserID         string
	ConversationID string
	Role           Role
	Content        string
	CreatedTs      int64
}

// ConversationSummary is the derived grouping of the entries sharing a
// (conversation_id, user_id) pair.
type ConversationSummary struct {
	ConversationID string
	UserID         string
	StartedTs      int64
	MessageCount   int64
}

// FindTranscriptEntry filters for ListTranscriptEntries.
type FindTranscriptEntry struct {
	ConversationID string
}

// FindConversationSummary filters for ListConversationSummaries.
type FindConversationSummary struct {
	Limit int
}
