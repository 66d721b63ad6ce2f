package v1

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/cce-project/relay/internal/attachment"
	"github.com/cce-project/relay/plugin/backend"
	"github.com/cce-project/relay/server/auth"
	"github.com/cce-project/relay/store"
)

const (
	chatEndpoint   = "chat"
	uploadEndpoint = "upload"
)

// Relayer forwards one request to the AI-execution backend.
type Relayer interface {
	Relay(ctx context.Context, endpoint string, payload map[string]any) *backend.Result
}

// TranscriptWriter appends transcript entries.
type TranscriptWriter interface {
	AppendTranscriptEntry(ctx context.Context, conversationID string, role store.Role, content, userID string) (*store.TranscriptEntry, error)
}

// TranscriptStatus reports how much of a chat exchange was recorded.
type TranscriptStatus string

const (
	TranscriptComplete TranscriptStatus = "complete"
	// TranscriptPartial means the user entry was written but the assistant entry was not.
	TranscriptPartial TranscriptStatus = "partial"
	// TranscriptUserOnly means the relay failed, so only the user entry exists.
	TranscriptUserOnly TranscriptStatus = "user_only"
)

// ValidationError is a rejected request. No relay is attempted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}

// IsValidationError reports whether err rejects the request input.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// UploadedFile references a file the backend already holds.
type UploadedFile struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
}

// ChatInput is a chat request, whichever entry point it arrived on.
type ChatInput struct {
	Message          string         `json:"message"`
	ConversationID   string         `json:"conversation_id"`
	UseCodeExecution *bool          `json:"use_code_execution"`
	UploadedFiles    []UploadedFile `json:"uploaded_files,omitempty"`
}

// Dispatcher runs Validate → Relay → Persist for one entry point.
// Persist selects whether chat exchanges are recorded in the transcript.
type Dispatcher struct {
	Relay                Relayer
	Transcript           TranscriptWriter
	Stager               attachment.Stager
	Persist              bool
	DefaultCodeExecution bool
}

func (d *Dispatcher) validateChat(in *ChatInput) error {
	if strings.TrimSpace(in.Message) == "" {
		return invalid("Message required")
	}
	switch err := store.ValidateConversationID(in.ConversationID); {
	case errors.Is(err, store.ErrEmptyConversation):
		return invalid("Conversation ID required")
	case errors.Is(err, store.ErrConversationTooLong):
		return invalid("Conversation ID too long")
	case err != nil:
		return invalid(err.Error())
	}
	return nil
}

func (d *Dispatcher) chatPayload(in *ChatInput) map[string]any {
	useCodeExecution := d.DefaultCodeExecution
	if in.UseCodeExecution != nil {
		useCodeExecution = *in.UseCodeExecution
	}
	payload := map[string]any{
		"message":            in.Message,
		"conversation_id":    in.ConversationID,
		"use_code_execution": useCodeExecution,
	}
	if len(in.UploadedFiles) > 0 {
		payload["uploaded_files"] = in.UploadedFiles
	}
	return payload
}

// Chat relays a message. On a persisting dispatcher the user entry is written
// before the relay and the assistant entry after a successful one; a failed
// user write aborts the request before anything is relayed.
// A caller disconnect does not cancel the exchange; the backend timeout is its only bound.
func (d *Dispatcher) Chat(ctx context.Context, principal *auth.Principal, in *ChatInput) (*backend.Result, error) {
	if err := d.validateChat(in); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)
	payload := d.chatPayload(in)
	if !d.Persist {
		return d.Relay.Relay(ctx, chatEndpoint, payload), nil
	}

	if _, err := d.Transcript.AppendTranscriptEntry(ctx, in.ConversationID, store.RoleUser, in.Message, principal.UserID); err != nil {
		slog.Error("failed to record user message", "conversation", in.ConversationID, "err", err.Error())
		return nil, errors.Wrap(err, "failed to record user message")
	}

	result := d.Relay.Relay(ctx, chatEndpoint, payload)
	if !result.Success {
		return result.With("transcript_status", TranscriptUserOnly), nil
	}
	if _, err := d.Transcript.AppendTranscriptEntry(ctx, in.ConversationID, store.RoleAssistant, result.Response, principal.UserID); err != nil {
		slog.Error("failed to record assistant message", "conversation", in.ConversationID, "err", err.Error())
		return result.
			With("transcript_status", TranscriptPartial).
			With("transcript_error", "failed to record assistant message"), nil
	}
	return result.With("transcript_status", TranscriptComplete), nil
}

// Upload validates and stages a file, then relays its location to the backend.
// The staged copy is released once the relay call returns.
func (d *Dispatcher) Upload(ctx context.Context, filename string, body io.Reader) (*backend.Result, error) {
	asset, err := attachment.Validate(filename, "")
	if err != nil {
		return nil, invalid(err.Error())
	}
	ctx = context.WithoutCancel(ctx)
	release, err := d.Stager.Stage(ctx, asset, body)
	if err != nil {
		slog.Error("failed to stage upload", "file", asset.DisplayName, "err", err.Error())
		return nil, err
	}
	defer release()

	return d.Relay.Relay(ctx, uploadEndpoint, map[string]any{
		"file_path": asset.TempPath,
		"file_name": asset.DisplayName,
	}), nil
}
