// Package mcp exposes the transcript store as read-only MCP tools.
package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"

	"github.com/cce-project/relay/store"
)

// TranscriptReader is the part of the store the tools read from.
type TranscriptReader interface {
	ListRecentConversations(ctx context.Context, limit int) ([]*store.ConversationSummary, error)
	ListConversationEntries(ctx context.Context, conversationID string) ([]*store.TranscriptEntry, error)
}

type MCPService struct {
	reader TranscriptReader
	server *server.MCPServer
}

func NewMCPService(reader TranscriptReader, version string) *MCPService {
	s := &MCPService{
		reader: reader,
		server: server.NewMCPServer("relay", version, server.WithToolCapabilities(false)),
	}
	s.server.AddTool(mcp.NewTool("list_conversations",
		mcp.WithDescription("List recent conversations, most recently started first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of conversations to return (default 50).")),
	), s.listConversations)
	s.server.AddTool(mcp.NewTool("get_conversation",
		mcp.WithDescription("Get every transcript entry of a conversation in time order."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("The conversation id.")),
	), s.getConversation)
	return s
}

// ServeStdio serves the tools over stdin and stdout until the client disconnects.
func (s *MCPService) ServeStdio() error {
	return server.ServeStdio(s.server)
}

type conversation struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	StartedTs      int64  `json:"started_ts"`
	MessageCount   int64  `json:"message_count"`
}

type entry struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedTs int64  `json:"created_ts"`
}

func (s *MCPService) listConversations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.reader.ListRecentConversations(ctx, request.GetInt("limit", store.DefaultRecentLimit))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]conversation, 0, len(list))
	for _, c := range list {
		out = append(out, conversation{
			ConversationID: c.ConversationID,
			UserID:         c.UserID,
			StartedTs:      c.StartedTs,
			MessageCount:   c.MessageCount,
		})
	}
	return textResult(out)
}

func (s *MCPService) getConversation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	list, err := s.reader.ListConversationEntries(ctx, conversationID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]entry, 0, len(list))
	for _, e := range list {
		out = append(out, entry{
			ID:        e.ID,
			UserID:    e.UserID,
			Role:      string(e.Role),
			Content:   e.Content,
			CreatedTs: e.CreatedTs,
		})
	}
	return textResult(out)
}

func textResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode tool result")
	}
	return mcp.NewToolResultText(string(data)), nil
}
