package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/cce-project/relay/store"
	teststore "github.com/cce-project/relay/store/test"
)

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	return result
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	content, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return content.Text
}

func TestTools(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	_, err := ts.AppendTranscriptEntry(ctx, "conv_1", store.RoleUser, "hello", "42")
	require.NoError(t, err)
	_, err = ts.AppendTranscriptEntry(ctx, "conv_1", store.RoleAssistant, "hi", "42")
	require.NoError(t, err)
	_, err = ts.AppendTranscriptEntry(ctx, "conv_2", store.RoleUser, "other", "7")
	require.NoError(t, err)

	s := NewMCPService(ts, "test")

	result := callTool(t, s.listConversations, map[string]any{"limit": 1})
	require.False(t, result.IsError)
	var list []conversation
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &list))
	require.Len(t, list, 1)

	result = callTool(t, s.listConversations, nil)
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &list))
	require.Len(t, list, 2)

	result = callTool(t, s.getConversation, map[string]any{"conversation_id": "conv_1"})
	require.False(t, result.IsError)
	var entries []entry
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &entries))
	require.Len(t, entries, 2)
	require.Equal(t, "user", entries[0].Role)
	require.Equal(t, "hello", entries[0].Content)
	require.Equal(t, "assistant", entries[1].Role)

	result = callTool(t, s.getConversation, map[string]any{})
	require.True(t, result.IsError)
}
