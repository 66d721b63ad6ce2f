package test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cce-project/relay/store"
)

func TestTranscriptAppendAndFetch(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	user, err := ts.AppendTranscriptEntry(ctx, "conv_1", store.RoleUser, "hello", "42")
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	require.NotZero(t, user.CreatedTs)

	assistant, err := ts.AppendTranscriptEntry(ctx, "conv_1", store.RoleAssistant, "hi", "42")
	require.NoError(t, err)
	require.Greater(t, assistant.ID, user.ID)

	_, err = ts.AppendTranscriptEntry(ctx, "conv_2", store.RoleUser, "unrelated", "7")
	require.NoError(t, err)

	entries, err := ts.ListConversationEntries(ctx, "conv_1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, store.RoleUser, entries[0].Role)
	require.Equal(t, "hello", entries[0].Content)
	require.Equal(t, "42", entries[0].UserID)
	require.Equal(t, store.RoleAssistant, entries[1].Role)
	require.Equal(t, "hi", entries[1].Content)
}

func TestTranscriptAppendDefaultsAnonymous(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	entry, err := ts.AppendTranscriptEntry(ctx, "conv_anon", store.RoleSystem, "note", "")
	require.NoError(t, err)
	require.Equal(t, store.AnonymousUserID, entry.UserID)
}

func TestTranscriptAppendValidation(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	_, err := ts.AppendTranscriptEntry(ctx, "conv_1", store.Role("tool"), "x", "1")
	require.ErrorIs(t, err, store.ErrInvalidRole)

	_, err = ts.AppendTranscriptEntry(ctx, "  ", store.RoleUser, "x", "1")
	require.ErrorIs(t, err, store.ErrEmptyConversation)

	_, err = ts.AppendTranscriptEntry(ctx, strings.Repeat("c", store.MaxConversationIDLength+1), store.RoleUser, "x", "1")
	require.ErrorIs(t, err, store.ErrConversationTooLong)

	_, err = ts.ListConversationEntries(ctx, "")
	require.ErrorIs(t, err, store.ErrEmptyConversation)
}

func TestTranscriptFetchUnknownConversation(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	entries, err := ts.ListConversationEntries(ctx, "missing")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestListRecentConversations(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	for _, e := range []struct {
		conv, user string
		role       store.Role
	}{
		{"conv_a", "1", store.RoleUser},
		{"conv_a", "1", store.RoleAssistant},
		{"conv_b", "2", store.RoleUser},
		{"conv_a", store.AnonymousUserID, store.RoleUser},
		{"conv_a", "1", store.RoleUser},
	} {
		_, err := ts.AppendTranscriptEntry(ctx, e.conv, e.role, "content", e.user)
		require.NoError(t, err)
	}

	list, err := ts.ListRecentConversations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)

	counts := map[string]int64{}
	for i, c := range list {
		counts[c.ConversationID+"/"+c.UserID] = c.MessageCount
		if i > 0 {
			require.GreaterOrEqual(t, list[i-1].StartedTs, c.StartedTs)
		}
	}
	require.Equal(t, map[string]int64{
		"conv_a/1":                         3,
		"conv_b/2":                         1,
		"conv_a/" + store.AnonymousUserID: 1,
	}, counts)

	limited, err := ts.ListRecentConversations(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	require.Equal(t, list[:2], limited)
}

func TestListRecentConversationsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	for i := 0; i < 6; i++ {
		_, err := ts.AppendTranscriptEntry(ctx, fmt.Sprintf("conv_%d", i%3), store.RoleUser, "x", fmt.Sprint(i%2))
		require.NoError(t, err)
	}

	first, err := ts.ListRecentConversations(ctx, 50)
	require.NoError(t, err)
	second, err := ts.ListRecentConversations(ctx, 50)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestConcurrentAppendsToOneConversation(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	const writers = 8
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			if _, err := ts.AppendTranscriptEntry(ctx, "conv_race", store.RoleUser, fmt.Sprintf("q%d", i), "1"); err != nil {
				return err
			}
			_, err := ts.AppendTranscriptEntry(ctx, "conv_race", store.RoleAssistant, fmt.Sprintf("a%d", i), "1")
			return err
		})
	}
	require.NoError(t, g.Wait())

	entries, err := ts.ListConversationEntries(ctx, "conv_race")
	require.NoError(t, err)
	require.Len(t, entries, writers*2)

	require.True(t, sort.SliceIsSorted(entries, func(i, j int) bool {
		if entries[i].CreatedTs != entries[j].CreatedTs {
			return entries[i].CreatedTs < entries[j].CreatedTs
		}
		return entries[i].ID < entries[j].ID
	}))

	seen := map[string]bool{}
	for _, e := range entries {
		seen[e.Content] = true
	}
	for i := 0; i < writers; i++ {
		require.True(t, seen[fmt.Sprintf("q%d", i)])
		require.True(t, seen[fmt.Sprintf("a%d", i)])
	}
}
