package search

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"rentloop/domain"
	"rentloop/domain/event"
)

func newIndex(t *testing.T) *Index {
	t.Helper()
	index, err := NewIndex(slog.Default(), 10)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func msg(id, sender, receiver, content string) domain.Message {
	return domain.Message{ID: id, SenderID: sender, ReceiverID: receiver, Content: content, Kind: domain.KindText}
}

func TestIndex_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("finds messages by content across conversations", func(t *testing.T) {
		req := require.New(t)
		index := newIndex(t)

		req.NoError(index.Consume(ctx, event.MessageIngested{Key: "u-bob",
			Message: msg("m-1", "u-bob", "u-alice", "is the drill still available")}))
		req.NoError(index.Consume(ctx, event.MessageSent{Key: "u-bob",
			Message: msg("m-2", "u-alice", "u-bob", "yes, pick it up tomorrow")}))
		req.NoError(index.Consume(ctx, event.MessageIngested{Key: "u-carol",
			Message: msg("m-3", "u-carol", "u-alice", "thanks for the drill")}))

		hits, err := index.Search(ctx, "drill")
		req.NoError(err)
		req.Len(hits, 2)

		ids := map[string]bool{}
		for _, hit := range hits {
			ids[hit.MessageID] = true
			req.NotEmpty(hit.Content)
			req.NotEmpty(hit.SenderID)
		}
		req.True(ids["m-1"])
		req.True(ids["m-3"])
	})

	t.Run("no match returns no hits", func(t *testing.T) {
		req := require.New(t)
		index := newIndex(t)

		req.NoError(index.Consume(ctx, event.MessageIngested{Key: "u-bob",
			Message: msg("m-1", "u-bob", "u-alice", "hello there")}))

		hits, err := index.Search(ctx, "kayak")
		req.NoError(err)
		req.Empty(hits)
	})
}

func TestIndex_Reconcile(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := newIndex(t)

	pending := msg("temp-1", "u-alice", "u-bob", "kayak for the weekend")
	pending.Pending = true
	req.NoError(index.Consume(ctx, event.MessageSent{Key: "u-bob", Message: pending}))

	echo := msg("srv-1", "u-alice", "u-bob", "kayak for the weekend")
	req.NoError(index.Consume(ctx, event.MessageReconciled{Key: "u-bob", TempID: "temp-1", Message: echo}))

	hits, err := index.Search(ctx, "kayak")
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal("srv-1", hits[0].MessageID)
}

func TestIndex_IgnoresConnectionEvents(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := newIndex(t)

	req.NoError(index.Consume(ctx, event.ConnectionOpened{UserID: "u-alice"}))
	req.NoError(index.Consume(ctx, event.ConnectionClosed{UserID: "u-alice", Reason: "reset"}))

	hits, err := index.Search(ctx, "anything")
	req.NoError(err)
	req.Empty(hits)
}
