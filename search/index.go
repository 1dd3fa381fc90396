// Package search keeps an in-memory full-text index over every message the
// engine has seen this session. It is an event sink: nothing feeds it
// directly except the engine's fanout.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blugelabs/bluge"

	"rentloop/domain"
	"rentloop/domain/event"
)

// Hit is one search result.
type Hit struct {
	MessageID  string
	SenderID   string
	ReceiverID string
	Content    string
}

// Index wraps a bluge in-memory writer. Safe for concurrent use.
type Index struct {
	mu     sync.Mutex
	writer *bluge.Writer
	log    *slog.Logger
	limit  int
}

func NewIndex(log *slog.Logger, limit int) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, fmt.Errorf("opening message index: %w", err)
	}
	return &Index{writer: writer, log: log, limit: limit}, nil
}

// Consume indexes message traffic; other events are ignored. Reconciled
// echoes update the document under the temporary id's replacement, so a
// message is never indexed twice.
func (i *Index) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageIngested:
		return i.add(evt.Message)
	case event.MessageSent:
		return i.add(evt.Message)
	case event.MessageReconciled:
		if err := i.delete(evt.TempID); err != nil {
			return err
		}
		return i.add(evt.Message)
	}
	return nil
}

func (i *Index) add(m domain.Message) error {
	doc := bluge.NewDocument(m.ID).
		AddField(bluge.NewTextField("content", m.Content)).
		AddField(bluge.NewKeywordField("sender", m.SenderID).StoreValue()).
		AddField(bluge.NewKeywordField("receiver", m.ReceiverID).StoreValue()).
		AddField(bluge.NewStoredOnlyField("raw", []byte(m.Content)))

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Update(doc.ID(), doc)
}

func (i *Index) delete(messageID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Delete(bluge.Identifier(messageID))
}

// Search matches the query against message content across every
// conversation seen this session.
func (i *Index) Search(ctx context.Context, query string) ([]Hit, error) {
	i.mu.Lock()
	reader, err := i.writer.Reader()
	i.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("opening index reader: %w", err)
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil {
			i.log.Warn("Closing index reader failed", "error", cerr)
		}
	}()

	match := bluge.NewMatchQuery(query).SetField("content")
	request := bluge.NewTopNSearch(i.limit, match)

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	var hits []Hit
	for {
		next, err := iterator.Next()
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}
		if next == nil {
			break
		}

		var hit Hit
		err = next.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "sender":
				hit.SenderID = string(value)
			case "receiver":
				hit.ReceiverID = string(value)
			case "raw":
				hit.Content = string(value)
			}
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("reading stored fields: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Close releases the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Close()
}
