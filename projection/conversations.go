// Package projection builds local read models from observed messages.
// Handles ordering, reconciliation, and conversation summaries.
// Does not emit events or interact with UI directly.
package projection

import (
	"sort"

	"rentloop/domain"
)

// Conversation is one row of the conversation list.
type Conversation struct {
	OtherUserID string
	LastMessage domain.Message
	UnreadCount int
}

// Conversations maps other-participant ids to append-only message logs.
// Within one session the order of a log only changes through Replace.
// Not safe for concurrent use; the owning engine serializes access.
type Conversations struct {
	byKey map[string][]domain.Message
	order []string
}

func NewConversations() *Conversations {
	return &Conversations{byKey: make(map[string][]domain.Message)}
}

// Append adds a message at the end of the conversation, in arrival order.
// No resorting happens on ingestion; callers wanting strict chronological
// order sort by CreatedAt themselves.
func (c *Conversations) Append(key string, m domain.Message) {
	if _, seen := c.byKey[key]; !seen {
		c.order = append(c.order, key)
	}
	c.byKey[key] = append(c.byKey[key], m)
}

// Replace swaps the whole log for a key with the authoritative server
// history. Earlier local content for that key is discarded, not merged.
func (c *Conversations) Replace(key string, msgs []domain.Message) {
	if _, seen := c.byKey[key]; !seen {
		c.order = append(c.order, key)
	}
	c.byKey[key] = append([]domain.Message(nil), msgs...)
}

// Reconcile replaces a pending optimistic message with its server echo,
// preserving its position in the log. It matches on receiver and content;
// the first pending match wins. Returns the temporary id that was replaced.
func (c *Conversations) Reconcile(key string, echo domain.Message) (string, bool) {
	log := c.byKey[key]
	for i, m := range log {
		if m.Pending && m.ReceiverID == echo.ReceiverID && m.Content == echo.Content {
			tempID := m.ID
			log[i] = echo
			return tempID, true
		}
	}
	return "", false
}

// Messages returns a copy of the log for a key.
func (c *Conversations) Messages(key string) []domain.Message {
	return append([]domain.Message(nil), c.byKey[key]...)
}

// Len returns the number of messages held for a key.
func (c *Conversations) Len(key string) int {
	return len(c.byKey[key])
}

// MarkRead flips the read flag on a message wherever it lives. It returns
// the previous value so callers can revert if the server rejects the update.
func (c *Conversations) MarkRead(messageID string, read bool) (wasRead bool, found bool) {
	for key, log := range c.byKey {
		for i, m := range log {
			if m.ID == messageID {
				wasRead = m.IsRead
				c.byKey[key][i].IsRead = read
				return wasRead, true
			}
		}
	}
	return false, false
}

// Unread counts messages in one conversation that are unread for me.
func (c *Conversations) Unread(key, me string) int {
	count := 0
	for _, m := range c.byKey[key] {
		if m.UnreadFor(me) {
			count++
		}
	}
	return count
}

// TotalUnread sums Unread over all known conversations.
func (c *Conversations) TotalUnread(me string) int {
	total := 0
	for key := range c.byKey {
		total += c.Unread(key, me)
	}
	return total
}

// Summaries returns one row per non-empty conversation, ordered by the last
// message's CreatedAt descending. Ties keep insertion order (stable sort).
func (c *Conversations) Summaries(me string) []Conversation {
	var rows []Conversation
	for _, key := range c.order {
		log := c.byKey[key]
		if len(log) == 0 {
			continue
		}
		rows = append(rows, Conversation{
			OtherUserID: key,
			LastMessage: log[len(log)-1],
			UnreadCount: c.Unread(key, me),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].LastMessage.CreatedAt.After(rows[j].LastMessage.CreatedAt)
	})
	return rows
}

// Clear drops every conversation. Used when the identity changes.
func (c *Conversations) Clear() {
	c.byKey = make(map[string][]domain.Message)
	c.order = nil
}
