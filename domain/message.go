package domain

import "time"

// Message kinds as sent on the wire.
const (
	KindText = "text"
)

// Message is one chat message between two users. Pending marks a locally
// constructed optimistic copy whose ID is a temporary uuid; it holds its
// position in the conversation until a server echo replaces it.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Kind       string    `json:"message_type"`
	IsRead     bool      `json:"is_read"`
	Pending    bool      `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Outbound is the payload transmitted over the live connection.
type Outbound struct {
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
	Kind       string `json:"message_type"`
}

// ConversationKey returns the id of the participant who is not me. Both
// directions of traffic between two users land under the same key.
func ConversationKey(me string, m Message) string {
	if m.SenderID == me {
		return m.ReceiverID
	}
	return m.SenderID
}

// UnreadFor reports whether the message counts as unread for the given
// identity. Messages the identity sent are never unread for itself.
func (m Message) UnreadFor(me string) bool {
	return !m.IsRead && m.ReceiverID == me
}
