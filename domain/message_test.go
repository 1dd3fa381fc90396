package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConversationKey_BothDirectionsShareAKey(t *testing.T) {
	req := require.New(t)

	outbound := Message{SenderID: "me", ReceiverID: "them"}
	inbound := Message{SenderID: "them", ReceiverID: "me"}

	req.Equal("them", ConversationKey("me", outbound))
	req.Equal("them", ConversationKey("me", inbound))
}

func TestMessage_UnreadFor(t *testing.T) {
	req := require.New(t)

	toMe := Message{SenderID: "them", ReceiverID: "me", IsRead: false}
	req.True(toMe.UnreadFor("me"))

	read := Message{SenderID: "them", ReceiverID: "me", IsRead: true}
	req.False(read.UnreadFor("me"))

	// A message I sent is never unread for me, whatever its flag says.
	mine := Message{SenderID: "me", ReceiverID: "them", IsRead: false}
	req.False(mine.UnreadFor("me"))
}
