package message

import (
	"context"
	"time"

	"github.com/xraph/patron/id"
)

type Store interface {
	// CreateConversation fails with an already-exists error when
	// the pair already has a conversation.
	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, convID id.ConversationID) (*Conversation, error)
	FindConversation(ctx context.Context, a, b id.ProfileID) (*Conversation, error)
	// ListConversations returns the profile's conversations, most recent message first.
	ListConversations(ctx context.Context, profileID id.ProfileID) ([]*Conversation, error)
	TouchConversation(ctx context.Context, convID id.ConversationID, at time.Time) error

	CreateMessage(ctx context.Context, m *Message) error
	// ListMessages returns the conversation's messages, oldest first.
	ListMessages(ctx context.Context, convID id.ConversationID) ([]*Message, error)
	// MarkMessagesRead marks messages not sent by reader as read.
	MarkMessagesRead(ctx context.Context, convID id.ConversationID, reader id.ProfileID) (int64, error)
}
