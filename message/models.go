// Package message defines direct-message conversations between two profiles.
package message

import (
	"errors"
	"strings"
	"time"

	"github.com/xraph/patron/id"
)

// MaxContentLength bounds a single message body in bytes.
const MaxContentLength = 5000

var (
	ErrSelfConversation = errors.New("message: cannot start a conversation with yourself")
	ErrEmptyContent     = errors.New("message: content is required")
	ErrContentTooLong   = errors.New("message: content is too long")
	ErrNotParticipant   = errors.New("message: not a participant of the conversation")
)

// Conversation is unique per unordered participant pair. ParticipantA always
// sorts before ParticipantB.
type Conversation struct {
	ID            id.ConversationID `json:"id"`
	ParticipantA  id.ProfileID      `json:"participant_a"`
	ParticipantB  id.ProfileID      `json:"participant_b"`
	LastMessageAt time.Time         `json:"last_message_at"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewConversation builds a conversation between a and b in canonical order.
func NewConversation(a, b id.ProfileID, now time.Time) (*Conversation, error) {
	if a.Equal(b) {
		return nil, ErrSelfConversation
	}
	lo, hi := Pair(a, b)
	now = now.UTC()
	return &Conversation{
		ID:            id.NewConversationID(),
		ParticipantA:  lo,
		ParticipantB:  hi,
		LastMessageAt: now,
		CreatedAt:     now,
	}, nil
}

// Pair returns a and b in canonical order.
func Pair(a, b id.ProfileID) (id.ProfileID, id.ProfileID) {
	if b.String() < a.String() {
		return b, a
	}
	return a, b
}

// Has reports whether p takes part in the conversation.
func (c *Conversation) Has(p id.ProfileID) bool {
	return c.ParticipantA.Equal(p) || c.ParticipantB.Equal(p)
}

// Other returns the participant that is not p.
func (c *Conversation) Other(p id.ProfileID) id.ProfileID {
	if c.ParticipantA.Equal(p) {
		return c.ParticipantB
	}
	return c.ParticipantA
}

type Message struct {
	ID             id.MessageID      `json:"id"`
	ConversationID id.ConversationID `json:"conversation_id"`
	SenderID       id.ProfileID      `json:"sender_id"`
	Content        string            `json:"content"`
	Read           bool              `json:"read"`
	CreatedAt      time.Time         `json:"created_at"`
}

// NewMessage validates content and builds a message.
func NewMessage(conv *Conversation, sender id.ProfileID, content string, now time.Time) (*Message, error) {
	if !conv.Has(sender) {
		return nil, ErrNotParticipant
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if len(content) > MaxContentLength {
		return nil, ErrContentTooLong
	}
	return &Message{
		ID:             id.NewMessageID(),
		ConversationID: conv.ID,
		SenderID:       sender,
		Content:        content,
		CreatedAt:      now.UTC(),
	}, nil
}
