package patron

import (
	"context"
	"fmt"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/message"
	"github.com/xraph/patron/notification"
	"github.com/xraph/patron/store"
)

// ──────────────────────────────────────────────────
// Messaging
// ──────────────────────────────────────────────────

// StartConversation returns the caller's conversation with other, creating it
// on first use.
func (p *Patron) StartConversation(ctx context.Context, other id.ProfileID) (*message.Conversation, error) {
	caller, err := p.caller(ctx)
	if err != nil {
		return nil, err
	}
	conv, err := message.NewConversation(caller, other, p.now())
	if err != nil {
		return nil, invalid("participant", err)
	}
	if _, err := p.store.GetProfile(ctx, other); err != nil {
		return nil, err
	}

	if found, err := p.store.FindConversation(ctx, caller, other); err == nil {
		return found, nil
	} else if !IsNotFound(err) {
		return nil, err
	}

	if err := p.store.CreateConversation(ctx, conv); err != nil {
		if IsAlreadyExists(err) {
			return p.store.FindConversation(ctx, caller, other)
		}
		return nil, err
	}
	return conv, nil
}

// participantConversation loads a conversation the caller takes part in.
func (p *Patron) participantConversation(ctx context.Context, convID id.ConversationID) (id.ProfileID, *message.Conversation, error) {
	caller, err := p.caller(ctx)
	if err != nil {
		return id.Nil, nil, err
	}
	conv, err := p.store.GetConversation(ctx, convID)
	if err != nil {
		return id.Nil, nil, err
	}
	if !conv.Has(caller) {
		return id.Nil, nil, fmt.Errorf("%w: %w", ErrPermissionDenied, message.ErrNotParticipant)
	}
	return caller, conv, nil
}

// SendMessage posts content to a conversation the caller takes part in.
func (p *Patron) SendMessage(ctx context.Context, convID id.ConversationID, content string) (*message.Message, error) {
	sender, conv, err := p.participantConversation(ctx, convID)
	if err != nil {
		return nil, err
	}

	m, err := message.NewMessage(conv, sender, content, p.seq.Next("conv:"+convID.String(), p.now()))
	if err != nil {
		return nil, invalid("content", err)
	}

	err = p.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.CreateMessage(ctx, m); err != nil {
			return err
		}
		return tx.TouchConversation(ctx, convID, m.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	if m.CreatedAt.After(conv.LastMessageAt) {
		conv.LastMessageAt = m.CreatedAt
	}

	p.plugins.EmitMessageSent(ctx, m, conv)
	p.notify(ctx, conv.Other(sender), notification.TypeNewMessage, "New message", preview(m.Content), conv.ID)
	return m, nil
}

// Messages returns a conversation's messages, oldest first.
func (p *Patron) Messages(ctx context.Context, convID id.ConversationID) ([]*message.Message, error) {
	if _, _, err := p.participantConversation(ctx, convID); err != nil {
		return nil, err
	}
	return p.store.ListMessages(ctx, convID)
}

// MarkConversationRead marks the other participant's messages as read and
// returns how many changed.
func (p *Patron) MarkConversationRead(ctx context.Context, convID id.ConversationID) (int64, error) {
	reader, _, err := p.participantConversation(ctx, convID)
	if err != nil {
		return 0, err
	}
	return p.store.MarkMessagesRead(ctx, convID, reader)
}

// Conversations returns the caller's conversations, most recently active first.
func (p *Patron) Conversations(ctx context.Context) ([]*message.Conversation, error) {
	caller, err := p.caller(ctx)
	if err != nil {
		return nil, err
	}
	return p.store.ListConversations(ctx, caller)
}

func preview(s string) string {
	const n = 80
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
