package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/xraph/patron"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/message"
	"github.com/xraph/patron/notification"
)

// Notification Store implementation
func (s *Store) CreateNotification(_ context.Context, n *notification.Notification) error {
	return s.write(func(st *state) error {
		if _, exists := st.notifications[n.ID.String()]; exists {
			return fmt.Errorf("%w: notification %s", patron.ErrAlreadyExists, n.ID)
		}
		st.notifications[n.ID.String()] = clone(n)
		return nil
	})
}

func (s *Store) ListNotifications(_ context.Context, recipientID id.ProfileID, limit int) ([]*notification.Notification, error) {
	var out []*notification.Notification
	err := s.read(func(st *state) error {
		for _, n := range st.notifications {
			if n.RecipientID.Equal(recipientID) {
				out = append(out, clone(n))
			}
		}
		return nil
	})
	newestFirst(out, func(n *notification.Notification) (int64, string) {
		return n.CreatedAt.UnixNano(), n.ID.String()
	})
	return page(out, limit, 0), err
}

func (s *Store) CountUnreadNotifications(_ context.Context, recipientID id.ProfileID) (int64, error) {
	var n int64
	err := s.read(func(st *state) error {
		for _, ntf := range st.notifications {
			if ntf.RecipientID.Equal(recipientID) && !ntf.Read {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) MarkNotificationRead(_ context.Context, recipientID id.ProfileID, notificationID id.NotificationID) error {
	return s.write(func(st *state) error {
		n, ok := st.notifications[notificationID.String()]
		if !ok || !n.RecipientID.Equal(recipientID) {
			return patron.ErrNotificationNotFound
		}
		if n.Read {
			return nil
		}
		updated := clone(n)
		updated.Read = true
		st.notifications[notificationID.String()] = updated
		return nil
	})
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, recipientID id.ProfileID) (int64, error) {
	var marked int64
	err := s.write(func(st *state) error {
		for key, n := range st.notifications {
			if !n.RecipientID.Equal(recipientID) || n.Read {
				continue
			}
			updated := clone(n)
			updated.Read = true
			st.notifications[key] = updated
			marked++
		}
		return nil
	})
	return marked, err
}

// Message Store implementation
func pairKey(a, b id.ProfileID) string {
	lo, hi := message.Pair(a, b)
	return lo.String() + ":" + hi.String()
}

func (s *Store) CreateConversation(_ context.Context, c *message.Conversation) error {
	return s.write(func(st *state) error {
		key := pairKey(c.ParticipantA, c.ParticipantB)
		if _, exists := st.pairs[key]; exists {
			return fmt.Errorf("%w: conversation between %s and %s", patron.ErrAlreadyExists, c.ParticipantA, c.ParticipantB)
		}
		if _, exists := st.conversations[c.ID.String()]; exists {
			return fmt.Errorf("%w: conversation %s", patron.ErrAlreadyExists, c.ID)
		}
		st.conversations[c.ID.String()] = clone(c)
		st.pairs[key] = c.ID.String()
		return nil
	})
}

func (s *Store) GetConversation(_ context.Context, convID id.ConversationID) (*message.Conversation, error) {
	var out *message.Conversation
	err := s.read(func(st *state) error {
		c, ok := st.conversations[convID.String()]
		if !ok {
			return patron.ErrConversationNotFound
		}
		out = clone(c)
		return nil
	})
	return out, err
}

func (s *Store) FindConversation(_ context.Context, a, b id.ProfileID) (*message.Conversation, error) {
	var out *message.Conversation
	err := s.read(func(st *state) error {
		convID, ok := st.pairs[pairKey(a, b)]
		if !ok {
			return patron.ErrConversationNotFound
		}
		out = clone(st.conversations[convID])
		return nil
	})
	return out, err
}

func (s *Store) ListConversations(_ context.Context, profileID id.ProfileID) ([]*message.Conversation, error) {
	var out []*message.Conversation
	err := s.read(func(st *state) error {
		for _, c := range st.conversations {
			if c.Has(profileID) {
				out = append(out, clone(c))
			}
		}
		return nil
	})
	newestFirst(out, func(c *message.Conversation) (int64, string) {
		return c.LastMessageAt.UnixNano(), c.ID.String()
	})
	return out, err
}

func (s *Store) TouchConversation(_ context.Context, convID id.ConversationID, at time.Time) error {
	return s.write(func(st *state) error {
		c, ok := st.conversations[convID.String()]
		if !ok {
			return patron.ErrConversationNotFound
		}
		if !at.After(c.LastMessageAt) {
			return nil
		}
		updated := clone(c)
		updated.LastMessageAt = at.UTC()
		st.conversations[convID.String()] = updated
		return nil
	})
}

func (s *Store) CreateMessage(_ context.Context, m *message.Message) error {
	return s.write(func(st *state) error {
		key := m.ConversationID.String()
		if _, ok := st.conversations[key]; !ok {
			return patron.ErrConversationNotFound
		}
		msgs := slices.Clone(st.messages[key])
		st.messages[key] = append(msgs, clone(m))
		return nil
	})
}

func (s *Store) ListMessages(_ context.Context, convID id.ConversationID) ([]*message.Message, error) {
	var out []*message.Message
	err := s.read(func(st *state) error {
		if _, ok := st.conversations[convID.String()]; !ok {
			return patron.ErrConversationNotFound
		}
		for _, m := range st.messages[convID.String()] {
			out = append(out, clone(m))
		}
		return nil
	})
	slices.SortStableFunc(out, func(a, b *message.Message) int {
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})
	return out, err
}

func (s *Store) MarkMessagesRead(_ context.Context, convID id.ConversationID, reader id.ProfileID) (int64, error) {
	var marked int64
	err := s.write(func(st *state) error {
		key := convID.String()
		if _, ok := st.conversations[key]; !ok {
			return patron.ErrConversationNotFound
		}
		msgs := slices.Clone(st.messages[key])
		for i, m := range msgs {
			if m.Read || m.SenderID.Equal(reader) {
				continue
			}
			updated := clone(m)
			updated.Read = true
			msgs[i] = updated
			marked++
		}
		st.messages[key] = msgs
		return nil
	})
	return marked, err
}
