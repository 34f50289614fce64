package postgres

import (
	"context"
	"time"

	"github.com/xraph/patron"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/message"
	"github.com/xraph/patron/notification"
)

// ==================== Notification Store ====================

func (s *Store) CreateNotification(ctx context.Context, n *notification.Notification) error {
	_, err := s.q.NewInsert(toNotificationModel(n)).Exec(ctx)
	return wrap("create notification", err)
}

func (s *Store) ListNotifications(ctx context.Context, recipientID id.ProfileID, limit int) ([]*notification.Notification, error) {
	var models []notificationModel
	q := s.q.NewSelect(&models).
		Where("recipient_id = $1", recipientID.String()).
		OrderExpr("created_at DESC, id DESC")
	if err := page(q, limit, 0).Scan(ctx); err != nil {
		return nil, wrap("list notifications", err)
	}
	return fromModels(models, fromNotificationModel)
}

func (s *Store) CountUnreadNotifications(ctx context.Context, recipientID id.ProfileID) (int64, error) {
	n, err := s.q.NewSelect((*notificationModel)(nil)).
		Where("recipient_id = $1", recipientID.String()).
		Where("NOT read").
		Count(ctx)
	if err != nil {
		return 0, wrap("count unread notifications", err)
	}
	return n, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, recipientID id.ProfileID, notificationID id.NotificationID) error {
	res, err := s.q.NewUpdate((*notificationModel)(nil)).
		Set("read = TRUE").
		Where("id = $1", notificationID.String()).
		Where("recipient_id = $2", recipientID.String()).
		Exec(ctx)
	return affected("mark notification read", patron.ErrNotificationNotFound, res, err)
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, recipientID id.ProfileID) (int64, error) {
	res, err := s.q.NewUpdate((*notificationModel)(nil)).
		Set("read = TRUE").
		Where("recipient_id = $1", recipientID.String()).
		Where("NOT read").
		Exec(ctx)
	if err != nil {
		return 0, wrap("mark all notifications read", err)
	}
	n, err := res.RowsAffected()
	return n, wrap("mark all notifications read", err)
}

// ==================== Message Store ====================

func (s *Store) CreateConversation(ctx context.Context, c *message.Conversation) error {
	_, err := s.q.NewInsert(toConversationModel(c)).Exec(ctx)
	return wrap("create conversation", err)
}

func (s *Store) GetConversation(ctx context.Context, convID id.ConversationID) (*message.Conversation, error) {
	m := new(conversationModel)
	q := s.q.NewSelect(m).Where("id = $1", convID.String())
	if err := scanOne(ctx, q, "get conversation", patron.ErrConversationNotFound); err != nil {
		return nil, err
	}
	return fromConversationModel(m)
}

func (s *Store) FindConversation(ctx context.Context, a, b id.ProfileID) (*message.Conversation, error) {
	lo, hi := message.Pair(a, b)
	m := new(conversationModel)
	q := s.q.NewSelect(m).
		Where("participant_a = $1", lo.String()).
		Where("participant_b = $2", hi.String())
	if err := scanOne(ctx, q, "find conversation", patron.ErrConversationNotFound); err != nil {
		return nil, err
	}
	return fromConversationModel(m)
}

func (s *Store) ListConversations(ctx context.Context, profileID id.ProfileID) ([]*message.Conversation, error) {
	var models []conversationModel
	err := s.q.NewSelect(&models).
		Where("(participant_a = $1 OR participant_b = $1)", profileID.String()).
		OrderExpr("last_message_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list conversations", err)
	}
	return fromModels(models, fromConversationModel)
}

func (s *Store) TouchConversation(ctx context.Context, convID id.ConversationID, at time.Time) error {
	res, err := s.q.NewUpdate((*conversationModel)(nil)).
		Set("last_message_at = GREATEST(last_message_at, $1)", at).
		Where("id = $2", convID.String()).
		Exec(ctx)
	return affected("touch conversation", patron.ErrConversationNotFound, res, err)
}

func (s *Store) CreateMessage(ctx context.Context, m *message.Message) error {
	_, err := s.q.NewInsert(toMessageModel(m)).Exec(ctx)
	if code, _ := pgCode(err); code == codeForeignKeyViolation {
		return patron.ErrConversationNotFound
	}
	return wrap("create message", err)
}

func (s *Store) ListMessages(ctx context.Context, convID id.ConversationID) ([]*message.Message, error) {
	if _, err := s.GetConversation(ctx, convID); err != nil {
		return nil, err
	}
	var models []messageModel
	err := s.q.NewSelect(&models).
		Where("conversation_id = $1", convID.String()).
		OrderExpr("created_at, id").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list messages", err)
	}
	return fromModels(models, fromMessageModel)
}

func (s *Store) MarkMessagesRead(ctx context.Context, convID id.ConversationID, reader id.ProfileID) (int64, error) {
	if _, err := s.GetConversation(ctx, convID); err != nil {
		return 0, err
	}
	res, err := s.q.NewUpdate((*messageModel)(nil)).
		Set("read = TRUE").
		Where("conversation_id = $1", convID.String()).
		Where("sender_id <> $2", reader.String()).
		Where("NOT read").
		Exec(ctx)
	if err != nil {
		return 0, wrap("mark messages read", err)
	}
	n, err := res.RowsAffected()
	return n, wrap("mark messages read", err)
}
