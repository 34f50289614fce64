package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/patron"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/message"
	"github.com/xraph/patron/notification"
)

// ==================== Notification Store ====================

func (s *Store) CreateNotification(ctx context.Context, n *notification.Notification) error {
	_, err := s.mdb.NewInsert(toNotificationModel(n)).Exec(ctx)
	return wrap("create notification", err)
}

func (s *Store) ListNotifications(ctx context.Context, recipientID id.ProfileID, limit int) ([]*notification.Notification, error) {
	return findMany(ctx, s.mdb, "list notifications",
		bson.M{"recipient_id": recipientID.String()}, newestFirst, limit, 0, fromNotificationModel)
}

func (s *Store) CountUnreadNotifications(ctx context.Context, recipientID id.ProfileID) (int64, error) {
	n, err := s.mdb.NewFind((*notificationModel)(nil)).
		Filter(bson.M{"recipient_id": recipientID.String(), "read": false}).
		Count(ctx)
	if err != nil {
		return 0, wrap("count unread notifications", err)
	}
	return n, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, recipientID id.ProfileID, notificationID id.NotificationID) error {
	res, err := s.mdb.NewUpdate((*notificationModel)(nil)).
		Filter(bson.M{"_id": notificationID.String(), "recipient_id": recipientID.String()}).
		Set("read", true).
		Exec(ctx)
	return matched(res, err, "mark notification read", patron.ErrNotificationNotFound)
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, recipientID id.ProfileID) (int64, error) {
	res, err := s.mdb.NewUpdate((*notificationModel)(nil)).
		Filter(bson.M{"recipient_id": recipientID.String(), "read": false}).
		Set("read", true).
		Many().
		Exec(ctx)
	if err != nil {
		return 0, wrap("mark all notifications read", err)
	}
	return res.ModifiedCount(), nil
}

// ==================== Message Store ====================

func (s *Store) CreateConversation(ctx context.Context, c *message.Conversation) error {
	_, err := s.mdb.NewInsert(toConversationModel(c)).Exec(ctx)
	return wrap("create conversation", err)
}

func (s *Store) GetConversation(ctx context.Context, convID id.ConversationID) (*message.Conversation, error) {
	return findOne(ctx, s.mdb, "get conversation", patron.ErrConversationNotFound,
		bson.M{"_id": convID.String()}, fromConversationModel)
}

func (s *Store) FindConversation(ctx context.Context, a, b id.ProfileID) (*message.Conversation, error) {
	lo, hi := message.Pair(a, b)
	return findOne(ctx, s.mdb, "find conversation", patron.ErrConversationNotFound,
		bson.M{"participant_a": lo.String(), "participant_b": hi.String()}, fromConversationModel)
}

func (s *Store) ListConversations(ctx context.Context, profileID id.ProfileID) ([]*message.Conversation, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"participant_a": profileID.String()},
		bson.M{"participant_b": profileID.String()},
	}}
	sort := bson.D{{Key: "last_message_us", Value: -1}, {Key: "_id", Value: -1}}
	return findMany(ctx, s.mdb, "list conversations", filter, sort, 0, 0, fromConversationModel)
}

// TouchConversation only moves the last message time forward.
func (s *Store) TouchConversation(ctx context.Context, convID id.ConversationID, at time.Time) error {
	res, err := s.mdb.NewUpdate((*conversationModel)(nil)).
		Filter(bson.M{"_id": convID.String()}).
		SetUpdate(bson.M{"$max": bson.M{"last_message_us": at.UnixMicro()}}).
		Exec(ctx)
	return matched(res, err, "touch conversation", patron.ErrConversationNotFound)
}

func (s *Store) CreateMessage(ctx context.Context, m *message.Message) error {
	if _, err := s.GetConversation(ctx, m.ConversationID); err != nil {
		return err
	}
	_, err := s.mdb.NewInsert(toMessageModel(m)).Exec(ctx)
	return wrap("create message", err)
}

func (s *Store) ListMessages(ctx context.Context, convID id.ConversationID) ([]*message.Message, error) {
	if _, err := s.GetConversation(ctx, convID); err != nil {
		return nil, err
	}
	sort := bson.D{{Key: "created_us", Value: 1}, {Key: "_id", Value: 1}}
	return findMany(ctx, s.mdb, "list messages", bson.M{"conversation_id": convID.String()},
		sort, 0, 0, fromMessageModel)
}

func (s *Store) MarkMessagesRead(ctx context.Context, convID id.ConversationID, reader id.ProfileID) (int64, error) {
	if _, err := s.GetConversation(ctx, convID); err != nil {
		return 0, err
	}
	res, err := s.mdb.NewUpdate((*messageModel)(nil)).
		Filter(bson.M{
			"conversation_id": convID.String(),
			"sender_id":       bson.M{"$ne": reader.String()},
			"read":            false,
		}).
		Set("read", true).
		Many().
		Exec(ctx)
	if err != nil {
		return 0, wrap("mark messages read", err)
	}
	return res.ModifiedCount(), nil
}
