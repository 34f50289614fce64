package patron_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/patron"
	"github.com/xraph/patron/message"
	"github.com/xraph/patron/notification"
)

func TestConversationRoundTrip(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	conv, err := f.StartConversation(f.as(alice), bob)
	require.NoError(t, err)
	again, err := f.StartConversation(f.as(bob), alice)
	require.NoError(t, err)
	assert.True(t, again.ID.Equal(conv.ID), "one conversation per pair")

	_, err = f.SendMessage(f.as(alice), conv.ID, "hi bob")
	require.NoError(t, err)
	_, err = f.SendMessage(f.as(alice), conv.ID, "are you there?")
	require.NoError(t, err)

	msgs, err := f.Messages(f.as(bob), conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi bob", msgs[0].Content)
	assert.True(t, msgs[1].CreatedAt.After(msgs[0].CreatedAt))

	notes, err := f.Notifications(f.as(bob), 0)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, notification.TypeNewMessage, notes[0].Type)

	n, err := f.MarkConversationRead(f.as(bob), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = f.MarkConversationRead(f.as(alice), conv.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "own messages stay unread for the sender")

	convs, err := f.Conversations(f.as(bob))
	require.NoError(t, err)
	require.Len(t, convs, 1)
}

func TestConversationRejections(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	eve := f.user(t, "eve")

	_, err := f.StartConversation(f.as(alice), alice)
	assert.ErrorIs(t, err, patron.ErrInvalidInput)

	conv, err := f.StartConversation(f.as(alice), bob)
	require.NoError(t, err)

	_, err = f.SendMessage(f.as(eve), conv.ID, "hello")
	assert.ErrorIs(t, err, patron.ErrPermissionDenied)
	assert.ErrorIs(t, err, message.ErrNotParticipant)

	_, err = f.Messages(f.as(eve), conv.ID)
	assert.ErrorIs(t, err, patron.ErrPermissionDenied)

	_, err = f.SendMessage(f.as(alice), conv.ID, "   ")
	assert.ErrorIs(t, err, message.ErrEmptyContent)

	_, err = f.SendMessage(f.as(alice), conv.ID, strings.Repeat("x", message.MaxContentLength+1))
	assert.ErrorIs(t, err, message.ErrContentTooLong)
}

func TestNotificationsReadState(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv, err := f.StartConversation(f.as(alice), bob)
	require.NoError(t, err)
	for _, s := range []string{"one", "two", "three"} {
		_, err := f.SendMessage(f.as(alice), conv.ID, s)
		require.NoError(t, err)
	}

	notes, err := f.Notifications(f.as(bob), 0)
	require.NoError(t, err)
	require.Len(t, notes, 3)

	require.NoError(t, f.MarkNotificationRead(f.as(bob), notes[0].ID))
	err = f.MarkNotificationRead(f.as(alice), notes[1].ID)
	assert.True(t, patron.IsNotFound(err), "other recipients' notifications are invisible: %v", err)

	unread, err := f.UnreadCount(f.as(bob))
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	n, err := f.MarkAllNotificationsRead(f.as(bob))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	limited, err := f.Notifications(f.as(bob), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
