package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/patron/auth"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/message"
	"github.com/xraph/patron/plugin"
)

type testServer struct {
	hub    *Hub
	issuer *auth.Issuer
	url    string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run(ctx)

	issuer, err := auth.NewIssuer("test-secret", "patron", time.Hour)
	require.NoError(t, err)

	srv := httptest.NewServer(NewHandler(hub, issuer, nil))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{hub: hub, issuer: issuer, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func (s *testServer) dial(t *testing.T, profileID id.ProfileID) *websocket.Conn {
	t.Helper()
	token, err := s.issuer.Issue(profileID)
	require.NoError(t, err)

	conn, resp, err := websocket.DefaultDialer.Dial(s.url+"?token="+token, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *testServer) waitConnections(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.hub.Connections(context.Background()) == n
	}, 2*time.Second, 10*time.Millisecond)
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestPublishReachesRecipientOnly(t *testing.T) {
	s := setupTestServer(t)
	alice, bob := id.NewProfileID(), id.NewProfileID()
	aliceConn := s.dial(t, alice)
	bobConn := s.dial(t, bob)
	s.waitConnections(t, 2)

	s.hub.Publish(Event{Recipient: alice, Type: EventNotification, ResourceID: "ntf_1"})

	ev := readEvent(t, aliceConn)
	assert.Equal(t, EventNotification, ev.Type)
	assert.Equal(t, "ntf_1", ev.ResourceID)
	assert.False(t, ev.At.IsZero())

	require.NoError(t, bobConn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := bobConn.ReadMessage()
	assert.Error(t, err, "bob must not receive alice's event")
}

func TestRejectsInvalidToken(t *testing.T) {
	s := setupTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(s.url+"?token=nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestClosedConnectionIsUnregistered(t *testing.T) {
	s := setupTestServer(t)
	conn := s.dial(t, id.NewProfileID())
	s.waitConnections(t, 1)

	require.NoError(t, conn.Close())
	s.waitConnections(t, 0)
}

func TestPluginFansOutMessages(t *testing.T) {
	s := setupTestServer(t)
	alice, bob := id.NewProfileID(), id.NewProfileID()
	aliceConn := s.dial(t, alice)
	bobConn := s.dial(t, bob)
	s.waitConnections(t, 2)

	conv, err := message.NewConversation(alice, bob, time.Now())
	require.NoError(t, err)
	m, err := message.NewMessage(conv, alice, "hi", time.Now())
	require.NoError(t, err)

	p := NewPlugin(s.hub)
	require.NoError(t, p.OnMessageSent(context.Background(), m, conv))

	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		ev := readEvent(t, conn)
		assert.Equal(t, EventMessage, ev.Type)
		assert.Equal(t, conv.ID.String(), ev.ResourceID)
	}

	postID := id.NewPostID()
	require.NoError(t, p.OnEntitlementChanged(context.Background(), plugin.EntitlementChange{FanID: bob, CreatorID: alice, PostID: postID, Cause: "purchased"}))
	ev := readEvent(t, bobConn)
	assert.Equal(t, EventEntitlement, ev.Type)
	assert.Equal(t, postID.String(), ev.ResourceID)
}
