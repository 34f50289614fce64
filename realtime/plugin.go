package realtime

import (
	"context"

	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/message"
	"github.com/xraph/patron/notification"
	"github.com/xraph/patron/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Plugin)(nil)
	_ plugin.OnNotificationCreated = (*Plugin)(nil)
	_ plugin.OnMessageSent         = (*Plugin)(nil)
	_ plugin.OnEntitlementChanged  = (*Plugin)(nil)
	_ plugin.OnTransactionRecorded = (*Plugin)(nil)
)

// Plugin turns engine hooks into hub events.
type Plugin struct {
	hub *Hub
}

// NewPlugin creates a Plugin publishing to hub.
func NewPlugin(hub *Hub) *Plugin { return &Plugin{hub: hub} }

func (p *Plugin) Name() string { return "realtime" }

func (p *Plugin) OnNotificationCreated(_ context.Context, n *notification.Notification) error {
	p.hub.Publish(Event{Recipient: n.RecipientID, Type: EventNotification, ResourceID: n.ID.String(), At: n.CreatedAt})
	return nil
}

func (p *Plugin) OnMessageSent(_ context.Context, m *message.Message, conv *message.Conversation) error {
	p.hub.Publish(Event{Recipient: conv.ParticipantA, Type: EventMessage, ResourceID: conv.ID.String(), At: m.CreatedAt})
	p.hub.Publish(Event{Recipient: conv.ParticipantB, Type: EventMessage, ResourceID: conv.ID.String(), At: m.CreatedAt})
	return nil
}

func (p *Plugin) OnEntitlementChanged(_ context.Context, c plugin.EntitlementChange) error {
	resource := c.CreatorID.String()
	if !c.PostID.IsNil() {
		resource = c.PostID.String()
	}
	p.hub.Publish(Event{Recipient: c.FanID, Type: EventEntitlement, ResourceID: resource})
	return nil
}

func (p *Plugin) OnTransactionRecorded(_ context.Context, txn *ledger.Transaction) error {
	p.hub.Publish(Event{Recipient: txn.CreatorID, Type: EventEarnings, ResourceID: txn.ID.String(), At: txn.CreatedAt})
	return nil
}
