package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/message"
	"github.com/xraph/patron/moderation"
	"github.com/xraph/patron/notification"
	"github.com/xraph/patron/post"
	"github.com/xraph/patron/profile"
	"github.com/xraph/patron/purchase"
	"github.com/xraph/patron/settings"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/tip"
	"github.com/xraph/patron/types"
)

// Documents store IDs as strings and money as (amount, currency) pairs.
// BSON dates keep milliseconds; ordered collections carry a microsecond
// sort key alongside.

func parseID(s string) (id.ID, error) {
	if s == "" {
		return id.Nil, nil
	}
	return id.Parse(s)
}

// parseIDs parses raw into the matching dst slots, stopping at the first error.
func parseIDs(dst []*id.ID, raw ...string) error {
	for i, s := range raw {
		v, err := parseID(s)
		if err != nil {
			return err
		}
		*dst[i] = v
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

type moneyModel struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func toMoney(m types.Money) moneyModel { return moneyModel{Amount: m.Amount, Currency: m.Currency} }
func (m moneyModel) money() types.Money { return types.Money{Amount: m.Amount, Currency: m.Currency} }

// ==================== Profile models ====================

type profileModel struct {
	grove.BaseModel `grove:"table:patron_profiles"`

	ID                string     `grove:"id,pk" bson:"_id"`
	Username          string     `grove:"username" bson:"username,omitempty"`
	UsernameKey       *string    `grove:"username_key" bson:"username_key"`
	DisplayName       string     `grove:"display_name" bson:"display_name"`
	Bio               string     `grove:"bio" bson:"bio"`
	AvatarURL         string     `grove:"avatar_url" bson:"avatar_url"`
	BannerURL         string     `grove:"banner_url" bson:"banner_url"`
	DateOfBirth       *time.Time `grove:"date_of_birth" bson:"date_of_birth,omitempty"`
	IsAgeVerified     bool       `grove:"is_age_verified" bson:"is_age_verified"`
	IsCreatorVerified bool       `grove:"is_creator_verified" bson:"is_creator_verified"`
	SubscriptionPrice moneyModel `grove:"subscription_price" bson:"subscription_price"`
	CreatedUS         int64      `grove:"created_us" bson:"created_us"`
	CreatedAt         time.Time  `grove:"created_at" bson:"created_at"`
	UpdatedAt         time.Time  `grove:"updated_at" bson:"updated_at"`
}

func toProfileModel(p *profile.Profile) *profileModel {
	return &profileModel{
		ID:                p.ID.String(),
		Username:          p.Username,
		UsernameKey:       usernameKey(p.Username),
		DisplayName:       p.DisplayName,
		Bio:               p.Bio,
		AvatarURL:         p.AvatarURL,
		BannerURL:         p.BannerURL,
		DateOfBirth:       p.DateOfBirth,
		IsAgeVerified:     p.IsAgeVerified,
		IsCreatorVerified: p.IsCreatorVerified,
		SubscriptionPrice: toMoney(p.SubscriptionPrice),
		CreatedUS:         p.CreatedAt.UnixMicro(),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func fromProfileModel(m *profileModel) (*profile.Profile, error) {
	profileID, err := id.ParseProfileID(m.ID)
	if err != nil {
		return nil, err
	}
	return &profile.Profile{
		Entity:            types.Entity{CreatedAt: time.UnixMicro(m.CreatedUS).UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:                profileID,
		Username:          m.Username,
		DisplayName:       m.DisplayName,
		Bio:               m.Bio,
		AvatarURL:         m.AvatarURL,
		BannerURL:         m.BannerURL,
		DateOfBirth:       utcPtr(m.DateOfBirth),
		IsAgeVerified:     m.IsAgeVerified,
		IsCreatorVerified: m.IsCreatorVerified,
		SubscriptionPrice: m.SubscriptionPrice.money(),
	}, nil
}

// lockModel is the per-key document Lock writes inside a transaction.
type lockModel struct {
	grove.BaseModel `grove:"table:patron_locks"`

	ID string `grove:"id,pk" bson:"_id"`
	N  int64  `grove:"n" bson:"n"`
}

type roleModel struct {
	grove.BaseModel `grove:"table:patron_roles"`

	ID        string    `grove:"id,pk" bson:"_id"`
	ProfileID string    `grove:"profile_id" bson:"profile_id"`
	Role      string    `grove:"role" bson:"role"`
	GrantedAt time.Time `grove:"granted_at" bson:"granted_at"`
}

func toRoleModel(ra *profile.RoleAssignment) *roleModel {
	return &roleModel{
		ID:        ra.ProfileID.String() + ":" + string(ra.Role),
		ProfileID: ra.ProfileID.String(),
		Role:      string(ra.Role),
		GrantedAt: ra.GrantedAt,
	}
}

// ==================== Post models ====================

type mediaModel struct {
	Kind string `bson:"kind"`
	URL  string `bson:"url"`
}

type postModel struct {
	grove.BaseModel `grove:"table:patron_posts"`

	ID         string       `grove:"id,pk" bson:"_id"`
	CreatorID  string       `grove:"creator_id" bson:"creator_id"`
	Content    string       `grove:"content" bson:"content"`
	Media      []mediaModel `grove:"media" bson:"media"`
	Visibility string       `grove:"visibility" bson:"visibility"`
	PPVPrice   moneyModel   `grove:"ppv_price" bson:"ppv_price"`
	CreatedUS  int64        `grove:"created_us" bson:"created_us"`
	CreatedAt  time.Time    `grove:"created_at" bson:"created_at"`
	UpdatedAt  time.Time    `grove:"updated_at" bson:"updated_at"`
}

func toPostModel(p *post.Post) *postModel {
	media := make([]mediaModel, len(p.Media))
	for i, m := range p.Media {
		media[i] = mediaModel{Kind: string(m.Kind), URL: m.URL}
	}
	return &postModel{
		ID:         p.ID.String(),
		CreatorID:  p.CreatorID.String(),
		Content:    p.Content,
		Media:      media,
		Visibility: string(p.Visibility),
		PPVPrice:   toMoney(p.PPVPrice),
		CreatedUS:  p.CreatedAt.UnixMicro(),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func fromPostModel(m *postModel) (*post.Post, error) {
	p := &post.Post{
		Entity:     types.Entity{CreatedAt: time.UnixMicro(m.CreatedUS).UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		Content:    m.Content,
		Visibility: post.Visibility(m.Visibility),
		PPVPrice:   m.PPVPrice.money(),
	}
	if err := parseIDs([]*id.ID{&p.ID, &p.CreatorID}, m.ID, m.CreatorID); err != nil {
		return nil, err
	}
	for _, mm := range m.Media {
		p.Media = append(p.Media, post.Media{Kind: post.MediaKind(mm.Kind), URL: mm.URL})
	}
	return p, nil
}

// ==================== Subscription models ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:patron_subscriptions"`

	ID                 string     `grove:"id,pk" bson:"_id"`
	FanID              string     `grove:"fan_id" bson:"fan_id"`
	CreatorID          string     `grove:"creator_id" bson:"creator_id"`
	Status             string     `grove:"status" bson:"status"`
	CurrentPeriodStart time.Time  `grove:"current_period_start" bson:"current_period_start"`
	CurrentPeriodEnd   time.Time  `grove:"current_period_end" bson:"current_period_end"`
	CanceledAt         *time.Time `grove:"canceled_at" bson:"canceled_at,omitempty"`
	ProviderRef        string     `grove:"provider_ref" bson:"provider_ref"`
	CreatedAt          time.Time  `grove:"created_at" bson:"created_at"`
	UpdatedAt          time.Time  `grove:"updated_at" bson:"updated_at"`
}

func toSubscriptionModel(sub *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:                 sub.ID.String(),
		FanID:              sub.FanID.String(),
		CreatorID:          sub.CreatorID.String(),
		Status:             string(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CanceledAt:         sub.CanceledAt,
		ProviderRef:        sub.ProviderRef,
		CreatedAt:          sub.CreatedAt,
		UpdatedAt:          sub.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	sub := &subscription.Subscription{
		Entity:             types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		Status:             subscription.Status(m.Status),
		CurrentPeriodStart: m.CurrentPeriodStart.UTC(),
		CurrentPeriodEnd:   m.CurrentPeriodEnd.UTC(),
		CanceledAt:         utcPtr(m.CanceledAt),
		ProviderRef:        m.ProviderRef,
	}
	if err := parseIDs([]*id.ID{&sub.ID, &sub.FanID, &sub.CreatorID}, m.ID, m.FanID, m.CreatorID); err != nil {
		return nil, err
	}
	return sub, nil
}

// ==================== Purchase & Tip models ====================

type purchaseModel struct {
	grove.BaseModel `grove:"table:patron_purchases"`

	ID         string     `grove:"id,pk" bson:"_id"`
	FanID      string     `grove:"fan_id" bson:"fan_id"`
	PostID     string     `grove:"post_id" bson:"post_id"`
	CreatorID  string     `grove:"creator_id" bson:"creator_id"`
	Amount     moneyModel `grove:"amount" bson:"amount"`
	PaymentRef string     `grove:"payment_ref" bson:"payment_ref"`
	CreatedAt  time.Time  `grove:"created_at" bson:"created_at"`
}

func toPurchaseModel(p *purchase.Purchase) *purchaseModel {
	return &purchaseModel{
		ID:         p.ID.String(),
		FanID:      p.FanID.String(),
		PostID:     p.PostID.String(),
		CreatorID:  p.CreatorID.String(),
		Amount:     toMoney(p.Amount),
		PaymentRef: p.PaymentRef,
		CreatedAt:  p.CreatedAt,
	}
}

func fromPurchaseModel(m *purchaseModel) (*purchase.Purchase, error) {
	p := &purchase.Purchase{Amount: m.Amount.money(), PaymentRef: m.PaymentRef, CreatedAt: m.CreatedAt.UTC()}
	if err := parseIDs([]*id.ID{&p.ID, &p.FanID, &p.PostID, &p.CreatorID}, m.ID, m.FanID, m.PostID, m.CreatorID); err != nil {
		return nil, err
	}
	return p, nil
}

type tipModel struct {
	grove.BaseModel `grove:"table:patron_tips"`

	ID         string     `grove:"id,pk" bson:"_id"`
	FanID      string     `grove:"fan_id" bson:"fan_id"`
	CreatorID  string     `grove:"creator_id" bson:"creator_id"`
	Amount     moneyModel `grove:"amount" bson:"amount"`
	Message    string     `grove:"message" bson:"message"`
	PaymentRef string     `grove:"payment_ref" bson:"payment_ref"`
	CreatedAt  time.Time  `grove:"created_at" bson:"created_at"`
}

func toTipModel(t *tip.Tip) *tipModel {
	return &tipModel{
		ID:         t.ID.String(),
		FanID:      t.FanID.String(),
		CreatorID:  t.CreatorID.String(),
		Amount:     toMoney(t.Amount),
		Message:    t.Message,
		PaymentRef: t.PaymentRef,
		CreatedAt:  t.CreatedAt,
	}
}

func fromTipModel(m *tipModel) (*tip.Tip, error) {
	t := &tip.Tip{Amount: m.Amount.money(), Message: m.Message, PaymentRef: m.PaymentRef, CreatedAt: m.CreatedAt.UTC()}
	if err := parseIDs([]*id.ID{&t.ID, &t.FanID, &t.CreatorID}, m.ID, m.FanID, m.CreatorID); err != nil {
		return nil, err
	}
	return t, nil
}

// ==================== Ledger models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:patron_transactions"`

	ID         string     `grove:"id,pk" bson:"_id"`
	CreatorID  string     `grove:"creator_id" bson:"creator_id"`
	FanID      string     `grove:"fan_id" bson:"fan_id,omitempty"`
	Type       string     `grove:"type" bson:"type"`
	Gross      moneyModel `grove:"gross" bson:"gross"`
	Fee        moneyModel `grove:"fee" bson:"fee"`
	Net        moneyModel `grove:"net" bson:"net"`
	FeeRate    int64      `grove:"fee_rate" bson:"fee_rate"`
	SourceID   string     `grove:"source_id" bson:"source_id,omitempty"`
	PaymentRef string     `grove:"payment_ref" bson:"payment_ref"`
	CreatedUS  int64      `grove:"created_us" bson:"created_us"`
	CreatedAt  time.Time  `grove:"created_at" bson:"created_at"`
}

func toTransactionModel(t *ledger.Transaction) *transactionModel {
	return &transactionModel{
		ID:         t.ID.String(),
		CreatorID:  t.CreatorID.String(),
		FanID:      t.FanID.String(),
		Type:       string(t.Type),
		Gross:      toMoney(t.Gross),
		Fee:        toMoney(t.Fee),
		Net:        toMoney(t.Net),
		FeeRate:    int64(t.FeeRate),
		SourceID:   t.SourceID.String(),
		PaymentRef: t.PaymentRef,
		CreatedUS:  t.CreatedAt.UnixMicro(),
		CreatedAt:  t.CreatedAt,
	}
}

func fromTransactionModel(m *transactionModel) (*ledger.Transaction, error) {
	t := &ledger.Transaction{
		Type:       ledger.Type(m.Type),
		Gross:      m.Gross.money(),
		Fee:        m.Fee.money(),
		Net:        m.Net.money(),
		FeeRate:    types.Rate(m.FeeRate),
		PaymentRef: m.PaymentRef,
		CreatedAt:  time.UnixMicro(m.CreatedUS).UTC(),
	}
	if err := parseIDs([]*id.ID{&t.ID, &t.CreatorID, &t.FanID, &t.SourceID}, m.ID, m.CreatorID, m.FanID, m.SourceID); err != nil {
		return nil, err
	}
	return t, nil
}

// ==================== Settings models ====================

const settingsDocID = "platform"

type settingsModel struct {
	grove.BaseModel `grove:"table:patron_settings"`

	ID                   string     `grove:"id,pk" bson:"_id"`
	FeeRate              int64      `grove:"fee_rate" bson:"fee_rate"`
	MinSubscriptionPrice moneyModel `grove:"min_subscription_price" bson:"min_subscription_price"`
	MaxSubscriptionPrice moneyModel `grove:"max_subscription_price" bson:"max_subscription_price"`
	Currency             string     `grove:"currency" bson:"currency"`
	UpdatedAt            time.Time  `grove:"updated_at" bson:"updated_at"`
	UpdatedBy            string     `grove:"updated_by" bson:"updated_by,omitempty"`
}

func toSettingsModel(ps *settings.Settings) *settingsModel {
	return &settingsModel{
		ID:                   settingsDocID,
		FeeRate:              int64(ps.FeeRate),
		MinSubscriptionPrice: toMoney(ps.MinSubscriptionPrice),
		MaxSubscriptionPrice: toMoney(ps.MaxSubscriptionPrice),
		Currency:             ps.Currency,
		UpdatedAt:            ps.UpdatedAt,
		UpdatedBy:            ps.UpdatedBy.String(),
	}
}

func fromSettingsModel(m *settingsModel) (*settings.Settings, error) {
	ps := &settings.Settings{
		FeeRate:              types.Rate(m.FeeRate),
		MinSubscriptionPrice: m.MinSubscriptionPrice.money(),
		MaxSubscriptionPrice: m.MaxSubscriptionPrice.money(),
		Currency:             m.Currency,
		UpdatedAt:            m.UpdatedAt.UTC(),
	}
	if err := parseIDs([]*id.ID{&ps.UpdatedBy}, m.UpdatedBy); err != nil {
		return nil, err
	}
	return ps, nil
}

// ==================== Report models ====================

type reportModel struct {
	grove.BaseModel `grove:"table:patron_reports"`

	ID             string    `grove:"id,pk" bson:"_id"`
	ReporterID     string    `grove:"reporter_id" bson:"reporter_id"`
	ReportedUserID string    `grove:"reported_user_id" bson:"reported_user_id,omitempty"`
	ReportedPostID string    `grove:"reported_post_id" bson:"reported_post_id,omitempty"`
	Reason         string    `grove:"reason" bson:"reason"`
	Status         string    `grove:"status" bson:"status"`
	AdminNotes     string    `grove:"admin_notes" bson:"admin_notes"`
	ReviewedBy     string    `grove:"reviewed_by" bson:"reviewed_by,omitempty"`
	CreatedAt      time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at" bson:"updated_at"`
}

func toReportModel(r *moderation.Report) *reportModel {
	return &reportModel{
		ID:             r.ID.String(),
		ReporterID:     r.ReporterID.String(),
		ReportedUserID: r.ReportedUserID.String(),
		ReportedPostID: r.ReportedPostID.String(),
		Reason:         r.Reason,
		Status:         string(r.Status),
		AdminNotes:     r.AdminNotes,
		ReviewedBy:     r.ReviewedBy.String(),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func fromReportModel(m *reportModel) (*moderation.Report, error) {
	r := &moderation.Report{
		Entity:     types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		Reason:     m.Reason,
		Status:     moderation.Status(m.Status),
		AdminNotes: m.AdminNotes,
	}
	err := parseIDs([]*id.ID{&r.ID, &r.ReporterID, &r.ReportedUserID, &r.ReportedPostID, &r.ReviewedBy},
		m.ID, m.ReporterID, m.ReportedUserID, m.ReportedPostID, m.ReviewedBy)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ==================== Notification & Message models ====================

type notificationModel struct {
	grove.BaseModel `grove:"table:patron_notifications"`

	ID          string    `grove:"id,pk" bson:"_id"`
	RecipientID string    `grove:"recipient_id" bson:"recipient_id"`
	Type        string    `grove:"type" bson:"type"`
	Title       string    `grove:"title" bson:"title"`
	Message     string    `grove:"message" bson:"message"`
	RelatedID   string    `grove:"related_id" bson:"related_id,omitempty"`
	Read        bool      `grove:"read" bson:"read"`
	CreatedUS   int64     `grove:"created_us" bson:"created_us"`
	CreatedAt   time.Time `grove:"created_at" bson:"created_at"`
}

func toNotificationModel(n *notification.Notification) *notificationModel {
	return &notificationModel{
		ID:          n.ID.String(),
		RecipientID: n.RecipientID.String(),
		Type:        string(n.Type),
		Title:       n.Title,
		Message:     n.Message,
		RelatedID:   n.RelatedID.String(),
		Read:        n.Read,
		CreatedUS:   n.CreatedAt.UnixMicro(),
		CreatedAt:   n.CreatedAt,
	}
}

func fromNotificationModel(m *notificationModel) (*notification.Notification, error) {
	n := &notification.Notification{
		Type:      notification.Type(m.Type),
		Title:     m.Title,
		Message:   m.Message,
		Read:      m.Read,
		CreatedAt: time.UnixMicro(m.CreatedUS).UTC(),
	}
	if err := parseIDs([]*id.ID{&n.ID, &n.RecipientID, &n.RelatedID}, m.ID, m.RecipientID, m.RelatedID); err != nil {
		return nil, err
	}
	return n, nil
}

type conversationModel struct {
	grove.BaseModel `grove:"table:patron_conversations"`

	ID            string    `grove:"id,pk" bson:"_id"`
	ParticipantA  string    `grove:"participant_a" bson:"participant_a"`
	ParticipantB  string    `grove:"participant_b" bson:"participant_b"`
	LastMessageUS int64     `grove:"last_message_us" bson:"last_message_us"`
	CreatedAt     time.Time `grove:"created_at" bson:"created_at"`
}

func toConversationModel(c *message.Conversation) *conversationModel {
	lo, hi := message.Pair(c.ParticipantA, c.ParticipantB)
	return &conversationModel{
		ID:            c.ID.String(),
		ParticipantA:  lo.String(),
		ParticipantB:  hi.String(),
		LastMessageUS: c.LastMessageAt.UnixMicro(),
		CreatedAt:     c.CreatedAt,
	}
}

func fromConversationModel(m *conversationModel) (*message.Conversation, error) {
	c := &message.Conversation{
		LastMessageAt: time.UnixMicro(m.LastMessageUS).UTC(),
		CreatedAt:     m.CreatedAt.UTC(),
	}
	if err := parseIDs([]*id.ID{&c.ID, &c.ParticipantA, &c.ParticipantB}, m.ID, m.ParticipantA, m.ParticipantB); err != nil {
		return nil, err
	}
	return c, nil
}

type messageModel struct {
	grove.BaseModel `grove:"table:patron_messages"`

	ID             string    `grove:"id,pk" bson:"_id"`
	ConversationID string    `grove:"conversation_id" bson:"conversation_id"`
	SenderID       string    `grove:"sender_id" bson:"sender_id"`
	Content        string    `grove:"content" bson:"content"`
	Read           bool      `grove:"read" bson:"read"`
	CreatedUS      int64     `grove:"created_us" bson:"created_us"`
	CreatedAt      time.Time `grove:"created_at" bson:"created_at"`
}

func toMessageModel(m *message.Message) *messageModel {
	return &messageModel{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		Content:        m.Content,
		Read:           m.Read,
		CreatedUS:      m.CreatedAt.UnixMicro(),
		CreatedAt:      m.CreatedAt,
	}
}

func fromMessageModel(m *messageModel) (*message.Message, error) {
	msg := &message.Message{Content: m.Content, Read: m.Read, CreatedAt: time.UnixMicro(m.CreatedUS).UTC()}
	if err := parseIDs([]*id.ID{&msg.ID, &msg.ConversationID, &msg.SenderID}, m.ID, m.ConversationID, m.SenderID); err != nil {
		return nil, err
	}
	return msg, nil
}
