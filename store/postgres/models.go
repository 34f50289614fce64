package postgres

import (
	"encoding/json"
	"fmt"
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

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// optional maps an empty string to NULL.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalID(i id.ID) *string { return optional(i.String()) }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// parseOptional parses a nullable ID column; NULL is id.Nil.
func parseOptional(s *string, parse func(string) (id.ID, error)) (id.ID, error) {
	if s == nil || *s == "" {
		return id.Nil, nil
	}
	return parse(*s)
}

// ==================== Profile models ====================

type profileModel struct {
	grove.BaseModel `grove:"table:patron_profiles"`

	ID                   string     `grove:"id,pk"`
	Username             *string    `grove:"username"`
	DisplayName          string     `grove:"display_name"`
	Bio                  string     `grove:"bio"`
	AvatarURL            string     `grove:"avatar_url"`
	BannerURL            string     `grove:"banner_url"`
	DateOfBirth          *time.Time `grove:"date_of_birth"`
	IsAgeVerified        bool       `grove:"is_age_verified"`
	IsCreatorVerified    bool       `grove:"is_creator_verified"`
	SubscriptionPrice    int64      `grove:"subscription_price"`
	SubscriptionCurrency string     `grove:"subscription_currency"`
	CreatedAt            time.Time  `grove:"created_at"`
	UpdatedAt            time.Time  `grove:"updated_at"`
}

func toProfileModel(p *profile.Profile) *profileModel {
	return &profileModel{
		ID:                   p.ID.String(),
		Username:             optional(p.Username),
		DisplayName:          p.DisplayName,
		Bio:                  p.Bio,
		AvatarURL:            p.AvatarURL,
		BannerURL:            p.BannerURL,
		DateOfBirth:          p.DateOfBirth,
		IsAgeVerified:        p.IsAgeVerified,
		IsCreatorVerified:    p.IsCreatorVerified,
		SubscriptionPrice:    p.SubscriptionPrice.Amount,
		SubscriptionCurrency: p.SubscriptionPrice.Currency,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

func fromProfileModel(m *profileModel) (*profile.Profile, error) {
	profileID, err := id.ParseProfileID(m.ID)
	if err != nil {
		return nil, err
	}
	return &profile.Profile{
		Entity:            types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:                profileID,
		Username:          deref(m.Username),
		DisplayName:       m.DisplayName,
		Bio:               m.Bio,
		AvatarURL:         m.AvatarURL,
		BannerURL:         m.BannerURL,
		DateOfBirth:       utc(m.DateOfBirth),
		IsAgeVerified:     m.IsAgeVerified,
		IsCreatorVerified: m.IsCreatorVerified,
		SubscriptionPrice: types.Money{Amount: m.SubscriptionPrice, Currency: m.SubscriptionCurrency},
	}, nil
}

type roleModel struct {
	grove.BaseModel `grove:"table:patron_roles"`

	ProfileID string    `grove:"profile_id,pk"`
	Role      string    `grove:"role,pk"`
	GrantedAt time.Time `grove:"granted_at"`
}

// ==================== Post models ====================

type postModel struct {
	grove.BaseModel `grove:"table:patron_posts"`

	ID          string          `grove:"id,pk"`
	CreatorID   string          `grove:"creator_id"`
	Content     string          `grove:"content"`
	Media       json.RawMessage `grove:"media,type:jsonb"`
	Visibility  string          `grove:"visibility"`
	PPVPrice    int64           `grove:"ppv_price"`
	PPVCurrency string          `grove:"ppv_currency"`
	CreatedAt   time.Time       `grove:"created_at"`
	UpdatedAt   time.Time       `grove:"updated_at"`
}

func toPostModel(p *post.Post) (*postModel, error) {
	media := p.Media
	if media == nil {
		media = []post.Media{}
	}
	raw, err := json.Marshal(media)
	if err != nil {
		return nil, err
	}
	return &postModel{
		ID:          p.ID.String(),
		CreatorID:   p.CreatorID.String(),
		Content:     p.Content,
		Media:       raw,
		Visibility:  string(p.Visibility),
		PPVPrice:    p.PPVPrice.Amount,
		PPVCurrency: p.PPVPrice.Currency,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}, nil
}

func fromPostModel(m *postModel) (*post.Post, error) {
	postID, err := id.ParsePostID(m.ID)
	if err != nil {
		return nil, err
	}
	creatorID, err := id.ParseProfileID(m.CreatorID)
	if err != nil {
		return nil, err
	}
	var media []post.Media
	if len(m.Media) > 0 {
		if err := json.Unmarshal(m.Media, &media); err != nil {
			return nil, fmt.Errorf("decode media of %s: %w", m.ID, err)
		}
	}
	if len(media) == 0 {
		media = nil
	}
	return &post.Post{
		Entity:     types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:         postID,
		CreatorID:  creatorID,
		Content:    m.Content,
		Media:      media,
		Visibility: post.Visibility(m.Visibility),
		PPVPrice:   types.Money{Amount: m.PPVPrice, Currency: m.PPVCurrency},
	}, nil
}

// ==================== Subscription models ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:patron_subscriptions"`

	ID                 string     `grove:"id,pk"`
	FanID              string     `grove:"fan_id"`
	CreatorID          string     `grove:"creator_id"`
	Status             string     `grove:"status"`
	CurrentPeriodStart time.Time  `grove:"current_period_start"`
	CurrentPeriodEnd   time.Time  `grove:"current_period_end"`
	CanceledAt         *time.Time `grove:"canceled_at"`
	ProviderRef        string     `grove:"provider_ref"`
	CreatedAt          time.Time  `grove:"created_at"`
	UpdatedAt          time.Time  `grove:"updated_at"`
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
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}
	fanID, err := id.ParseProfileID(m.FanID)
	if err != nil {
		return nil, err
	}
	creatorID, err := id.ParseProfileID(m.CreatorID)
	if err != nil {
		return nil, err
	}
	return &subscription.Subscription{
		Entity:             types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:                 subID,
		FanID:              fanID,
		CreatorID:          creatorID,
		Status:             subscription.Status(m.Status),
		CurrentPeriodStart: m.CurrentPeriodStart.UTC(),
		CurrentPeriodEnd:   m.CurrentPeriodEnd.UTC(),
		CanceledAt:         utc(m.CanceledAt),
		ProviderRef:        m.ProviderRef,
	}, nil
}

// ==================== Purchase & Tip models ====================

type purchaseModel struct {
	grove.BaseModel `grove:"table:patron_purchases"`

	ID         string    `grove:"id,pk"`
	FanID      string    `grove:"fan_id"`
	PostID     string    `grove:"post_id"`
	CreatorID  string    `grove:"creator_id"`
	Amount     int64     `grove:"amount"`
	Currency   string    `grove:"currency"`
	PaymentRef string    `grove:"payment_ref"`
	CreatedAt  time.Time `grove:"created_at"`
}

func toPurchaseModel(p *purchase.Purchase) *purchaseModel {
	return &purchaseModel{
		ID:         p.ID.String(),
		FanID:      p.FanID.String(),
		PostID:     p.PostID.String(),
		CreatorID:  p.CreatorID.String(),
		Amount:     p.Amount.Amount,
		Currency:   p.Amount.Currency,
		PaymentRef: p.PaymentRef,
		CreatedAt:  p.CreatedAt,
	}
}

func fromPurchaseModel(m *purchaseModel) (*purchase.Purchase, error) {
	purchaseID, err := id.ParsePurchaseID(m.ID)
	if err != nil {
		return nil, err
	}
	fanID, err := id.ParseProfileID(m.FanID)
	if err != nil {
		return nil, err
	}
	postID, err := id.ParsePostID(m.PostID)
	if err != nil {
		return nil, err
	}
	creatorID, err := id.ParseProfileID(m.CreatorID)
	if err != nil {
		return nil, err
	}
	return &purchase.Purchase{
		ID:         purchaseID,
		FanID:      fanID,
		PostID:     postID,
		CreatorID:  creatorID,
		Amount:     types.Money{Amount: m.Amount, Currency: m.Currency},
		PaymentRef: m.PaymentRef,
		CreatedAt:  m.CreatedAt.UTC(),
	}, nil
}

type tipModel struct {
	grove.BaseModel `grove:"table:patron_tips"`

	ID         string    `grove:"id,pk"`
	FanID      string    `grove:"fan_id"`
	CreatorID  string    `grove:"creator_id"`
	Amount     int64     `grove:"amount"`
	Currency   string    `grove:"currency"`
	Message    string    `grove:"message"`
	PaymentRef string    `grove:"payment_ref"`
	CreatedAt  time.Time `grove:"created_at"`
}

func toTipModel(t *tip.Tip) *tipModel {
	return &tipModel{
		ID:         t.ID.String(),
		FanID:      t.FanID.String(),
		CreatorID:  t.CreatorID.String(),
		Amount:     t.Amount.Amount,
		Currency:   t.Amount.Currency,
		Message:    t.Message,
		PaymentRef: t.PaymentRef,
		CreatedAt:  t.CreatedAt,
	}
}

func fromTipModel(m *tipModel) (*tip.Tip, error) {
	tipID, err := id.ParseTipID(m.ID)
	if err != nil {
		return nil, err
	}
	fanID, err := id.ParseProfileID(m.FanID)
	if err != nil {
		return nil, err
	}
	creatorID, err := id.ParseProfileID(m.CreatorID)
	if err != nil {
		return nil, err
	}
	return &tip.Tip{
		ID:         tipID,
		FanID:      fanID,
		CreatorID:  creatorID,
		Amount:     types.Money{Amount: m.Amount, Currency: m.Currency},
		Message:    m.Message,
		PaymentRef: m.PaymentRef,
		CreatedAt:  m.CreatedAt.UTC(),
	}, nil
}

// ==================== Transaction models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:patron_transactions"`

	ID         string    `grove:"id,pk"`
	CreatorID  string    `grove:"creator_id"`
	FanID      *string   `grove:"fan_id"`
	Type       string    `grove:"type"`
	Gross      int64     `grove:"gross"`
	Fee        int64     `grove:"fee"`
	Net        int64     `grove:"net"`
	Currency   string    `grove:"currency"`
	FeeRate    int64     `grove:"fee_rate"`
	SourceID   *string   `grove:"source_id"`
	PaymentRef string    `grove:"payment_ref"`
	CreatedAt  time.Time `grove:"created_at"`
}

func toTransactionModel(t *ledger.Transaction) *transactionModel {
	return &transactionModel{
		ID:         t.ID.String(),
		CreatorID:  t.CreatorID.String(),
		FanID:      optionalID(t.FanID),
		Type:       string(t.Type),
		Gross:      t.Gross.Amount,
		Fee:        t.Fee.Amount,
		Net:        t.Net.Amount,
		Currency:   t.Gross.Currency,
		FeeRate:    int64(t.FeeRate),
		SourceID:   optionalID(t.SourceID),
		PaymentRef: t.PaymentRef,
		CreatedAt:  t.CreatedAt,
	}
}

func fromTransactionModel(m *transactionModel) (*ledger.Transaction, error) {
	txnID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, err
	}
	creatorID, err := id.ParseProfileID(m.CreatorID)
	if err != nil {
		return nil, err
	}
	fanID, err := parseOptional(m.FanID, id.ParseProfileID)
	if err != nil {
		return nil, err
	}
	sourceID, err := parseOptional(m.SourceID, id.Parse)
	if err != nil {
		return nil, err
	}
	return &ledger.Transaction{
		ID:         txnID,
		CreatorID:  creatorID,
		FanID:      fanID,
		Type:       ledger.Type(m.Type),
		Gross:      types.Money{Amount: m.Gross, Currency: m.Currency},
		Fee:        types.Money{Amount: m.Fee, Currency: m.Currency},
		Net:        types.Money{Amount: m.Net, Currency: m.Currency},
		FeeRate:    types.Rate(m.FeeRate),
		SourceID:   sourceID,
		PaymentRef: m.PaymentRef,
		CreatedAt:  m.CreatedAt.UTC(),
	}, nil
}

// ==================== Settings models ====================

type settingsModel struct {
	grove.BaseModel `grove:"table:patron_settings"`

	Singleton            bool      `grove:"singleton,pk"`
	FeeRate              int64     `grove:"fee_rate"`
	MinSubscriptionPrice int64     `grove:"min_subscription_price"`
	MaxSubscriptionPrice int64     `grove:"max_subscription_price"`
	Currency             string    `grove:"currency"`
	UpdatedAt            time.Time `grove:"updated_at"`
	UpdatedBy            *string   `grove:"updated_by"`
}

func toSettingsModel(ps *settings.Settings) *settingsModel {
	return &settingsModel{
		Singleton:            true,
		FeeRate:              int64(ps.FeeRate),
		MinSubscriptionPrice: ps.MinSubscriptionPrice.Amount,
		MaxSubscriptionPrice: ps.MaxSubscriptionPrice.Amount,
		Currency:             ps.Currency,
		UpdatedAt:            ps.UpdatedAt,
		UpdatedBy:            optionalID(ps.UpdatedBy),
	}
}

func fromSettingsModel(m *settingsModel) (*settings.Settings, error) {
	updatedBy, err := parseOptional(m.UpdatedBy, id.ParseProfileID)
	if err != nil {
		return nil, err
	}
	return &settings.Settings{
		FeeRate:              types.Rate(m.FeeRate),
		MinSubscriptionPrice: types.Money{Amount: m.MinSubscriptionPrice, Currency: m.Currency},
		MaxSubscriptionPrice: types.Money{Amount: m.MaxSubscriptionPrice, Currency: m.Currency},
		Currency:             m.Currency,
		UpdatedAt:            m.UpdatedAt.UTC(),
		UpdatedBy:            updatedBy,
	}, nil
}

// ==================== Report models ====================

type reportModel struct {
	grove.BaseModel `grove:"table:patron_reports"`

	ID             string    `grove:"id,pk"`
	ReporterID     string    `grove:"reporter_id"`
	ReportedUserID *string   `grove:"reported_user_id"`
	ReportedPostID *string   `grove:"reported_post_id"`
	Reason         string    `grove:"reason"`
	Status         string    `grove:"status"`
	AdminNotes     string    `grove:"admin_notes"`
	ReviewedBy     *string   `grove:"reviewed_by"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toReportModel(r *moderation.Report) *reportModel {
	return &reportModel{
		ID:             r.ID.String(),
		ReporterID:     r.ReporterID.String(),
		ReportedUserID: optionalID(r.ReportedUserID),
		ReportedPostID: optionalID(r.ReportedPostID),
		Reason:         r.Reason,
		Status:         string(r.Status),
		AdminNotes:     r.AdminNotes,
		ReviewedBy:     optionalID(r.ReviewedBy),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func fromReportModel(m *reportModel) (*moderation.Report, error) {
	reportID, err := id.ParseReportID(m.ID)
	if err != nil {
		return nil, err
	}
	reporterID, err := id.ParseProfileID(m.ReporterID)
	if err != nil {
		return nil, err
	}
	userID, err := parseOptional(m.ReportedUserID, id.ParseProfileID)
	if err != nil {
		return nil, err
	}
	postID, err := parseOptional(m.ReportedPostID, id.ParsePostID)
	if err != nil {
		return nil, err
	}
	reviewedBy, err := parseOptional(m.ReviewedBy, id.ParseProfileID)
	if err != nil {
		return nil, err
	}
	return &moderation.Report{
		Entity:         types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:             reportID,
		ReporterID:     reporterID,
		ReportedUserID: userID,
		ReportedPostID: postID,
		Reason:         m.Reason,
		Status:         moderation.Status(m.Status),
		AdminNotes:     m.AdminNotes,
		ReviewedBy:     reviewedBy,
	}, nil
}

// ==================== Notification & Message models ====================

type notificationModel struct {
	grove.BaseModel `grove:"table:patron_notifications"`

	ID          string    `grove:"id,pk"`
	RecipientID string    `grove:"recipient_id"`
	Type        string    `grove:"type"`
	Title       string    `grove:"title"`
	Message     string    `grove:"message"`
	RelatedID   *string   `grove:"related_id"`
	Read        bool      `grove:"read"`
	CreatedAt   time.Time `grove:"created_at"`
}

func toNotificationModel(n *notification.Notification) *notificationModel {
	return &notificationModel{
		ID:          n.ID.String(),
		RecipientID: n.RecipientID.String(),
		Type:        string(n.Type),
		Title:       n.Title,
		Message:     n.Message,
		RelatedID:   optionalID(n.RelatedID),
		Read:        n.Read,
		CreatedAt:   n.CreatedAt,
	}
}

func fromNotificationModel(m *notificationModel) (*notification.Notification, error) {
	notificationID, err := id.ParseNotificationID(m.ID)
	if err != nil {
		return nil, err
	}
	recipientID, err := id.ParseProfileID(m.RecipientID)
	if err != nil {
		return nil, err
	}
	relatedID, err := parseOptional(m.RelatedID, id.Parse)
	if err != nil {
		return nil, err
	}
	return &notification.Notification{
		ID:          notificationID,
		RecipientID: recipientID,
		Type:        notification.Type(m.Type),
		Title:       m.Title,
		Message:     m.Message,
		RelatedID:   relatedID,
		Read:        m.Read,
		CreatedAt:   m.CreatedAt.UTC(),
	}, nil
}

type conversationModel struct {
	grove.BaseModel `grove:"table:patron_conversations"`

	ID            string    `grove:"id,pk"`
	ParticipantA  string    `grove:"participant_a"`
	ParticipantB  string    `grove:"participant_b"`
	LastMessageAt time.Time `grove:"last_message_at"`
	CreatedAt     time.Time `grove:"created_at"`
}

// toConversationModel stores participants in pair order.
func toConversationModel(c *message.Conversation) *conversationModel {
	lo, hi := message.Pair(c.ParticipantA, c.ParticipantB)
	return &conversationModel{
		ID:            c.ID.String(),
		ParticipantA:  lo.String(),
		ParticipantB:  hi.String(),
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
	}
}

func fromConversationModel(m *conversationModel) (*message.Conversation, error) {
	convID, err := id.ParseConversationID(m.ID)
	if err != nil {
		return nil, err
	}
	a, err := id.ParseProfileID(m.ParticipantA)
	if err != nil {
		return nil, err
	}
	b, err := id.ParseProfileID(m.ParticipantB)
	if err != nil {
		return nil, err
	}
	return &message.Conversation{
		ID:            convID,
		ParticipantA:  a,
		ParticipantB:  b,
		LastMessageAt: m.LastMessageAt.UTC(),
		CreatedAt:     m.CreatedAt.UTC(),
	}, nil
}

type messageModel struct {
	grove.BaseModel `grove:"table:patron_messages"`

	ID             string    `grove:"id,pk"`
	ConversationID string    `grove:"conversation_id"`
	SenderID       string    `grove:"sender_id"`
	Content        string    `grove:"content"`
	Read           bool      `grove:"read"`
	CreatedAt      time.Time `grove:"created_at"`
}

func toMessageModel(m *message.Message) *messageModel {
	return &messageModel{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		Content:        m.Content,
		Read:           m.Read,
		CreatedAt:      m.CreatedAt,
	}
}

func fromMessageModel(m *messageModel) (*message.Message, error) {
	msgID, err := id.ParseMessageID(m.ID)
	if err != nil {
		return nil, err
	}
	convID, err := id.ParseConversationID(m.ConversationID)
	if err != nil {
		return nil, err
	}
	senderID, err := id.ParseProfileID(m.SenderID)
	if err != nil {
		return nil, err
	}
	return &message.Message{
		ID:             msgID,
		ConversationID: convID,
		SenderID:       senderID,
		Content:        m.Content,
		Read:           m.Read,
		CreatedAt:      m.CreatedAt.UTC(),
	}, nil
}
