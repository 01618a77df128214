package models

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
	"gorm.io/gorm"
)

// Notification is an outbox row; NotificationDispatcher publishes it to the channel's topic.
type Notification struct {
	ID            int                 `gorm:"primary_key" json:"id"`
	Channel       NotificationChannel `gorm:"type:enum('email','sms','push');not null;index" json:"channel"`
	Recipient     string              `gorm:"size:255;not null" json:"recipient"`
	Subject       string              `gorm:"size:255" json:"subject"`
	Body          string              `gorm:"type:text;not null" json:"body"`
	Status        NotificationStatus  `gorm:"size:20;not null;default:PENDING;index:idx_notification_dispatch,priority:1" json:"status"`
	Attempts      int                 `gorm:"not null;default:0" json:"attempts"`
	LastError     *string             `gorm:"type:text" json:"last_error"`
	NextAttemptAt *time.Time          `gorm:"index:idx_notification_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt      *time.Time          `json:"-"`
	LockedBy      *string             `gorm:"size:64" json:"-"`
	MessageId     *string             `gorm:"size:255" json:"message_id"`
	SentAt        *time.Time          `json:"sent_at"`
	CorrelationId string              `gorm:"size:64" json:"correlation_id"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewNotification struct {
	Channel   string `json:"channel" binding:"required"`
	Recipient string `json:"recipient" binding:"required,max=255"`
	Subject   string `json:"subject" binding:"max=255"`
	Body      string `json:"body" binding:"required"`
}

type NotificationFilter struct {
	Channel string
	Status  string
	Page    PageRequest
}

// NotificationMessage is the Pub/Sub payload.
type NotificationMessage struct {
	NotificationId int                 `json:"notification_id"`
	Channel        NotificationChannel `json:"channel"`
	Recipient      string              `json:"recipient"`
	Subject        string              `json:"subject,omitempty"`
	Body           string              `json:"body"`
	CorrelationId  string              `json:"correlation_id,omitempty"`
}

func (n Notification) Message() ([]byte, error) {
	return json.Marshal(NotificationMessage{
		NotificationId: n.ID,
		Channel:        n.Channel,
		Recipient:      n.Recipient,
		Subject:        n.Subject,
		Body:           n.Body,
		CorrelationId:  n.CorrelationId,
	})
}

// validate normalizes the recipient for its channel.
func (input *NewNotification) validate() (NotificationChannel, string, error) {
	channel, err := ParseNotificationChannel(input.Channel)
	if err != nil {
		return "", "", utils.NewValidationError("channel", "must be one of email, sms, push")
	}
	recipient := strings.TrimSpace(input.Recipient)
	if strings.TrimSpace(input.Body) == "" {
		return "", "", utils.NewValidationError("body", "is required")
	}

	switch channel {
	case NotificationChannelEmail:
		recipient = strings.ToLower(recipient)
		if !utils.IsValidEmail(recipient) {
			return "", "", utils.NewValidationError("recipient", "invalid email address")
		}
		if strings.TrimSpace(input.Subject) == "" {
			return "", "", utils.NewValidationError("subject", "is required for email")
		}
	case NotificationChannelSms:
		formatted, err := utils.FormatE164(recipient, utils.CountryCode)
		if err != nil {
			return "", "", utils.NewValidationError("recipient", "invalid phone number")
		}
		recipient = formatted
	case NotificationChannelPush:
		if recipient == "" {
			return "", "", utils.NewValidationError("recipient", "device token is required")
		}
	}
	return channel, recipient, nil
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
		return v
	}
	return uuid.NewString()
}

// EnqueueNotification stores a PENDING notification on db, which may be a transaction.
func EnqueueNotification(ctx context.Context, db *gorm.DB, input *NewNotification) (*Notification, error) {
	channel, recipient, err := input.validate()
	if err != nil {
		return nil, err
	}

	notification := Notification{
		Channel:       channel,
		Recipient:     recipient,
		Subject:       strings.TrimSpace(input.Subject),
		Body:          input.Body,
		Status:        NotificationStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	if err := db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, err
	}
	return &notification, nil
}

func ListNotifications(ctx context.Context, db *gorm.DB, filter NotificationFilter) (*Page[Notification], error) {
	q := ListQuery{SortKey: "id", SortType: SortTypeDesc, Page: filter.Page}
	if filter.Channel != "" {
		channel, err := ParseNotificationChannel(filter.Channel)
		if err != nil {
			return nil, utils.NewValidationError("channel", "must be one of email, sms, push")
		}
		q.Where("channel = ?", channel)
	}
	if status := strings.ToUpper(strings.TrimSpace(filter.Status)); status != "" {
		q.Where("status = ?", status)
	}
	return FindPage[Notification](db.WithContext(ctx), q, map[string]string{"id": "id"}, "id")
}
