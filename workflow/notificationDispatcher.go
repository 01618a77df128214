package workflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/syamai/exchange-future-backend-unified-sub002/config"
	"github.com/syamai/exchange-future-backend-unified-sub002/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxRetryBackoff = 10 * time.Minute

// Publisher delivers a payload to a topic and returns the broker's message id.
type Publisher interface {
	Publish(ctx context.Context, topicName string, data []byte, attrs map[string]string) (string, error)
}

type NotificationDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	Publisher    Publisher
	Topics       map[models.NotificationChannel]string
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewNotificationDispatcher(db *gorm.DB, logger *logrus.Logger, publisher Publisher, settings config.Settings) *NotificationDispatcher {
	return &NotificationDispatcher{
		DB:        db,
		Logger:    logger,
		Publisher: publisher,
		Topics: map[models.NotificationChannel]string{
			models.NotificationChannelEmail: settings.EmailTopic,
			models.NotificationChannelSms:   settings.SmsTopic,
			models.NotificationChannelPush:  settings.PushTopic,
		},
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   time.Second,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    10,
		InitialBackoff: 5 * time.Second,
	}
}

func (d *NotificationDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := d.DispatchOnce(ctx); err != nil && d.Logger != nil {
			config.LogError(d.Logger, "NotificationDispatcher", "Run", "dispatching batch", nil, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// claim marks a batch SENDING under row locks. Rows over MaxAttempts go DEAD instead.
func (d *NotificationDispatcher) claim(ctx context.Context, now time.Time) ([]models.Notification, error) {
	staleBefore := now.Add(-d.LockTimeout)

	var claimed []models.Notification
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// PENDING/FAILED rows that are due, plus SENDING rows whose dispatcher died
		err := tx.
			Where(`
				(status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?))
				OR
				(status = ? AND locked_at IS NOT NULL AND locked_at <= ?)
			`, []models.NotificationStatus{models.NotificationStatusPending, models.NotificationStatusFailed}, now, models.NotificationStatusSending, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Find(&claimed).Error
		if err != nil {
			return err
		}

		for i := range claimed {
			if d.MaxAttempts > 0 && claimed[i].Attempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].Status = models.NotificationStatusDead
				if err := tx.Model(&models.Notification{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"status":          models.NotificationStatusDead,
					"last_error":      &msg,
					"next_attempt_at": nil,
					"locked_at":       nil,
					"locked_by":       nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].Status = models.NotificationStatusSending
			claimed[i].Attempts++
			if err := tx.Model(&models.Notification{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"status":          models.NotificationStatusSending,
				"locked_at":       &now,
				"locked_by":       d.DispatcherID,
				"attempts":        gorm.Expr("attempts + 1"),
				"last_error":      nil,
				"next_attempt_at": nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// DispatchOnce publishes one batch and returns how many notifications were sent.
func (d *NotificationDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	if d.DB == nil || d.Publisher == nil {
		return 0, nil
	}
	now := time.Now().UTC()

	claimed, err := d.claim(ctx, now)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, n := range claimed {
		if n.Status == models.NotificationStatusDead {
			continue
		}
		msgID, pubErr := d.publish(ctx, n)
		if pubErr != nil {
			d.markFailed(ctx, n, pubErr)
			continue
		}
		d.markSent(ctx, n, msgID)
		sent++
	}
	return sent, nil
}

func (d *NotificationDispatcher) publish(ctx context.Context, n models.Notification) (string, error) {
	topic := d.Topics[n.Channel]
	if topic == "" {
		return "", fmt.Errorf("no topic configured for channel %q", n.Channel)
	}
	data, err := n.Message()
	if err != nil {
		return "", err
	}
	return d.Publisher.Publish(ctx, topic, data, map[string]string{
		"channel":         string(n.Channel),
		"notification_id": strconv.Itoa(n.ID),
		"correlation_id":  n.CorrelationId,
	})
}

func (d *NotificationDispatcher) markSent(ctx context.Context, n models.Notification, msgID string) {
	now := time.Now().UTC()
	err := d.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", n.ID).
		Updates(map[string]interface{}{
			"status":          models.NotificationStatusSent,
			"sent_at":         &now,
			"message_id":      &msgID,
			"locked_at":       nil,
			"locked_by":       nil,
			"next_attempt_at": nil,
		}).Error
	if err != nil && d.Logger != nil {
		config.LogError(d.Logger, "NotificationDispatcher", "markSent", "updating notification", n.ID, err)
	}
}

// retryBackoff doubles initial per prior attempt, capped at maxRetryBackoff.
func retryBackoff(initial time.Duration, attempt int) time.Duration {
	backoff := initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return backoff
}

func (d *NotificationDispatcher) markFailed(ctx context.Context, n models.Notification, pubErr error) {
	db := d.DB.WithContext(ctx)
	msg := pubErr.Error()

	if d.MaxAttempts > 0 && n.Attempts >= d.MaxAttempts {
		err := db.Model(&models.Notification{}).
			Where("id = ?", n.ID).
			Updates(map[string]interface{}{
				"status":          models.NotificationStatusDead,
				"last_error":      &msg,
				"next_attempt_at": nil,
				"locked_at":       nil,
				"locked_by":       nil,
			}).Error

		if d.Logger != nil {
			if err != nil {
				config.LogError(d.Logger, "NotificationDispatcher", "markFailed", "moving notification to DEAD", n.ID, err)
			}
			d.Logger.WithFields(logrus.Fields{
				"module":          "NotificationDispatcher",
				"notification_id": n.ID,
				"channel":         n.Channel,
				"attempt":         n.Attempts,
			}).Error("notification moved to DEAD after max attempts: " + msg)
		}
		return
	}

	next := time.Now().UTC().Add(retryBackoff(d.InitialBackoff, n.Attempts))
	err := db.Model(&models.Notification{}).
		Where("id = ?", n.ID).
		Updates(map[string]interface{}{
			"status":          models.NotificationStatusFailed,
			"last_error":      &msg,
			"next_attempt_at": &next,
			"locked_at":       nil,
			"locked_by":       nil,
		}).Error

	if d.Logger != nil {
		if err != nil {
			config.LogError(d.Logger, "NotificationDispatcher", "markFailed", "scheduling notification retry", n.ID, err)
		}
		d.Logger.WithFields(logrus.Fields{
			"module":          "NotificationDispatcher",
			"notification_id": n.ID,
			"channel":         n.Channel,
			"attempt":         n.Attempts,
			"next_attempt_at": next.Format(time.RFC3339Nano),
		}).Error("notification publish failed: " + msg)
	}
}
