package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syamai/exchange-future-backend-unified-sub002/config"
	"github.com/syamai/exchange-future-backend-unified-sub002/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type published struct {
	topic string
	data  []byte
	attrs map[string]string
}

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []published
}

func (p *fakePublisher) Publish(ctx context.Context, topicName string, data []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.sent = append(p.sent, published{topic: topicName, data: data, attrs: attrs})
	return "msg-1", nil
}

func newDispatcher(t *testing.T, publisher Publisher) (*NotificationDispatcher, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	settings := config.Settings{EmailTopic: "notification-email", SmsTopic: "notification-sms", PushTopic: "notification-push"}
	return NewNotificationDispatcher(db, log, publisher, settings), mock
}

func notificationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "channel", "recipient", "subject", "body", "status", "attempts", "correlation_id"})
}

func TestDispatchOnce_PublishesAndMarksSent(t *testing.T) {
	publisher := &fakePublisher{}
	d, mock := newDispatcher(t, publisher)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `notifications` WHERE (.+) ORDER BY id ASC (.+) FOR UPDATE SKIP LOCKED").
		WillReturnRows(notificationRows().AddRow(7, "email", "a@x.com", "Hi", "Body", "PENDING", 0, "cid"))
	mock.ExpectExec("UPDATE `notifications` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `notifications` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sent, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	require.Len(t, publisher.sent, 1)
	assert.Equal(t, "notification-email", publisher.sent[0].topic)
	assert.Equal(t, "7", publisher.sent[0].attrs["notification_id"])

	var msg models.NotificationMessage
	require.NoError(t, json.Unmarshal(publisher.sent[0].data, &msg))
	assert.Equal(t, "a@x.com", msg.Recipient)
	assert.Equal(t, "cid", msg.CorrelationId)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchOnce_FailureSchedulesRetry(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker unavailable")}
	d, mock := newDispatcher(t, publisher)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `notifications`").
		WillReturnRows(notificationRows().AddRow(8, "sms", "+6591234567", "", "code", "FAILED", 2, "cid"))
	mock.ExpectExec("UPDATE `notifications` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `notifications` SET (.+)`status`=\\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sent, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchOnce_RetryUpdateErrorIsLogged(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker unavailable")}
	d, mock := newDispatcher(t, publisher)
	log, hook := test.NewNullLogger()
	d.Logger = log

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `notifications`").
		WillReturnRows(notificationRows().AddRow(10, "email", "a@x.com", "Hi", "Body", "PENDING", 0, "cid"))
	mock.ExpectExec("UPDATE `notifications` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `notifications` SET").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	sent, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	var logged bool
	for _, entry := range hook.AllEntries() {
		if entry.Data["funcName"] == "markFailed" && entry.Message == "connection reset" {
			logged = true
		}
	}
	assert.True(t, logged, "expected the failed retry update to be logged")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchOnce_ExhaustedGoesDead(t *testing.T) {
	publisher := &fakePublisher{}
	d, mock := newDispatcher(t, publisher)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `notifications`").
		WillReturnRows(notificationRows().AddRow(9, "push", "tok", "", "b", "FAILED", d.MaxAttempts, "cid"))
	mock.ExpectExec("UPDATE `notifications` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sent, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Empty(t, publisher.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchOnce_ClaimError(t *testing.T) {
	d, mock := newDispatcher(t, &fakePublisher{})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `notifications`").WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	_, err := d.DispatchOnce(context.Background())
	require.Error(t, err)
}

func TestRetryBackoff(t *testing.T) {
	cases := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{4, 40 * time.Second},
		{20, maxRetryBackoff},
	}
	for _, tc := range cases {
		if got := retryBackoff(5*time.Second, tc.attempt); got != tc.expected {
			t.Fatalf("retryBackoff(attempt=%d) expected %s, got %s", tc.attempt, tc.expected, got)
		}
	}
}
