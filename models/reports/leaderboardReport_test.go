package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestGetLeaderboard_RanksRows(t *testing.T) {
	db, mock := newMockDB(t)
	q := LeaderboardQuery{
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Coin:      "usdt",
	}

	mock.ExpectQuery(`SELECT (.+) FROM\s+trading_volume_statistics t\s+JOIN users (.+) AND t.coin = \?`).
		WithArgs("ACTIVE", "2024-03-01", "2024-03-31", "USDT", 10).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "email", "volume"}).
			AddRow(4, "d@x.com", "1500.25").
			AddRow(2, "b@x.com", "99.000000000000000001"))

	entries, err := GetLeaderboard(context.Background(), db, q, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 4, entries[0].UserId)
	assert.Equal(t, "1500.25", entries[0].Volume.String())
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, "99.000000000000000001", entries[1].Volume.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLeaderboard_AllCoinsAndLimitClamp(t *testing.T) {
	db, mock := newMockDB(t)
	q := LeaderboardQuery{
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Limit:     500,
	}

	mock.ExpectQuery(`SELECT (.+) FROM\s+trading_volume_statistics`).
		WithArgs("ACTIVE", "2024-01-01", "2024-01-02", MaxLeaderboardSize).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "email", "volume"}))

	entries, err := GetLeaderboard(context.Background(), db, q, 10)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLeaderboard_QueryError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT (.+) FROM\s+trading_volume_statistics`).
		WillReturnError(errors.New("db down"))

	_, err := GetLeaderboard(context.Background(), db, LeaderboardQuery{}, 10)
	require.Error(t, err)
}
