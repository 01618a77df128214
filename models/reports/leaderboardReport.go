package reports

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/syamai/exchange-future-backend-unified-sub002/models"
	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
	"gorm.io/gorm"
)

const MaxLeaderboardSize = 100

type LeaderboardEntry struct {
	Rank   int             `json:"rank"`
	UserId int             `json:"user_id"`
	Email  string          `json:"email"`
	Volume decimal.Decimal `json:"volume"`
}

type LeaderboardQuery struct {
	StartDate time.Time
	EndDate   time.Time
	Coin      string
	Limit     int
}

// GetLeaderboard ranks active users by traded volume within the inclusive date range.
func GetLeaderboard(ctx context.Context, db *gorm.DB, q LeaderboardQuery, defaultLimit int) ([]LeaderboardEntry, error) {
	sqlTemplate := `
SELECT
    users.id AS user_id,
    users.email AS email,
    SUM(t.volume) AS volume
FROM
    trading_volume_statistics t
    JOIN users ON users.id = t.user_id
WHERE
    users.status = @status
    AND t.statistic_date BETWEEN @fromDate AND @toDate
    {{- if .coin }} AND t.coin = @coin {{- end }}
GROUP BY
    users.id, users.email
ORDER BY
    volume DESC, users.id ASC
LIMIT @limit
`
	limit := q.Limit
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}
	coin := strings.ToUpper(strings.TrimSpace(q.Coin))

	sql, err := utils.ExecTemplate(sqlTemplate, map[string]interface{}{
		"coin": coin,
	})
	if err != nil {
		return nil, err
	}

	var records []LeaderboardEntry
	err = db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"status":   models.UserStatusActive,
		"fromDate": q.StartDate.Format(models.DateLayout),
		"toDate":   q.EndDate.Format(models.DateLayout),
		"coin":     coin,
		"limit":    limit,
	}).Scan(&records).Error
	if err != nil {
		return nil, err
	}

	for i := range records {
		records[i].Rank = i + 1
	}
	if records == nil {
		records = []LeaderboardEntry{}
	}
	return records, nil
}
