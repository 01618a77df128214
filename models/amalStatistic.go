package models

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const DateLayout = "2006-01-02"

// UserAmalStatistic is one day of AMAL flow for a user and coin, written by the statistics pipeline.
type UserAmalStatistic struct {
	ID            int             `gorm:"primary_key" json:"id"`
	UserId        int             `gorm:"not null;uniqueIndex:idx_amal_user_coin_date,priority:1" json:"user_id"`
	Coin          string          `gorm:"size:20;not null;uniqueIndex:idx_amal_user_coin_date,priority:2" json:"coin"`
	StatisticDate time.Time       `gorm:"type:date;not null;uniqueIndex:idx_amal_user_coin_date,priority:3" json:"statistic_date"`
	AmalIn        decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"amal_in"`
	AmalOut       decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"amal_out"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TradingVolumeStatistic is one day of traded volume for a user and coin.
type TradingVolumeStatistic struct {
	ID            int             `gorm:"primary_key" json:"id"`
	UserId        int             `gorm:"not null;uniqueIndex:idx_volume_user_coin_date,priority:1" json:"user_id"`
	Coin          string          `gorm:"size:20;not null;uniqueIndex:idx_volume_user_coin_date,priority:2" json:"coin"`
	StatisticDate time.Time       `gorm:"type:date;not null;uniqueIndex:idx_volume_user_coin_date,priority:3" json:"statistic_date"`
	Volume        decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"volume"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// FlowAmounts carries stored amounts verbatim so malformed values surface at parse time.
type FlowAmounts struct {
	AmalIn  string
	AmalOut string
}

// FlowRecordStore reads user_amal_statistics over gorm.
type FlowRecordStore struct {
	DB *gorm.DB
}

// FlowRecords returns the user's rows for coin with statistic_date in [start, end].
func (s FlowRecordStore) FlowRecords(ctx context.Context, userId int, coin string, start time.Time, end time.Time) ([]FlowAmounts, error) {
	var rows []FlowAmounts
	err := s.DB.WithContext(ctx).Model(&UserAmalStatistic{}).
		Select("CAST(amal_in AS CHAR) AS amal_in", "CAST(amal_out AS CHAR) AS amal_out").
		Where("user_id = ? AND coin = ?", userId, strings.ToUpper(coin)).
		Where("statistic_date BETWEEN ? AND ?", start.Format(DateLayout), end.Format(DateLayout)).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
