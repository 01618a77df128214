package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Setting struct {
	Key       string    `gorm:"primary_key;size:100" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Setting) TableName() string {
	return "site_settings"
}

type NewSettingValue struct {
	Value *string `json:"value" binding:"required"`
}

/*
caches:
	Setting:$key
*/

func ListSettings(ctx context.Context, db *gorm.DB) ([]Setting, error) {
	results := make([]Setting, 0)
	if err := db.WithContext(ctx).Order("`key`").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetSetting(ctx context.Context, db *gorm.DB, key string) (*Setting, error) {
	key = strings.TrimSpace(key)
	return utils.CacheOrLoad(ctx, key, utils.GetCacheLifespan(), func() (*Setting, error) {
		var setting Setting
		if err := db.WithContext(ctx).Where("`key` = ?", key).Take(&setting).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, utils.ErrorRecordNotFound
			}
			return nil, err
		}
		return &setting, nil
	})
}

// UpsertSetting writes key and drops its cache entry.
func UpsertSetting(ctx context.Context, db *gorm.DB, key string, value string) (*Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > 100 {
		return nil, utils.NewValidationError("key", "must be 1-100 characters")
	}

	setting := Setting{Key: key, Value: value}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Setting](ctx, key); err != nil {
		return nil, err
	}
	return &setting, nil
}
