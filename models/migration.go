package models

import (
	"gorm.io/gorm"
)

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{}, &UserGroup{},
		&UserAmalStatistic{}, &TradingVolumeStatistic{},
		&Setting{}, &Instrument{},
		&Notification{}, &PasswordReset{},
	)
}
