package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
	"gorm.io/gorm"
)

type PasswordReset struct {
	ID        int        `gorm:"primary_key" json:"id"`
	UserId    int        `gorm:"not null;index" json:"user_id"`
	Email     string     `gorm:"size:191;not null;index" json:"email"`
	TokenHash string     `gorm:"size:255;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type PasswordResetConfirm struct {
	Email    string `json:"email" binding:"required,email"`
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

const passwordResetLockTTL = 10 * time.Second

// RequestPasswordReset issues a reset token and queues it by email.
// Unknown emails return nil so callers cannot probe for accounts.
func RequestPasswordReset(ctx context.Context, db *gorm.DB, email string, ttl time.Duration) error {
	email = strings.ToLower(strings.TrimSpace(email))

	return utils.WithRedisLock(ctx, "PasswordReset", email, passwordResetLockTTL, "PasswordReset", "RequestPasswordReset", func() error {
		user, err := findUserByEmail(ctx, db, email)
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil
		} else if err != nil {
			return err
		}
		if user.Status != UserStatusActive {
			return nil
		}

		token, err := utils.GenerateResetToken()
		if err != nil {
			return err
		}
		hashed, err := utils.HashPassword(token)
		if err != nil {
			return err
		}

		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			reset := PasswordReset{
				UserId:    user.ID,
				Email:     user.Email,
				TokenHash: string(hashed),
				ExpiresAt: time.Now().UTC().Add(ttl),
			}
			if err := tx.Create(&reset).Error; err != nil {
				return err
			}
			_, err := EnqueueNotification(ctx, tx, &NewNotification{
				Channel:   string(NotificationChannelEmail),
				Recipient: user.Email,
				Subject:   "Password reset",
				Body:      fmt.Sprintf("Your password reset code is %s. It expires in %d minutes.", token, int(ttl.Minutes())),
			})
			return err
		})
	})
}

// ConfirmPasswordReset checks token against the newest open reset for email and sets the new password.
func ConfirmPasswordReset(ctx context.Context, db *gorm.DB, input *PasswordResetConfirm) error {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	var reset PasswordReset
	err := db.WithContext(ctx).
		Where("email = ? AND used_at IS NULL AND expires_at > ?", email, time.Now().UTC()).
		Order("id DESC").
		Take(&reset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrInvalidResetToken
		}
		return err
	}
	if err := utils.ComparePassword(reset.TokenHash, input.Token); err != nil {
		return utils.ErrInvalidResetToken
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&PasswordReset{}).
			Where("id = ? AND used_at IS NULL", reset.ID).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrInvalidResetToken
		}
		return tx.Model(&User{}).Where("id = ?", reset.UserId).Update("password", string(hashed)).Error
	})
}
