package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/syamai/exchange-future-backend-unified-sub002/config"
	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
	"gorm.io/gorm"
)

type User struct {
	ID          int        `gorm:"primary_key" json:"id"`
	Email       string     `gorm:"size:191;not null;uniqueIndex" json:"email"`
	Password    string     `gorm:"size:255;not null" json:"-"`
	Status      UserStatus `gorm:"type:enum('ACTIVE','INACTIVE','LOCKED');not null;default:ACTIVE;index" json:"status"`
	Role        UserRole   `gorm:"type:enum('ADMIN','USER');not null;default:USER" json:"role"`
	UserGroupId *int       `gorm:"index" json:"user_group_id"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// DirectoryUser is the slice of a user the reports need.
type DirectoryUser struct {
	ID    int
	Email string
}

// UserDirectory reads users over gorm.
type UserDirectory struct {
	DB *gorm.DB
}

// ActiveUsers returns every ACTIVE user ordered by id.
func (d UserDirectory) ActiveUsers(ctx context.Context) ([]DirectoryUser, error) {
	var users []DirectoryUser
	err := d.DB.WithContext(ctx).Model(&User{}).
		Select("id", "email").
		Where("status = ?", UserStatusActive).
		Order("id").
		Scan(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

type LoginInfo struct {
	Token     string    `json:"token"`
	AdminId   int       `json:"admin_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserDisabled       = errors.New("user is disabled")
)

func tokenKey(token string) string {
	return "Token:" + token
}

// Login checks an admin's credentials and opens a session.
func Login(ctx context.Context, db *gorm.DB, email string, password string, lifespan time.Duration) (*LoginInfo, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user User
	err := db.WithContext(ctx).
		Where("email = ? AND role = ?", email, UserRoleAdmin).
		Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.Status != UserStatusActive {
		return nil, ErrUserDisabled
	}

	token, err := utils.JwtGenerate(user.ID, user.Email, lifespan)
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisValue(ctx, tokenKey(token), fmt.Sprint(user.ID), lifespan); err != nil {
		return nil, err
	}

	return &LoginInfo{
		Token:     token,
		AdminId:   user.ID,
		Email:     user.Email,
		ExpiresAt: time.Now().Add(lifespan),
	}, nil
}

// Logout revokes the session token carried by ctx.
func Logout(ctx context.Context) error {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return errors.New("token is required")
	}
	return config.RemoveRedisKey(ctx, tokenKey(token))
}

// SessionActive reports whether token was issued and not revoked. Without redis every valid JWT is active.
func SessionActive(ctx context.Context, token string) (bool, error) {
	if config.GetRedisDB() == nil {
		return true, nil
	}
	_, exists, err := config.GetRedisValue(ctx, tokenKey(token))
	if err != nil {
		return false, err
	}
	return exists, nil
}

func findUserByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error) {
	var user User
	err := db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpsertAdminUser creates the admin account for email or resets an existing one to an active admin with password.
func UpsertAdminUser(ctx context.Context, db *gorm.DB, email string, password string) (*User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !utils.IsValidEmail(email) {
		return nil, false, utils.NewValidationError("email", "invalid email")
	}
	if len(password) < 8 {
		return nil, false, utils.NewValidationError("password", "must be at least 8 characters")
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, false, err
	}

	existing, err := findUserByEmail(ctx, db, email)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		user := User{
			Email:    email,
			Password: string(hashed),
			Status:   UserStatusActive,
			Role:     UserRoleAdmin,
		}
		if err := db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, false, err
		}
		return &user, true, nil
	} else if err != nil {
		return nil, false, err
	}

	err = db.WithContext(ctx).Model(&User{}).Where("id = ?", existing.ID).Updates(map[string]any{
		"password": string(hashed),
		"status":   UserStatusActive,
		"role":     UserRoleAdmin,
	}).Error
	if err != nil {
		return nil, false, err
	}
	existing.Password = string(hashed)
	existing.Status = UserStatusActive
	existing.Role = UserRoleAdmin
	return existing, false, nil
}
