package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
	"gorm.io/gorm"
)

type UserGroup struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUserGroup struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=255"`
	IsActive    *bool  `json:"is_active"`
}

type UserGroupFilter struct {
	Name     string
	IsActive *bool
	SortKey  string
	SortType SortType
	Page     PageRequest
}

var userGroupSorts = map[string]string{
	"id":         "id",
	"name":       "name",
	"created_at": "created_at",
}

func (input *NewUserGroup) validate(ctx context.Context, db *gorm.DB, id int) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return utils.NewValidationError("name", "is required")
	}
	var count int64
	err := db.WithContext(ctx).Model(&UserGroup{}).
		Where("name = ? AND id <> ?", input.Name, id).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return utils.NewValidationError("name", "duplicate user group name")
	}
	return nil
}

func ListUserGroups(ctx context.Context, db *gorm.DB, filter UserGroupFilter) (*Page[UserGroup], error) {
	q := ListQuery{SortKey: filter.SortKey, SortType: filter.SortType, Page: filter.Page}
	if name := strings.TrimSpace(filter.Name); name != "" {
		q.Where("name LIKE ?", "%"+name+"%")
	}
	if filter.IsActive != nil {
		q.Where("is_active = ?", *filter.IsActive)
	}
	return FindPage[UserGroup](db.WithContext(ctx), q, userGroupSorts, "id")
}

func GetUserGroup(ctx context.Context, db *gorm.DB, id int) (*UserGroup, error) {
	var group UserGroup
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &group, nil
}

func CreateUserGroup(ctx context.Context, db *gorm.DB, input *NewUserGroup) (*UserGroup, error) {
	if err := input.validate(ctx, db, 0); err != nil {
		return nil, err
	}

	group := UserGroup{
		Name:        input.Name,
		Description: input.Description,
		IsActive:    input.IsActive,
	}
	if group.IsActive == nil {
		group.IsActive = utils.NewTrue()
	}
	if err := db.WithContext(ctx).Create(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func UpdateUserGroup(ctx context.Context, db *gorm.DB, id int, input *NewUserGroup) (*UserGroup, error) {
	group, err := GetUserGroup(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, db, id); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"name":        input.Name,
		"description": input.Description,
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if err := db.WithContext(ctx).Model(group).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetUserGroup(ctx, db, id)
}

// DeleteUserGroup refuses while any user is still assigned.
func DeleteUserGroup(ctx context.Context, db *gorm.DB, id int) (*UserGroup, error) {
	group, err := GetUserGroup(ctx, db, id)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := db.WithContext(ctx).Model(&User{}).Where("user_group_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewValidationError("id", "user group still has assigned users")
	}

	if err := db.WithContext(ctx).Delete(group).Error; err != nil {
		return nil, err
	}
	return group, nil
}

// AssignUsersToGroup moves the given users into group id. Every user id must exist.
func AssignUsersToGroup(ctx context.Context, db *gorm.DB, id int, userIds []int) (int64, error) {
	if _, err := GetUserGroup(ctx, db, id); err != nil {
		return 0, err
	}
	userIds = utils.UniqueSlice(userIds)
	if len(userIds) == 0 {
		return 0, utils.NewValidationError("user_ids", "at least one user is required")
	}

	var affected int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&User{}).Where("id IN ?", userIds).Count(&count).Error; err != nil {
			return err
		}
		if count != int64(len(userIds)) {
			return utils.NewValidationError("user_ids", "one or more users do not exist")
		}
		res := tx.Model(&User{}).Where("id IN ?", userIds).Update("user_group_id", id)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}
