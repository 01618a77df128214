package models

import (
	"errors"
	"strings"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
	UserStatusLocked   UserStatus = "LOCKED"
)

func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusLocked:
		return true
	}
	return false
}

type UserRole string

const (
	UserRoleAdmin  UserRole = "ADMIN"
	UserRoleMember UserRole = "USER"
)

type SortType string

const (
	SortTypeAsc  SortType = "asc"
	SortTypeDesc SortType = "desc"
)

// ParseSortType is lenient: anything other than asc (any case) means desc.
func ParseSortType(s string) SortType {
	if strings.EqualFold(strings.TrimSpace(s), string(SortTypeAsc)) {
		return SortTypeAsc
	}
	return SortTypeDesc
}

type NotificationChannel string

const (
	NotificationChannelEmail NotificationChannel = "email"
	NotificationChannelSms   NotificationChannel = "sms"
	NotificationChannelPush  NotificationChannel = "push"
)

func ParseNotificationChannel(s string) (NotificationChannel, error) {
	switch NotificationChannel(strings.ToLower(strings.TrimSpace(s))) {
	case NotificationChannelEmail:
		return NotificationChannelEmail, nil
	case NotificationChannelSms:
		return NotificationChannelSms, nil
	case NotificationChannelPush:
		return NotificationChannelPush, nil
	}
	return "", errors.New("invalid notification channel")
}

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "PENDING"
	NotificationStatusSending NotificationStatus = "SENDING"
	NotificationStatusSent    NotificationStatus = "SENT"
	NotificationStatusFailed  NotificationStatus = "FAILED"
	NotificationStatusDead    NotificationStatus = "DEAD"
)
