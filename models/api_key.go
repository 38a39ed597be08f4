package models

import (
	"time"
)

// ApiKey is a gateway credential. Lower Priority values are tried first.
type ApiKey struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(80);not null" json:"name"`
	AccessToken string    `gorm:"type:varchar(255);not null" json:"access_token"`
	Sandbox     bool      `gorm:"not null;default:true" json:"sandbox"`
	Active      bool      `gorm:"not null;default:true" json:"active"`
	Priority    int       `gorm:"not null;default:1" json:"priority"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

// SettingPinnedKey is the AppSetting key holding the pinned ApiKey id.
const SettingPinnedKey = "pinned_api_key_id"

// AppSetting is a key/value configuration row.
type AppSetting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"type:varchar(80);uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"type:varchar(255);not null" json:"value"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
