package models

import (
	"time"
)

// WebhookLog is an append-only audit row for every delivered payment
// event, including simulated and manual ones. Rows are never updated.
type WebhookLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Event      string    `gorm:"type:varchar(60);not null" json:"event"`
	PaymentID  string    `gorm:"type:varchar(64);index" json:"payment_id"`
	Status     string    `gorm:"type:varchar(20)" json:"status"`
	RawPayload string    `gorm:"type:text" json:"raw_payload"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

// PaymentMirror caches the latest status seen for a gateway payment id.
// It is not authoritative; the orders table is the source of truth.
type PaymentMirror struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PaymentID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"payment_id"`
	OrderID   uint      `gorm:"index" json:"order_id"`
	Status    string    `gorm:"type:varchar(20);not null" json:"status"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
