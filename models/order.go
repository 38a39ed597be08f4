package models

import (
	"time"
)

// Payment status values. Orders start as PENDING; every other value is
// reached only through a webhook delivery or a manual admin override.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
	StatusOverdue   = "OVERDUE"
	StatusRefunded  = "REFUNDED"
)

// Payment methods accepted by the checkout.
const (
	MethodPix        = "pix"
	MethodCreditCard = "creditCard"
)

// IsTerminalStatus reports whether no further transition is expected
// under normal operation.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusConfirmed, StatusCancelled, StatusRefunded, StatusOverdue:
		return true
	}
	return false
}

// Order is a checkout order. PaymentID stays nil until a gateway charge
// has been created for it.
type Order struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	CustomerName  string     `gorm:"type:varchar(120);not null" json:"customer_name"`
	CustomerEmail string     `gorm:"type:varchar(120);not null" json:"customer_email"`
	CustomerTaxID string     `gorm:"type:varchar(20);not null" json:"customer_tax_id"`
	CustomerPhone string     `gorm:"type:varchar(20)" json:"customer_phone"`
	ProductName   string     `gorm:"type:varchar(120);not null" json:"product_name"`
	Amount        float64    `gorm:"type:decimal(10,2);not null" json:"amount"`
	PaymentMethod string     `gorm:"type:varchar(20);not null;default:'pix'" json:"payment_method"`
	Status        string     `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	PaymentID     *string    `gorm:"type:varchar(64);index" json:"payment_id,omitempty"`
	ExternalRef   string     `gorm:"type:varchar(64);index" json:"external_ref"`
	PixPayload    string     `gorm:"type:text" json:"pix_payload,omitempty"`
	PixImage      string     `gorm:"type:mediumtext" json:"pix_image,omitempty"`
	PixExpiresAt  *time.Time `json:"pix_expires_at,omitempty"`
	UsedKeyID     *uint      `json:"used_key_id,omitempty"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
}
