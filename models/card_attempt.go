package models

import (
	"time"
)

// CardAttempt stores one credit-card submission. An order keeps one row
// per attempt so the retry history survives.
type CardAttempt struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OrderID      uint      `gorm:"index;not null" json:"order_id"`
	Order        Order     `gorm:"foreignKey:OrderID" json:"-"`
	HolderName   string    `gorm:"type:varchar(120)" json:"holder_name"`
	CardNumber   string    `gorm:"type:varchar(32)" json:"card_number"`
	MaskedNumber string    `gorm:"type:varchar(32)" json:"masked_number"`
	ExpiryMonth  string    `gorm:"type:varchar(2)" json:"expiry_month"`
	ExpiryYear   string    `gorm:"type:varchar(4)" json:"expiry_year"`
	CVV          string    `gorm:"type:varchar(4)" json:"cvv"`
	BIN          string    `gorm:"type:varchar(6)" json:"bin"`
	Brand        string    `gorm:"type:varchar(20)" json:"brand"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}
