package models

import "time"

// Account is the internally provisioned record behind one chat identity.
type Account struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ExternalID    int64  `gorm:"not null;uniqueIndex"`           // Platform-assigned user id.
	InternalID    string `gorm:"type:text;not null;uniqueIndex"` // Generated once at provisioning.
	AccountNumber int64  `gorm:"not null;uniqueIndex"`           // Globally unique, sequential.

	Username       string `gorm:"type:text"`          // Platform username at provisioning time.
	DerivedAddress string `gorm:"type:text;not null"` // Public payment address.

	Active bool `gorm:"not null;default:true"` // Whether the account may transact.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	LastSeen  time.Time `gorm:"not null;index"`          // Last resolved inbound message.
}
