package models

import (
	"time"

	"gorm.io/datatypes"
)

// Session holds per-user runtime state trusted by downstream handlers.
type Session struct {
	ExternalID int64  `gorm:"primaryKey;autoIncrement:false"` // Platform-assigned user id.
	InternalID string `gorm:"type:text;not null;index"`       // Owning account's internal id.

	Authenticated bool           `gorm:"not null;default:false"` // Whether financial handlers may run.
	Preferences   datatypes.JSON `gorm:"not null"`               // Opaque key-value blob.

	LastActivity time.Time `gorm:"not null;index"`          // Last admitted request.
	CreatedAt    time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
