// Package session keeps per-user runtime state trusted by downstream handlers.
package session

import (
	"bytes"
	"context"
	"time"

	"github.com/walletbot/ingress/internal/models"
	"gorm.io/datatypes"
)

// Store persists sessions keyed by external id.
type Store interface {
	// Touch creates an authenticated session when none exists, otherwise it
	// refreshes LastActivity.
	Touch(ctx context.Context, externalID int64, internalID string) (models.Session, error)
	Get(ctx context.Context, externalID int64) (models.Session, bool, error)
	Delete(ctx context.Context, externalID int64) error
	// Sweep removes sessions idle since before idleBefore.
	Sweep(ctx context.Context, idleBefore time.Time) (int, error)
}

func emptyPreferences() datatypes.JSON {
	return datatypes.JSON("{}")
}

func clonePreferences(in datatypes.JSON) datatypes.JSON {
	if len(in) == 0 {
		return emptyPreferences()
	}
	return datatypes.JSON(bytes.Clone(in))
}
