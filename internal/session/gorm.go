package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/walletbot/ingress/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists sessions through gorm.
type GormStore struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// NewGormStore constructs a GormStore.
func NewGormStore(db *gorm.DB, nowFn func() time.Time) *GormStore {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &GormStore{db: db, nowFn: nowFn}
}

// Touch upserts the session row: inserts an authenticated session or bumps
// last_activity of the existing one.
func (s *GormStore) Touch(ctx context.Context, externalID int64, internalID string) (models.Session, error) {
	if s == nil || s.db == nil {
		return models.Session{}, fmt.Errorf("gorm session store: not initialized")
	}
	now := s.nowFn().UTC()
	record := models.Session{
		ExternalID:    externalID,
		InternalID:    internalID,
		Authenticated: true,
		Preferences:   emptyPreferences(),
		LastActivity:  now,
		CreatedAt:     now,
	}
	if errUpsert := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_activity"}),
	}).Create(&record).Error; errUpsert != nil {
		return models.Session{}, fmt.Errorf("gorm session store: upsert: %w", errUpsert)
	}

	sess, found, errGet := s.Get(ctx, externalID)
	if errGet != nil {
		return models.Session{}, errGet
	}
	if !found {
		return models.Session{}, fmt.Errorf("gorm session store: session %d missing after upsert", externalID)
	}
	return sess, nil
}

// Get implements Store.
func (s *GormStore) Get(ctx context.Context, externalID int64) (models.Session, bool, error) {
	if s == nil || s.db == nil {
		return models.Session{}, false, fmt.Errorf("gorm session store: not initialized")
	}
	var sess models.Session
	errFind := s.db.WithContext(ctx).Where("external_id = ?", externalID).Take(&sess).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.Session{}, false, nil
		}
		return models.Session{}, false, fmt.Errorf("gorm session store: find: %w", errFind)
	}
	sess.Preferences = clonePreferences(sess.Preferences)
	return sess, true, nil
}

// Delete implements Store.
func (s *GormStore) Delete(ctx context.Context, externalID int64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm session store: not initialized")
	}
	if errDelete := s.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		Delete(&models.Session{}).Error; errDelete != nil {
		return fmt.Errorf("gorm session store: delete: %w", errDelete)
	}
	return nil
}

// Sweep implements Store.
func (s *GormStore) Sweep(ctx context.Context, idleBefore time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("gorm session store: not initialized")
	}
	res := s.db.WithContext(ctx).
		Where("last_activity < ?", idleBefore.UTC()).
		Delete(&models.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("gorm session store: sweep: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}
