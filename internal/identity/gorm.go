package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/walletbot/ingress/internal/db"
	"github.com/walletbot/ingress/internal/models"
	internalsettings "github.com/walletbot/ingress/internal/settings"
	"gorm.io/gorm"
)

// GormAccountStore persists accounts through gorm.
type GormAccountStore struct {
	db *gorm.DB
}

// NewGormAccountStore constructs a GormAccountStore over a migrated connection.
func NewGormAccountStore(conn *gorm.DB) *GormAccountStore {
	return &GormAccountStore{db: conn}
}

// FindByExternalID implements AccountStore.
func (s *GormAccountStore) FindByExternalID(ctx context.Context, externalID int64) (models.Account, bool, error) {
	var acc models.Account
	errFind := s.db.WithContext(ctx).Where("external_id = ?", externalID).Take(&acc).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.Account{}, false, nil
		}
		return models.Account{}, false, fmt.Errorf("identity: find account: %w", errFind)
	}
	return acc, true, nil
}

// Create implements AccountStore. The sequence advance and the insert share
// one transaction; a rollback hands the number back.
func (s *GormAccountStore) Create(ctx context.Context, draft models.Account, address func(int64) string) (models.Account, error) {
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, errSeq := db.NextSequenceValue(tx, internalsettings.AccountNumberSequence)
		if errSeq != nil {
			return errSeq
		}
		draft.AccountNumber = number
		draft.DerivedAddress = address(number)
		if errCreate := tx.Create(&draft).Error; errCreate != nil {
			if db.IsUniqueViolation(errCreate) {
				return ErrAccountExists
			}
			return fmt.Errorf("identity: insert account: %w", errCreate)
		}
		return nil
	})
	if errTx != nil {
		return models.Account{}, errTx
	}
	return draft, nil
}

// TouchLastSeen implements AccountStore.
func (s *GormAccountStore) TouchLastSeen(ctx context.Context, externalID int64, at time.Time) error {
	errUpdate := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("external_id = ?", externalID).
		Update("last_seen", at).Error
	if errUpdate != nil {
		return fmt.Errorf("identity: touch account: %w", errUpdate)
	}
	return nil
}
