package db

import (
	"errors"
	"fmt"

	"github.com/walletbot/ingress/internal/models"
	internalsettings "github.com/walletbot/ingress/internal/settings"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Account{},
		&models.Session{},
		&models.Sequence{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errSeed := ensureSequence(conn, internalsettings.AccountNumberSequence); errSeed != nil {
		return errSeed
	}
	return nil
}

// ensureSequence creates the named sequence row seeded with the current maximum
// account number, or lifts a lagging row up to it.
func ensureSequence(conn *gorm.DB, name string) error {
	var maxNumber int64
	if errMax := conn.Model(&models.Account{}).
		Select("COALESCE(MAX(account_number), 0)").
		Scan(&maxNumber).Error; errMax != nil {
		return fmt.Errorf("db: query max account number: %w", errMax)
	}

	var existing models.Sequence
	errFind := conn.Where("name = ?", name).First(&existing).Error
	switch {
	case errFind == nil:
		if existing.Value >= maxNumber {
			return nil
		}
		if errUpdate := conn.Model(&models.Sequence{}).
			Where("name = ?", name).
			Update("value", maxNumber).Error; errUpdate != nil {
			return fmt.Errorf("db: update %s sequence: %w", name, errUpdate)
		}
		return nil
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		if errCreate := conn.Create(&models.Sequence{Name: name, Value: maxNumber}).Error; errCreate != nil {
			return fmt.Errorf("db: create %s sequence: %w", name, errCreate)
		}
		return nil
	default:
		return fmt.Errorf("db: query %s sequence: %w", name, errFind)
	}
}

// NextSequenceValue increments the named sequence and returns the new value.
// It must run inside the transaction that consumes the value so a rollback
// also returns the number.
func NextSequenceValue(tx *gorm.DB, name string) (int64, error) {
	res := tx.Model(&models.Sequence{}).
		Where("name = ?", name).
		UpdateColumn("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("db: advance %s sequence: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		if errSeed := ensureSequence(tx, name); errSeed != nil {
			return 0, errSeed
		}
		return NextSequenceValue(tx, name)
	}

	var value int64
	if errPluck := tx.Model(&models.Sequence{}).
		Where("name = ?", name).
		Pluck("value", &value).Error; errPluck != nil {
		return 0, fmt.Errorf("db: read %s sequence: %w", name, errPluck)
	}
	return value, nil
}
