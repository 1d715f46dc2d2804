package db

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/walletbot/ingress/internal/models"
	internalsettings "github.com/walletbot/ingress/internal/settings"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := Open("file:" + filepath.Join(t.TempDir(), "ingress-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return conn
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestMigrateSeedsSequenceFromExistingAccounts(t *testing.T) {
	conn := openTestDB(t)
	if errMigrate := conn.AutoMigrate(&models.Account{}); errMigrate != nil {
		t.Fatalf("pre-migrate accounts: %v", errMigrate)
	}
	now := time.Now().UTC()
	for i, number := range []int64{1, 2, 7} {
		acc := models.Account{
			ExternalID:     int64(100 + i),
			InternalID:     "internal-" + string(rune('a'+i)),
			AccountNumber:  number,
			DerivedAddress: "user@example.test",
			Active:         true,
			LastSeen:       now,
		}
		if errCreate := conn.Create(&acc).Error; errCreate != nil {
			t.Fatalf("create account: %v", errCreate)
		}
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	var seq models.Sequence
	if errFind := conn.Where("name = ?", internalsettings.AccountNumberSequence).First(&seq).Error; errFind != nil {
		t.Fatalf("find sequence: %v", errFind)
	}
	if seq.Value != 7 {
		t.Fatalf("expected sequence seeded at 7, got %d", seq.Value)
	}
}

func TestNextSequenceValueIncrements(t *testing.T) {
	conn := openTestDB(t)
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for want := int64(1); want <= 3; want++ {
		var got int64
		errTx := conn.Transaction(func(tx *gorm.DB) error {
			value, errNext := NextSequenceValue(tx, internalsettings.AccountNumberSequence)
			got = value
			return errNext
		})
		if errTx != nil {
			t.Fatalf("next value: %v", errTx)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
}

func TestNextSequenceValueRollsBackWithTransaction(t *testing.T) {
	conn := openTestDB(t)
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	errAbort := errors.New("abort")
	errTx := conn.Transaction(func(tx *gorm.DB) error {
		if _, errNext := NextSequenceValue(tx, internalsettings.AccountNumberSequence); errNext != nil {
			return errNext
		}
		return errAbort
	})
	if !errors.Is(errTx, errAbort) {
		t.Fatalf("expected abort error, got %v", errTx)
	}

	var got int64
	if errTx := conn.Transaction(func(tx *gorm.DB) error {
		value, errNext := NextSequenceValue(tx, internalsettings.AccountNumberSequence)
		got = value
		return errNext
	}); errTx != nil {
		t.Fatalf("next value: %v", errTx)
	}
	if got != 1 {
		t.Fatalf("expected rolled back sequence to hand out 1, got %d", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	conn := openTestDB(t)
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	now := time.Now().UTC()
	first := models.Account{ExternalID: 1, InternalID: "a", AccountNumber: 1, DerivedAddress: "x", Active: true, LastSeen: now}
	if errCreate := conn.Create(&first).Error; errCreate != nil {
		t.Fatalf("create first: %v", errCreate)
	}
	dup := models.Account{ExternalID: 1, InternalID: "b", AccountNumber: 2, DerivedAddress: "y", Active: true, LastSeen: now}
	errDup := conn.Create(&dup).Error
	if errDup == nil {
		t.Fatalf("expected duplicate external id to fail")
	}
	if !IsUniqueViolation(errDup) {
		t.Fatalf("expected unique violation, got %v", errDup)
	}
	if IsUniqueViolation(errors.New("connection refused")) {
		t.Fatalf("plain error must not be a unique violation")
	}
	if IsUniqueViolation(nil) {
		t.Fatalf("nil must not be a unique violation")
	}
}
