package identity

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/walletbot/ingress/internal/models"
)

var (
	// ErrResolutionFailed wraps every infrastructure failure of ResolveOrCreate.
	ErrResolutionFailed = errors.New("identity: resolution failed")
	// ErrAccountExists is returned by AccountStore.Create when the external id
	// already has an account.
	ErrAccountExists = errors.New("identity: account already exists")
)

// DisplayHints carries transport-provided naming used at provisioning.
type DisplayHints struct {
	Username  string
	FirstName string
}

// AccountStore persists accounts.
//
// Create must allocate AccountNumber from an atomic sequence and persist the
// account all-or-nothing. address derives DerivedAddress from the allocated
// number.
type AccountStore interface {
	FindByExternalID(ctx context.Context, externalID int64) (models.Account, bool, error)
	Create(ctx context.Context, draft models.Account, address func(accountNumber int64) string) (models.Account, error)
	TouchLastSeen(ctx context.Context, externalID int64, at time.Time) error
}

// SanitizeUsername keeps the address-safe part of a platform username.
func SanitizeUsername(username string) string {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	var b strings.Builder
	for _, r := range strings.ToLower(username) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DeriveAddress builds the public address of an account: the sanitised
// username or prefix, the account number, then "@domain".
func DeriveAddress(username, prefix string, accountNumber int64, domain string) string {
	name := SanitizeUsername(username)
	if name == "" {
		name = prefix
	}
	return name + strconv.FormatInt(accountNumber, 10) + "@" + domain
}
