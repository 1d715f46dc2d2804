package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/walletbot/ingress/internal/models"
	internalsettings "github.com/walletbot/ingress/internal/settings"
)

// Options configures a Resolver.
type Options struct {
	AddressPrefix string
	AddressDomain string
	// CreateTimeout bounds the provisioning call; zero uses the default.
	CreateTimeout time.Duration
	// OnProvision runs after a new account is persisted.
	OnProvision func(models.Account)
}

// Resolver maps external chat identities to internal accounts.
type Resolver struct {
	store         AccountStore
	locks         *keyedLock
	prefix        string
	domain        string
	createTimeout time.Duration
	onProvision   func(models.Account)
	nowFn         func() time.Time
	newID         func() string
}

// NewResolver constructs a Resolver with defaults for empty options.
func NewResolver(store AccountStore, opts Options, nowFn func() time.Time) *Resolver {
	if store == nil {
		store = NewMemoryAccountStore()
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	prefix := SanitizeUsername(opts.AddressPrefix)
	if prefix == "" {
		prefix = internalsettings.DefaultAddressPrefix
	}
	domain := opts.AddressDomain
	if domain == "" {
		domain = internalsettings.DefaultAddressDomain
	}
	timeout := opts.CreateTimeout
	if timeout <= 0 {
		timeout = internalsettings.DefaultCreateTimeout
	}
	return &Resolver{
		store:         store,
		locks:         newKeyedLock(),
		prefix:        prefix,
		domain:        domain,
		createTimeout: timeout,
		onProvision:   opts.OnProvision,
		nowFn:         nowFn,
		newID:         uuid.NewString,
	}
}

// Lookup returns the account of externalID without provisioning.
func (r *Resolver) Lookup(ctx context.Context, externalID int64) (models.Account, bool, error) {
	acc, found, errFind := r.store.FindByExternalID(ctx, externalID)
	if errFind != nil {
		return models.Account{}, false, fmt.Errorf("%w: %w", ErrResolutionFailed, errFind)
	}
	return acc, found, nil
}

// ResolveOrCreate returns the account of externalID, provisioning it on first
// contact. The check and the create run under the user's lock, so concurrent
// first contacts collapse into one account.
func (r *Resolver) ResolveOrCreate(ctx context.Context, externalID int64, hints DisplayHints) (models.Account, error) {
	unlock := r.locks.Lock(externalID)
	defer unlock()

	now := r.nowFn()
	acc, found, errFind := r.store.FindByExternalID(ctx, externalID)
	if errFind != nil {
		return models.Account{}, fmt.Errorf("%w: %w", ErrResolutionFailed, errFind)
	}
	if found {
		return r.touch(ctx, acc, now)
	}

	ctxCreate, cancel := context.WithTimeout(ctx, r.createTimeout)
	defer cancel()

	draft := models.Account{
		ExternalID: externalID,
		InternalID: r.newID(),
		Username:   SanitizeUsername(hints.Username),
		Active:     true,
		CreatedAt:  now,
		LastSeen:   now,
	}
	created, errCreate := r.store.Create(ctxCreate, draft, func(number int64) string {
		return DeriveAddress(hints.Username, r.prefix, number, r.domain)
	})
	if errors.Is(errCreate, ErrAccountExists) {
		// Another process won the insert.
		existing, ok, errReload := r.store.FindByExternalID(ctx, externalID)
		if errReload != nil {
			return models.Account{}, fmt.Errorf("%w: %w", ErrResolutionFailed, errReload)
		}
		if !ok {
			return models.Account{}, fmt.Errorf("%w: account %d vanished after conflict", ErrResolutionFailed, externalID)
		}
		return r.touch(ctx, existing, now)
	}
	if errCreate != nil {
		return models.Account{}, fmt.Errorf("%w: create account: %w", ErrResolutionFailed, errCreate)
	}

	log.WithFields(log.Fields{
		"external_id":    externalID,
		"account_number": created.AccountNumber,
		"address":        created.DerivedAddress,
	}).Info("identity: provisioned account")
	if r.onProvision != nil {
		r.onProvision(created)
	}
	return created, nil
}

func (r *Resolver) touch(ctx context.Context, acc models.Account, now time.Time) (models.Account, error) {
	if errTouch := r.store.TouchLastSeen(ctx, acc.ExternalID, now); errTouch != nil {
		return models.Account{}, fmt.Errorf("%w: %w", ErrResolutionFailed, errTouch)
	}
	acc.LastSeen = now
	return acc, nil
}
