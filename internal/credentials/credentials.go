// Package credentials resolves platform access tokens for owner accounts and
// memoizes resolved platform identities so repeated deliveries skip the
// identity round trip.
package credentials

import (
	"context"
	"errors"
	"strings"
	"time"

	"prismatic/internal/queue"
	"prismatic/internal/services"
)

// ErrMissing reports that no credential is stored for the account/platform
// pair, or that the stored token has expired.
var ErrMissing = errors.New("credential missing")

// Credential is a resolved platform credential.
type Credential struct {
	AccessToken    string
	MemberIdentity string
}

// Source resolves credentials for delivery. Implementations must be safe for
// concurrent use.
type Source interface {
	Credential(ctx context.Context, account, platform string) (*Credential, error)
	CacheIdentity(ctx context.Context, account, platform, identity string) error
}

// StoreSource resolves credentials from the accounts table.
type StoreSource struct {
	store *queue.Store
	clock func() time.Time
}

// NewStoreSource builds a Source backed by the queue store.
func NewStoreSource(store *queue.Store) *StoreSource {
	return &StoreSource{store: store, clock: time.Now}
}

// Credential returns the stored credential for the account/platform pair.
// A missing row or an expired token yields ErrMissing.
func (s *StoreSource) Credential(ctx context.Context, account, platform string) (*Credential, error) {
	account = strings.TrimSpace(account)
	platform = strings.ToLower(strings.TrimSpace(platform))
	if account == "" {
		return nil, services.Wrap(services.ErrValidation, "credentials", "resolve", "owner account is empty", nil)
	}

	acct, err := s.store.GetAccount(ctx, account, platform)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "credentials", "resolve", "load account", err)
	}
	if acct == nil {
		return nil, ErrMissing
	}
	if acct.TokenExpiresAt != nil && !acct.TokenExpiresAt.After(s.clock().UTC()) {
		return nil, ErrMissing
	}
	return &Credential{
		AccessToken:    acct.AccessToken,
		MemberIdentity: acct.MemberIdentity,
	}, nil
}

// CacheIdentity stores the resolved platform identity for later deliveries.
func (s *StoreSource) CacheIdentity(ctx context.Context, account, platform, identity string) error {
	return s.store.CacheAccountIdentity(ctx, strings.TrimSpace(account), strings.ToLower(strings.TrimSpace(platform)), identity)
}
