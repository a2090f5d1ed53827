package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Account holds stored platform credentials for one owner account.
type Account struct {
	Account        string
	Platform       string
	AccessToken    string
	MemberIdentity string
	TokenExpiresAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UpsertAccount stores or replaces credentials for an account/platform pair.
// A replaced token drops the cached member identity because it may belong to
// a different principal.
func (s *Store) UpsertAccount(ctx context.Context, account, platform, accessToken string, expiresAt *time.Time) error {
	timestamp := formatTime(time.Now().UTC())
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO accounts (account, platform, access_token, token_expires_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(account, platform) DO UPDATE SET
             access_token = excluded.access_token,
             member_identity = NULL,
             token_expires_at = excluded.token_expires_at,
             updated_at = excluded.updated_at`,
		account,
		platform,
		accessToken,
		nullableTime(expiresAt),
		timestamp,
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

// GetAccount fetches credentials for an account/platform pair. Returns nil
// when no credentials are stored.
func (s *Store) GetAccount(ctx context.Context, account, platform string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT account, platform, access_token, member_identity, token_expires_at, created_at, updated_at
         FROM accounts WHERE account = ? AND platform = ?`,
		account, platform)

	var (
		acct      Account
		identity  sql.NullString
		expiresAt sql.NullString
		createdAt sql.NullString
		updatedAt sql.NullString
	)
	err := row.Scan(&acct.Account, &acct.Platform, &acct.AccessToken, &identity, &expiresAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	acct.MemberIdentity = identity.String
	if expiresAt.Valid {
		if expiry, parseErr := parseTimeString(expiresAt.String); parseErr == nil {
			acct.TokenExpiresAt = &expiry
		}
	}
	if created, parseErr := parseTimeString(createdAt.String); parseErr == nil {
		acct.CreatedAt = created
	}
	if updated, parseErr := parseTimeString(updatedAt.String); parseErr == nil {
		acct.UpdatedAt = updated
	}
	return &acct, nil
}

// CacheAccountIdentity stores the resolved platform member identity so later
// deliveries skip the resolution round trip.
func (s *Store) CacheAccountIdentity(ctx context.Context, account, platform, identity string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE accounts SET member_identity = ?, updated_at = ? WHERE account = ? AND platform = ?`,
		nullableString(identity),
		formatTime(time.Now().UTC()),
		account,
		platform,
	)
	if err != nil {
		return fmt.Errorf("cache account identity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("cache account identity: account %s/%s not found", account, platform)
	}
	return nil
}

// RemoveAccount deletes stored credentials for an account/platform pair.
func (s *Store) RemoveAccount(ctx context.Context, account, platform string) error {
	if _, err := s.execWithRetry(ctx,
		`DELETE FROM accounts WHERE account = ? AND platform = ?`, account, platform); err != nil {
		return fmt.Errorf("remove account: %w", err)
	}
	return nil
}

// ListAccounts returns stored accounts ordered by account then platform.
// Access tokens are included; callers rendering output should redact them.
func (s *Store) ListAccounts(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account, platform, access_token, member_identity, token_expires_at, created_at, updated_at
         FROM accounts ORDER BY account, platform`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		var (
			acct      Account
			identity  sql.NullString
			expiresAt sql.NullString
			createdAt sql.NullString
			updatedAt sql.NullString
		)
		if err := rows.Scan(&acct.Account, &acct.Platform, &acct.AccessToken, &identity, &expiresAt, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		acct.MemberIdentity = identity.String
		if expiresAt.Valid {
			if expiry, parseErr := parseTimeString(expiresAt.String); parseErr == nil {
				acct.TokenExpiresAt = &expiry
			}
		}
		if created, parseErr := parseTimeString(createdAt.String); parseErr == nil {
			acct.CreatedAt = created
		}
		if updated, parseErr := parseTimeString(updatedAt.String); parseErr == nil {
			acct.UpdatedAt = updated
		}
		accounts = append(accounts, &acct)
	}
	return accounts, rows.Err()
}
