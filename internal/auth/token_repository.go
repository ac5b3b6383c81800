package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// TokenRepository defines the interface for issued token persistence.
type TokenRepository interface {
	Create(ctx context.Context, token *IssuedToken) error
	GetByID(ctx context.Context, id string) (*IssuedToken, error)
	Revoke(ctx context.Context, id string) error
	RevokeAllForClient(ctx context.Context, clientID string) (int64, error)
	ListActiveByClient(ctx context.Context, clientID string) ([]IssuedToken, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// SQLiteTokenRepository implements TokenRepository using SQLite.
type SQLiteTokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new SQLite-backed token repository.
func NewTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db}
}

// Create records an issued token. ID must be the token's JTI.
func (r *SQLiteTokenRepository) Create(ctx context.Context, token *IssuedToken) error {
	if token.ID == "" {
		return fmt.Errorf("%w: missing token id", ErrTokenInvalid)
	}
	if token.IssuedAt.IsZero() {
		token.IssuedAt = time.Now().UTC().Truncate(time.Second)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_tokens (id, client_id, issued_at, expires_at, revoked)
		 VALUES (?, ?, ?, ?, ?)`,
		token.ID, token.ClientID,
		token.IssuedAt.UTC().Format(time.RFC3339),
		token.ExpiresAt.UTC().Format(time.RFC3339),
		boolToInt(token.Revoked),
	)
	if err != nil {
		return fmt.Errorf("creating api token: %w", err)
	}
	return nil
}

// GetByID retrieves a token record by its JTI.
func (r *SQLiteTokenRepository) GetByID(ctx context.Context, id string) (*IssuedToken, error) {
	t, err := scanToken(r.db.QueryRowContext(ctx,
		`SELECT id, client_id, issued_at, expires_at, revoked
		 FROM api_tokens WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("getting api token: %w", err)
	}
	return t, nil
}

// Revoke marks a single token as revoked.
func (r *SQLiteTokenRepository) Revoke(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE api_tokens SET revoked = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
		return ErrTokenNotFound
	}
	return nil
}

// RevokeAllForClient revokes every token issued to a client, for use when
// its secret is rotated.
func (r *SQLiteTokenRepository) RevokeAllForClient(ctx context.Context, clientID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE api_tokens SET revoked = 1 WHERE client_id = ? AND revoked = 0", clientID)
	if err != nil {
		return 0, fmt.Errorf("revoking tokens for client: %w", err)
	}
	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

// ListActiveByClient returns the client's non-revoked, non-expired tokens,
// newest first.
func (r *SQLiteTokenRepository) ListActiveByClient(ctx context.Context, clientID string) ([]IssuedToken, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, client_id, issued_at, expires_at, revoked
		 FROM api_tokens
		 WHERE client_id = ? AND revoked = 0 AND expires_at > ?
		 ORDER BY issued_at DESC, id`, clientID, now)
	if err != nil {
		return nil, fmt.Errorf("listing active tokens: %w", err)
	}
	defer rows.Close()

	tokens := []IssuedToken{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning token: %w", err)
		}
		tokens = append(tokens, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tokens: %w", err)
	}
	return tokens, nil
}

// DeleteExpired removes tokens that have expired, freeing storage.
// Returns the number of deleted rows.
func (r *SQLiteTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM api_tokens WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*IssuedToken, error) {
	var t IssuedToken
	var revoked int
	var issuedAt, expiresAt string

	if err := row.Scan(&t.ID, &t.ClientID, &issuedAt, &expiresAt, &revoked); err != nil {
		return nil, err
	}

	t.Revoked = revoked != 0
	t.IssuedAt, _ = time.Parse(time.RFC3339, issuedAt)   //nolint:errcheck // format is controlled
	t.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
