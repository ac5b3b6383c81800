package auth

import (
	"context"
	"fmt"
	"time"
)

// Issuer exchanges client credentials for access tokens and validates them.
type Issuer struct {
	credentials *Credentials
	tokens      TokenRepository
	secret      string
	siteID      string
	ttlMinutes  int
}

// IssuerConfig configures an Issuer.
type IssuerConfig struct {
	Clients    map[string]string
	Secret     string
	SiteID     string
	TTLMinutes int
}

// NewIssuer creates an Issuer backed by tokens.
func NewIssuer(cfg IssuerConfig, tokens TokenRepository) *Issuer {
	return &Issuer{
		credentials: NewCredentials(cfg.Clients),
		tokens:      tokens,
		secret:      cfg.Secret,
		siteID:      cfg.SiteID,
		ttlMinutes:  cfg.TTLMinutes,
	}
}

// Issue authenticates the client and records a new access token.
//
// Returns:
//   - string: Signed access token
//   - *IssuedToken: The stored record
//   - error: ErrInvalidCredentials, or a signing/storage error
func (i *Issuer) Issue(ctx context.Context, clientID, secret string) (string, *IssuedToken, error) {
	if err := i.credentials.Authenticate(clientID, secret); err != nil {
		return "", nil, err
	}

	signed, claims, err := GenerateAccessToken(clientID, i.siteID, i.secret, i.ttlMinutes)
	if err != nil {
		return "", nil, err
	}

	record := &IssuedToken{
		ID:        claims.ID,
		ClientID:  clientID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := i.tokens.Create(ctx, record); err != nil {
		return "", nil, fmt.Errorf("recording token: %w", err)
	}
	return signed, record, nil
}

// Validate parses the token and checks it against the stored record.
//
// Returns:
//   - *CustomClaims: Claims of a valid token
//   - error: ErrTokenInvalid, ErrTokenExpired or ErrTokenRevoked
func (i *Issuer) Validate(ctx context.Context, token string) (*CustomClaims, error) {
	claims, err := ParseToken(token, i.secret)
	if err != nil {
		return nil, err
	}

	record, err := i.tokens.GetByID(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if record.Revoked {
		return nil, ErrTokenRevoked
	}
	if !record.Active(time.Now()) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

// Revoke revokes the token with the given JTI.
func (i *Issuer) Revoke(ctx context.Context, id string) error {
	return i.tokens.Revoke(ctx, id)
}

// PruneExpired deletes expired token records.
func (i *Issuer) PruneExpired(ctx context.Context) (int64, error) {
	return i.tokens.DeleteExpired(ctx)
}
