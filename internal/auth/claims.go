package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// defaultAccessTokenTTL applies when the configured TTL is not positive.
const defaultAccessTokenTTL = 15 * time.Minute

// CustomClaims extends JWT standard claims with the Gray Logic site.
type CustomClaims struct {
	jwt.RegisteredClaims
	Site string `json:"site,omitempty"`
}

// GenerateAccessToken creates a signed JWT access token for an API client.
// The JTI is a fresh UUID and is returned alongside the token so it can be
// recorded for revocation.
//
// Parameters:
//   - clientID: Authenticated client, used as the subject
//   - siteID: Site the token is valid for
//   - secret: HS256 signing key
//   - ttlMinutes: Token lifetime; 15 minutes when not positive
//
// Returns:
//   - string: Signed token
//   - *CustomClaims: The claims that were signed
//   - error: If signing fails
func GenerateAccessToken(clientID, siteID, secret string, ttlMinutes int) (string, *CustomClaims, error) {
	ttl := time.Duration(ttlMinutes) * time.Minute
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}

	now := time.Now().UTC().Truncate(time.Second)
	claims := &CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Site: siteID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", nil, fmt.Errorf("signing access token: %w", err)
	}
	return signed, claims, nil
}

// ParseToken validates and parses a JWT access token, returning the custom claims.
// It checks the signature, expiry, and required fields.
func ParseToken(tokenString, secret string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing token id", ErrTokenInvalid)
	}

	return claims, nil
}
