// Package auth implements the token verifiers used during the HELLO
// handshake: HS256-signed JWTs for real clients and an unsigned development
// codec that is only honoured when explicitly enabled.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"roomrelay/domain"
)

// Claims carried by an access token. The subject is the user ID.
type Claims struct {
	OrgID string `json:"org_id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

type JWTVerifier struct {
	secret []byte
	leeway time.Duration
}

func NewJWTVerifier(secret string, leeway time.Duration) (*JWTVerifier, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 characters")
	}
	return &JWTVerifier{secret: []byte(secret), leeway: leeway}, nil
}

// Verify checks the signature and expiry of an HS256 token and returns the
// identity in its claims.
func (v *JWTVerifier) Verify(_ context.Context, token string) (domain.Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	id := domain.Identity{
		UserID: claims.Subject,
		OrgID:  claims.OrgID,
		Email:  claims.Email,
		Name:   claims.Name,
	}
	if err := validateIdentity(id); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// Sign issues a token for id that expires after ttl.
func (v *JWTVerifier) Sign(id domain.Identity, ttl time.Duration) (string, error) {
	if err := validateIdentity(id); err != nil {
		return "", err
	}
	now := time.Now()
	claims := Claims{
		OrgID: id.OrgID,
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func validateIdentity(id domain.Identity) error {
	switch {
	case !domain.IsUUID(id.UserID):
		return fmt.Errorf("%w: userId must be a uuid", domain.ErrInvalidToken)
	case !domain.IsUUID(id.OrgID):
		return fmt.Errorf("%w: orgId must be a uuid", domain.ErrInvalidToken)
	case id.Email == "":
		return fmt.Errorf("%w: missing email", domain.ErrInvalidToken)
	case id.Name == "":
		return fmt.Errorf("%w: missing name", domain.ErrInvalidToken)
	}
	return nil
}
