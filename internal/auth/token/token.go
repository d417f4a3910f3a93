package token

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tokengate/tokengate/internal/config"
)

var ErrInvalidToken = errors.New("invalid_token")

// Issuer mints and verifies the HS256 bearer tokens used by the API.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(cfg config.Config) *Issuer {
	return &Issuer{
		secret: []byte(cfg.AuthJWTSecret),
		ttl:    time.Duration(cfg.AuthTokenTTLDays) * 24 * time.Hour,
	}
}

// Issue returns a signed token for the account and its expiry.
func (i *Issuer) Issue(accountID snowflake.ID, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   accountID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse verifies a token and returns the account it was issued to.
func (i *Issuer) Parse(raw string) (snowflake.ID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, ErrInvalidToken
	}

	id, err := snowflake.ParseString(claims.Subject)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return id, nil
}
