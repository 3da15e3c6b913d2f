package token

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed = errors.New("malformed token")
	ErrNoExpiry  = errors.New("token has no exp claim")
)

// Codec reads claims from bearer tokens without verifying their signature.
// Verification is the backend's job; the portal only needs to know when a
// token is worth presenting.
type Codec struct {
	parser *jwt.Parser
	now    func() time.Time
}

// NewCodec builds a codec. A nil clock defaults to time.Now.
func NewCodec(now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}
	return &Codec{parser: jwt.NewParser(), now: now}
}

// ExpiresAt returns the exp claim of tokenStr.
func (c *Codec) ExpiresAt(tokenStr string) (time.Time, error) {
	if strings.Count(tokenStr, ".") != 2 {
		return time.Time{}, ErrMalformed
	}

	claims := jwt.MapClaims{}
	if _, _, err := c.parser.ParseUnverified(tokenStr, claims); err != nil {
		return time.Time{}, errors.Join(ErrMalformed, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, errors.Join(ErrMalformed, err)
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

// IsExpired reports whether tokenStr is past its exp claim. Anything that
// cannot be decoded counts as expired. That includes a readable payload
// behind a header that is not JSON or that names an alg the jwt library has
// no signing method for, since ParseUnverified rejects both.
func (c *Codec) IsExpired(tokenStr string) bool {
	exp, err := c.ExpiresAt(tokenStr)
	if err != nil {
		return true
	}
	return exp.Before(c.now())
}
