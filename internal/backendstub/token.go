package backendstub

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/courier-portal/internal/domain"
)

// TokenKind separates access from refresh tokens.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Claims describes the JWT payload issued by the stub.
type Claims struct {
	UserType domain.IdentityType `json:"userType"`
	Kind     TokenKind           `json:"typ"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 tokens.
type TokenManager struct {
	secret []byte
}

// NewTokenManager builds a manager signing with secret.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Issue signs a token for subjectID that expires after ttl. A negative ttl
// yields a token that is already expired.
func (tm *TokenManager) Issue(subjectID string, userType domain.IdentityType, kind TokenKind, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserType: userType,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
}

// Parse validates tokenStr and checks it is of the expected kind.
func (tm *TokenManager) Parse(tokenStr string, kind TokenKind) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Kind != kind {
		return nil, errors.New("unexpected token kind")
	}
	return claims, nil
}
