package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long an issued session token stays valid. Tokens are
// stateless; there is no revocation, logout is client-side discard.
const TokenTTL = 24 * time.Hour

// Sentinel errors returned by Verify.
var (
	ErrTokenExpired = errors.New("auth: token expired")
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Claims defines the JWT claims structure.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Tokens signs and validates session tokens with a process-wide secret.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

// NewTokens creates a token issuer/verifier for the given signing secret.
func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret), now: time.Now}
}

// Issue creates a new signed token embedding the user's ID, expiring TokenTTL
// from now.
func (t *Tokens) Issue(userID string) (string, error) {
	now := t.now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses and validates a token string and returns the embedded user ID.
// Expired tokens return ErrTokenExpired; any other failure (bad signature,
// malformed token, wrong algorithm) returns ErrTokenInvalid.
func (t *Tokens) Verify(tokenStr string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	if !token.Valid {
		return "", ErrTokenInvalid
	}
	return claims.UserID, nil
}
