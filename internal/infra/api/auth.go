package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ===== Session/JWT primitives =====

type AuthManager struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	return &AuthManager{secret: []byte(secret), ttl: ttl}
}

type AccountClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Mint signs a token for accountID.
func (a *AuthManager) Mint(accountID string) (string, error) {
	now := time.Now()
	claims := AccountClaims{
		UserID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Subject:   accountID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*AccountClaims, error) {
	// Authorization: Bearer <jwt>
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return nil, errors.New("missing token")
	}
	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, errors.New("malformed authorization header")
	}
	return a.parse(strings.TrimSpace(parts[1]))
}

func (a *AuthManager) parse(tok string) (*AccountClaims, error) {
	claims := &AccountClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type ctxKey int

const accountKey ctxKey = iota

// AccountID returns the authenticated account of the request, or "".
func AccountID(ctx context.Context) string {
	id, _ := ctx.Value(accountKey).(string)
	return id
}

// OptionalAuth resolves the bearer token when present. Missing or invalid
// tokens leave the caller anonymous; handlers decide whether that is allowed.
func (a *AuthManager) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.ParseFromRequest(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		if rw, ok := w.(*respWriter); ok {
			rw.accountID = claims.UserID
		}
		ctx := context.WithValue(r.Context(), accountKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
