package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mozzarellastix/SWE-App/internal/models"
)

const tokenIssuer = "sweapp"

// Claims is the payload of a session token.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer. ttl bounds every token it signs.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for user.
func (t *TokenIssuer) Issue(user *models.User) (string, error) {
	now := t.now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Validate checks signature, issuer and expiry and returns the claims.
func (t *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}

// UserLookup resolves a user ID to the stored account.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// BearerAuthenticator authenticates requests carrying a session token, either
// in the Authorization header or, for browser WebSocket clients that cannot
// set headers, in the "token" query parameter.
type BearerAuthenticator struct {
	tokens *TokenIssuer
	users  UserLookup
}

// NewBearerAuthenticator creates a bearer authenticator.
func NewBearerAuthenticator(tokens *TokenIssuer, users UserLookup) *BearerAuthenticator {
	return &BearerAuthenticator{tokens: tokens, users: users}
}

// GetUser implements Authenticator.
func (b *BearerAuthenticator) GetUser(ctx context.Context, r *http.Request) (*models.User, error) {
	raw := bearerToken(r)
	if raw == "" {
		return nil, errors.New("no bearer token")
	}
	claims, err := b.tokens.Validate(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	user, err := b.users.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("token user %d: %w", claims.UserID, err)
	}
	return user, nil
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
