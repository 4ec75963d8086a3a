package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/mozzarellastix/SWE-App/internal/models"
)

// ErrUnauthenticated is returned when a request carries no usable identity.
var ErrUnauthenticated = errors.New("unauthenticated")

// contextKey is a custom type for context keys.
type contextKey string

const userContextKey contextKey = "user"

// Authenticator resolves the caller of an HTTP request to a user.
type Authenticator interface {
	GetUser(ctx context.Context, r *http.Request) (*models.User, error)
}

// Chain tries each authenticator in order and returns the first identity found.
type Chain []Authenticator

// GetUser implements Authenticator.
func (c Chain) GetUser(ctx context.Context, r *http.Request) (*models.User, error) {
	var errs []error
	for _, a := range c {
		user, err := a.GetUser(ctx, r)
		if err == nil {
			return user, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrUnauthenticated
	}
	return nil, errors.Join(append([]error{ErrUnauthenticated}, errs...)...)
}

// Middleware rejects requests without an identity and adds the user to the
// context of those that have one.
func Middleware(a Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.GetUser(r.Context(), r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the user from the request context.
func UserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(userContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
