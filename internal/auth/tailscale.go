package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"tailscale.com/client/tailscale/apitype"

	"github.com/mozzarellastix/SWE-App/internal/models"
)

// WhoIser identifies a tailnet peer by address. *tailscale.LocalClient
// satisfies it.
type WhoIser interface {
	WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
}

// UserProvisioner stores identities minted outside the database.
type UserProvisioner interface {
	UpsertUser(ctx context.Context, u *models.User) error
}

// TailnetAuthenticator extracts the Tailscale identity from requests arriving
// over the tailnet and mirrors it into the user table, so tailnet users can
// chat with local accounts.
type TailnetAuthenticator struct {
	lc    WhoIser
	users UserProvisioner
}

// NewTailnetAuthenticator creates a new authenticator.
func NewTailnetAuthenticator(lc WhoIser, users UserProvisioner) *TailnetAuthenticator {
	return &TailnetAuthenticator{lc: lc, users: users}
}

// GetUser implements Authenticator.
func (a *TailnetAuthenticator) GetUser(ctx context.Context, r *http.Request) (*models.User, error) {
	who, err := a.lc.WhoIs(ctx, r.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to get caller identity: %w", err)
	}

	if who.UserProfile == nil {
		return nil, fmt.Errorf("no user profile for caller")
	}

	user := &models.User{
		ID:       int64(who.UserProfile.ID),
		Username: tailnetUsername(who.UserProfile.LoginName),
		Email:    who.UserProfile.LoginName,
	}
	if err := a.users.UpsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("provision tailnet user %d: %w", user.ID, err)
	}
	return user, nil
}

// tailnetUsername derives a username from a login name like "sam@example.edu".
func tailnetUsername(loginName string) string {
	name, _, _ := strings.Cut(loginName, "@")
	if name == "" {
		return loginName
	}
	return name
}
