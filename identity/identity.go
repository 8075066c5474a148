// Package identity is the single source of truth for who the current user is.
//
// The identity read is shared by every consumer and never issued twice
// concurrently. Sign-in, sign-out and register re-read it once their own call
// has resolved, and every status change is published to subscribers before
// the triggering call returns.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is the default marker of an authentication failure. Errors
// matching it, anywhere, force the identity to be re-read.
var ErrUnauthorized = errors.New("identity: unauthorized")

// Identity is the authenticated user as reported by the server.
type Identity struct {
	ID                 int64             `json:"id"`
	AccessToken        string            `json:"access_token,omitempty"`
	AccessTokenExpires time.Time         `json:"access_token_expires,omitempty"`
	Attributes         map[string]string `json:"attributes,omitempty"`
}

// Authenticated reports whether i is a signed in user.
func (i *Identity) Authenticated() bool {
	return i != nil && i.ID > 0
}

// ExpiresAt returns when the access token stops being valid. When the server
// omits AccessTokenExpires the exp claim of the token is used. Zero means
// unknown.
func (i *Identity) ExpiresAt() time.Time {
	if i == nil {
		return time.Time{}
	}
	if !i.AccessTokenExpires.IsZero() {
		return i.AccessTokenExpires
	}
	if i.AccessToken == "" {
		return time.Time{}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(i.AccessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func (i *Identity) id() int64 {
	if i == nil {
		return 0
	}
	return i.ID
}

// Status is the authentication state derived from the identity entry.
type Status string

const (
	StatusLoading         Status = "loading"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// Credentials sign an existing user in.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration creates a new user.
type Registration struct {
	Email      string            `json:"email"`
	Password   string            `json:"password"`
	Name       string            `json:"name,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// API is the server side of authentication.
type API interface {
	// CurrentIdentity returns the signed in user, or nil for an anonymous
	// session.
	CurrentIdentity(ctx context.Context) (*Identity, error)
	SignIn(ctx context.Context, creds Credentials) error
	SignOut(ctx context.Context) error
	Register(ctx context.Context, reg Registration) error
}

// Transition is published whenever the status or the user changes.
type Transition struct {
	From     Status
	To       Status
	Previous *Identity
	Current  *Identity
}

// SignedOut reports an authenticated session ending.
func (t Transition) SignedOut() bool {
	return t.From == StatusAuthenticated && t.To != StatusAuthenticated
}

// SignedIn reports a session becoming authenticated from any other state.
func (t Transition) SignedIn() bool {
	return t.From != StatusAuthenticated && t.To == StatusAuthenticated
}

// UserChanged reports one authenticated user replacing another.
func (t Transition) UserChanged() bool {
	return t.From == StatusAuthenticated && t.To == StatusAuthenticated &&
		t.Previous.id() != t.Current.id()
}
