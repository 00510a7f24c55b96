package auth

import (
	"context"
	"errors"
	"strings"

	"fleetops/core/store"
	"fleetops/core/utils"
)

type ctxKey string

const PrincipalContextKey ctxKey = "operator"

var ErrInvalidCredentials = errors.New("invalid credentials")

// Principal is the authenticated caller of an operator route.
type Principal struct {
	UserID   int64
	Username string
	Roles    []string
}

func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(PrincipalContextKey).(*Principal)
	return p
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// Authenticator checks operator credentials against the user table.
type Authenticator struct {
	users  store.UsersStore
	logger *utils.Logger
}

func NewAuthenticator(users store.UsersStore, logger *utils.Logger) *Authenticator {
	return &Authenticator{users: users, logger: logger}
}

func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*Principal, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	ok, err := VerifyPassword(u.PasswordHash, password)
	if err != nil && a.logger != nil {
		a.logger.Printf("AUTH user=%s unreadable password hash: %v", u.Username, err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return &Principal{UserID: u.ID, Username: u.Username, Roles: u.Roles()}, nil
}

// EnsureAdmin creates the bootstrap admin when no account with that name
// exists. An existing account is left untouched.
func EnsureAdmin(ctx context.Context, users store.UsersStore, username, password string, logger *utils.Logger) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, nil
	}
	existing, err := users.FindByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	if _, err := users.Create(ctx, &store.User{Username: username, PasswordHash: hash, IsAdmin: true}); err != nil {
		return false, err
	}
	if logger != nil {
		logger.Printf("bootstrap admin %s created", username)
	}
	return true, nil
}
