package library

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Default admin credential seeded on first run.
const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin123"
)

// Credential is the admin login. Only the bcrypt hash is stored.
type Credential struct {
	Username     string
	PasswordHash []byte
}

// Authenticator checks and maintains the admin credential.
type Authenticator struct {
	store  CredentialStore
	cost   int
	logger *zap.Logger
}

// AuthOption configures an Authenticator.
type AuthOption func(*Authenticator)

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) AuthOption {
	return func(a *Authenticator) { a.cost = cost }
}

// WithAuthLogger sets the logger.
func WithAuthLogger(l *zap.Logger) AuthOption {
	return func(a *Authenticator) { a.logger = l }
}

func NewAuthenticator(store CredentialStore, opts ...AuthOption) *Authenticator {
	a := &Authenticator{store: store, cost: bcrypt.DefaultCost, logger: zap.NewNop()}
	for _, o := range opts {
		o(a)
	}
	a.logger = a.logger.With(zap.String("component", "auth"))
	return a
}

// EnsureDefault seeds the credential when none exists. It reports whether
// a credential was created.
func (a *Authenticator) EnsureDefault(ctx context.Context, username, password string) (bool, error) {
	_, ok, err := a.store.LoadCredential(ctx)
	if err != nil {
		return false, fmt.Errorf("load credential: %w", err)
	}
	if ok {
		return false, nil
	}
	cred, err := a.hash(username, password)
	if err != nil {
		return false, err
	}
	if err := a.store.SaveCredential(ctx, cred); err != nil {
		return false, &PersistenceError{Op: "seed credential", Err: err}
	}
	a.logger.Info("seeded default admin credential", zap.String("username", cred.Username))
	return true, nil
}

// Verify returns ErrInvalidCredentials unless username and password match.
func (a *Authenticator) Verify(ctx context.Context, username, password string) error {
	cred, ok, err := a.store.LoadCredential(ctx)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	if !ok || cred.Username != username {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("compare password: %w", err)
	}
	return nil
}

// ChangePassword replaces the password after verifying the old one.
func (a *Authenticator) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if err := a.Verify(ctx, username, oldPassword); err != nil {
		return err
	}
	cred, err := a.hash(username, newPassword)
	if err != nil {
		return err
	}
	if err := a.store.SaveCredential(ctx, cred); err != nil {
		return &PersistenceError{Op: "change password", Err: err}
	}
	a.logger.Info("admin password changed", zap.String("username", username))
	return nil
}

func (a *Authenticator) hash(username, password string) (Credential, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Credential{}, invalid("username", "must not be empty")
	}
	if password == "" {
		return Credential{}, invalid("password", "must not be empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return Credential{}, invalid("password", err.Error())
	}
	return Credential{Username: username, PasswordHash: h}, nil
}
