// Package auth implements iface.AuthProvider against an iface.UserStore,
// hashing passwords with golang.org/x/crypto/bcrypt.
package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/mues-io/muesd/iface"
)

// Credentials is the store's view of a user: the identity plus the bcrypt
// hash of their password. iface.UserStore only knows about iface.User, so
// BcryptAuthProvider reads password hashes through this separate interface
// rather than through the store's persisted identities.
type Credentials interface {
	// PasswordHash returns the bcrypt hash for username, or
	// iface.ErrNoSuchUser if no such user has a credential on file.
	PasswordHash(ctx context.Context, username string) (hash []byte, err error)
}

// BcryptAuthProvider resolves AuthenticationRequests against a UserStore
// (for identity) and a Credentials source (for the password hash).
type BcryptAuthProvider struct {
	users       iface.UserStore
	credentials Credentials
}

// New constructs a BcryptAuthProvider.
func New(users iface.UserStore, credentials Credentials) *BcryptAuthProvider {
	return &BcryptAuthProvider{users: users, credentials: credentials}
}

// Authenticate implements iface.AuthProvider. It always calls exactly one
// of req.Success or req.Failure before returning.
func (p *BcryptAuthProvider) Authenticate(ctx context.Context, req iface.AuthenticationRequest) {
	user, err := p.users.FetchUser(ctx, req.Username)
	if err != nil {
		req.Failure(iface.FailureInvalidCredentials)
		return
	}

	hash, err := p.credentials.PasswordHash(ctx, req.Username)
	if err != nil {
		req.Failure(iface.FailureInvalidCredentials)
		return
	}

	if bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil {
		req.Failure(iface.FailureInvalidCredentials)
		return
	}

	req.Success(user)
}

// HashPassword bcrypt-hashes a plaintext password at the default cost, for
// use by whatever creates or resets a Credentials entry.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

var _ iface.AuthProvider = (*BcryptAuthProvider)(nil)
