// Package iface defines the external interfaces the core consumes from
// collaborators it treats as black boxes: an auth provider, a user store, a
// terminal output sink, a connection listener, and a log sink. Concrete
// implementations live under internal/adapters and are wired together only
// at composition time; no core package imports an adapter.
package iface

import (
	"context"
	"errors"
	"io"
)

// ErrNoSuchUser is returned by UserStore methods when the named user does
// not exist.
var ErrNoSuchUser = errors.New("iface: no such user")

// ErrConflict is returned by UserStore.CreateUser when the name is already
// taken.
var ErrConflict = errors.New("iface: conflict")

// User is the resolved identity a successful authentication yields.
type User struct {
	ID   string
	Name string
}

// FailureReason classifies why an AuthenticationRequest was not satisfied.
type FailureReason string

const (
	FailureInvalidCredentials FailureReason = "invalid_credentials"
	FailureRateLimited        FailureReason = "rate_limited"
)

// AuthenticationRequest carries a login attempt to the AuthProvider. The
// provider must invoke exactly one of Success or Failure, synchronously or
// from another goroutine.
type AuthenticationRequest struct {
	Username   string
	Password   string
	RemoteHost string
	Success    func(User)
	Failure    func(FailureReason)
}

// AuthProvider resolves a username/password pair to a User.
type AuthProvider interface {
	Authenticate(ctx context.Context, req AuthenticationRequest)
}

// UserStore is the persistent object store's consumer-facing surface. Its
// backend is deliberately out of the core's scope; the core only ever calls
// through this interface.
type UserStore interface {
	FetchUser(ctx context.Context, name string) (User, error)
	StoreUser(ctx context.Context, u User) error
	CreateUser(ctx context.Context, name string) (User, error)
	DeleteUser(ctx context.Context, name string) error
	ListUsernames(ctx context.Context) ([]string, error)
}

// OutputSink is the terminal collaborator at the end of a stream's output
// pipeline: it renders text and produces no events.
type OutputSink interface {
	Write(rendered string) error
}

// RemoteInfo identifies the peer on the other end of an accepted
// connection.
type RemoteInfo struct {
	Host string
	Addr string
}

// Listener produces new connections, which the Engine wraps as
// KindConnectionOpened events.
type Listener interface {
	Accept(ctx context.Context) (io.ReadWriteCloser, RemoteInfo, error)
}
