package auth

import (
	"context"
	"testing"
	"time"

	"github.com/mues-io/muesd/iface"
	"github.com/mues-io/muesd/internal/adapters/userstore"
)

func authRequest(username, password string, result chan<- bool) iface.AuthenticationRequest {
	return iface.AuthenticationRequest{
		Username: username,
		Password: password,
		Success:  func(iface.User) { result <- true },
		Failure:  func(iface.FailureReason) { result <- false },
	}
}

func setup(t *testing.T) *userstore.MemoryStore {
	t.Helper()
	s := userstore.New()
	if _, err := s.CreateUser(context.Background(), "ged"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := s.SetPassword("ged", "testing"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	return s
}

func TestAuthenticateSucceedsWithCorrectPassword(t *testing.T) {
	store := setup(t)
	p := New(store, store)

	resultCh := make(chan bool, 1)
	p.Authenticate(context.Background(), authRequest("ged", "testing", resultCh))

	select {
	case ok := <-resultCh:
		if !ok {
			t.Fatal("expected authentication to succeed")
		}
	case <-time.After(time.Second):
		t.Fatal("Authenticate never called back")
	}
}

func TestAuthenticateFailsWithWrongPassword(t *testing.T) {
	store := setup(t)
	p := New(store, store)

	resultCh := make(chan bool, 1)
	p.Authenticate(context.Background(), authRequest("ged", "wrong", resultCh))

	select {
	case ok := <-resultCh:
		if ok {
			t.Fatal("expected authentication to fail")
		}
	case <-time.After(time.Second):
		t.Fatal("Authenticate never called back")
	}
}

func TestAuthenticateFailsForUnknownUser(t *testing.T) {
	store := setup(t)
	p := New(store, store)

	resultCh := make(chan bool, 1)
	p.Authenticate(context.Background(), authRequest("nobody", "anything", resultCh))

	select {
	case ok := <-resultCh:
		if ok {
			t.Fatal("expected authentication to fail for an unknown user")
		}
	case <-time.After(time.Second):
		t.Fatal("Authenticate never called back")
	}
}
