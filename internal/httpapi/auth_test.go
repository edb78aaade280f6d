package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"salesdesk/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func stubWithUser(username string, password string, role string, active bool) *userStoreStub {
	return &userStoreStub{
		users: map[string]domain.UserAccount{
			username: {
				Username:  username,
				Password:  password,
				Role:      role,
				Active:    active,
				CreatedAt: time.Now().UTC(),
			},
		},
	}
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := stubWithUser("admin", "admin123", "admin", true)

	manager := NewAuthManager("test-secret", time.Hour, store)
	_, err := manager.Login(domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Password == "admin123" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
}

func TestLoginAndParseTokenRoundTrip(t *testing.T) {
	store := stubWithUser("clerk", "clerk123", "clerk", true)
	manager := NewAuthManager("test-secret", time.Hour, store)

	resp, err := manager.Login(domain.LoginRequest{Username: "Clerk", Password: "clerk123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != "clerk" {
		t.Fatalf("expected clerk role, got %s", resp.Role)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "clerk" || actor.Role != "clerk" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	store := stubWithUser("clerk", "clerk123", "clerk", true)
	manager := NewAuthManager("test-secret", time.Hour, store)

	resp, err := manager.Login(domain.LoginRequest{Username: "clerk", Password: "clerk123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := manager.ParseToken(resp.AccessToken + "x"); err == nil {
		t.Fatalf("expected tampered token to fail")
	}

	other := NewAuthManager("different-secret", time.Hour, store)
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to fail")
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	store := stubWithUser("clerk", "clerk123", "clerk", false)
	manager := NewAuthManager("test-secret", time.Hour, store)

	_, err := manager.Login(domain.LoginRequest{Username: "clerk", Password: "clerk123"})
	if err == nil {
		t.Fatalf("expected login to fail for inactive account")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	store := stubWithUser("clerk", "clerk123", "clerk", true)
	manager := NewAuthManager("test-secret", time.Hour, store)

	token, err := manager.sign("clerk", "clerk", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := manager.ParseToken(token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}
