package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dapurlima/backend/internal/domain"
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

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"owner": {
				StaffID:   "staff-owner",
				Username:  "owner",
				Password:  "owner123",
				Role:      domain.RoleOwner,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)
	_, err := manager.Login(domain.LoginRequest{
		Username: "owner",
		Password: "owner123",
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
	if users[0].Password == "owner123" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
}

func TestCreateStaffStoresPasswordHash(t *testing.T) {
	store := &userStoreStub{users: map[string]domain.UserAccount{}}
	manager := NewAuthManager("test-secret", time.Hour, store)

	staff, err := manager.CreateStaff(domain.StaffCreateRequest{
		Username:   "kasirbaru",
		Password:   "pass1234",
		Role:       domain.RoleCashier,
		OutletID:   "outlet-pusat",
		ShiftStart: "08:00",
		ShiftEnd:   "18:00",
	})
	if err != nil {
		t.Fatalf("create staff failed: %v", err)
	}
	if staff.Username != "kasirbaru" {
		t.Fatalf("unexpected username %s", staff.Username)
	}
	if staff.StaffID == "" {
		t.Fatalf("expected staff id to be assigned")
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	var found *domain.UserAccount
	for i := range users {
		if users[i].Username == "kasirbaru" {
			found = &users[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("expected staff to be saved")
	}
	if found.Password == "pass1234" {
		t.Fatalf("expected staff password to be hashed")
	}
	if !strings.HasPrefix(found.Password, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", found.Password)
	}

	_, err = manager.Login(domain.LoginRequest{
		Username: "kasirbaru",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("login with hashed staff password failed: %v", err)
	}
}

func TestCreateStaffRejectsBadInput(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{users: map[string]domain.UserAccount{}})

	if _, err := manager.CreateStaff(domain.StaffCreateRequest{Username: "ab", Password: "pass1234"}); err == nil {
		t.Fatalf("expected error for short username")
	}
	if _, err := manager.CreateStaff(domain.StaffCreateRequest{Username: "validname", Password: "123"}); err == nil {
		t.Fatalf("expected error for short password")
	}
	if _, err := manager.CreateStaff(domain.StaffCreateRequest{Username: "validname", Password: "pass1234", Role: "ceo"}); err == nil {
		t.Fatalf("expected error for unknown role")
	}
	if _, err := manager.CreateStaff(domain.StaffCreateRequest{Username: "validname", Password: "pass1234", ShiftStart: "25:99"}); err == nil {
		t.Fatalf("expected error for malformed shift hours")
	}
}

func TestVerifyCredentialReturnsActor(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"manager": {
				StaffID:   "staff-manager",
				Username:  "manager",
				Password:  mustHashPassword(t, "manager123"),
				Role:      domain.RoleManager,
				OutletID:  "outlet-pusat",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
			"inactive": {
				StaffID:   "staff-gone",
				Username:  "inactive",
				Password:  mustHashPassword(t, "gone1234"),
				Role:      domain.RoleManager,
				Active:    false,
				CreatedAt: time.Now().UTC(),
			},
		},
	}
	manager := NewAuthManager("test-secret", time.Hour, store)

	actor, err := manager.VerifyCredential(context.Background(), "manager", "manager123")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if actor.StaffID != "staff-manager" || actor.Role != domain.RoleManager || actor.OutletID != "outlet-pusat" {
		t.Fatalf("unexpected actor: %+v", actor)
	}

	if _, err := manager.VerifyCredential(context.Background(), "manager", "wrong"); err == nil {
		t.Fatalf("expected error for wrong password")
	}
	if _, err := manager.VerifyCredential(context.Background(), "inactive", "gone1234"); err == nil {
		t.Fatalf("expected error for inactive account")
	}
	if _, err := manager.VerifyCredential(context.Background(), "ghost", "whatever"); err == nil {
		t.Fatalf("expected error for unknown account")
	}
}

func TestParseTokenCarriesShiftClaims(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"kasir1": {
				StaffID:    "staff-kasir-1",
				Username:   "kasir1",
				Password:   mustHashPassword(t, "cashier123"),
				Role:       domain.RoleCashier,
				OutletID:   "outlet-pusat",
				ShiftStart: "08:00",
				ShiftEnd:   "18:00",
				Active:     true,
				CreatedAt:  time.Now().UTC(),
			},
		},
	}
	manager := NewAuthManager("test-secret", time.Hour, store)

	resp, err := manager.Login(domain.LoginRequest{Username: "kasir1", Password: "cashier123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "kasir1" || actor.StaffID != "staff-kasir-1" {
		t.Fatalf("unexpected identity claims: %+v", actor)
	}
	if actor.OutletID != "outlet-pusat" || actor.ShiftStart != "08:00" || actor.ShiftEnd != "18:00" {
		t.Fatalf("unexpected shift claims: %+v", actor)
	}
}

func TestParseTokenRejectsForeignSignature(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"kasir1": {
				StaffID:   "staff-kasir-1",
				Username:  "kasir1",
				Password:  mustHashPassword(t, "cashier123"),
				Role:      domain.RoleCashier,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}
	issuer := NewAuthManager("secret-one", time.Hour, store)
	verifier := NewAuthManager("secret-two", time.Hour, store)

	resp, err := issuer.Login(domain.LoginRequest{Username: "kasir1", Password: "cashier123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := verifier.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}
