package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/bankverify/bankverify/internal/logging"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: " Agent@Example.com ", Password: "correct-horse", Role: RoleManager})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "agent@example.com" || !user.Can(PermProfilesRead) || user.Can(PermUsersManage) {
		t.Fatalf("unexpected user %+v", user)
	}

	authed, err := svc.Authenticate(ctx, Credentials{Email: "AGENT@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.ID != user.ID || authed.LastLogin == nil {
		t.Fatalf("expected last login to be stamped, got %+v", authed)
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "password1"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Authenticate(ctx, Credentials{Email: "a@example.com", Password: "wrong-pass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, Credentials{Email: "nobody@example.com", Password: "password1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected unknown email to look like bad credentials, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	ctx := context.Background()

	cases := []RegisterInput{
		{Email: "not-an-email", Password: "password1"},
		{Email: "b@example.com", Password: "short"},
		{Email: "b@example.com", Password: "password1", Role: "owner"},
	}
	for _, in := range cases {
		if _, err := svc.Register(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected invalid input for %+v, got %v", in, err)
		}
	}
	user, err := svc.Register(ctx, RegisterInput{Email: "b@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != RoleAgent || user.Can(PermProfilesRead) {
		t.Fatalf("expected agent defaults, got %+v", user)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "b@example.com", Password: "password1"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	ctx := context.Background()

	if created, err := svc.EnsureBootstrapAdmin(ctx, "", ""); err != nil || created {
		t.Fatalf("expected no-op without credentials, got %v %v", created, err)
	}
	created, err := svc.EnsureBootstrapAdmin(ctx, "root@example.com", "bootstrap-pass")
	if err != nil || !created {
		t.Fatalf("expected admin to be created, got %v %v", created, err)
	}
	created, err = svc.EnsureBootstrapAdmin(ctx, "root@example.com", "bootstrap-pass")
	if err != nil || created {
		t.Fatalf("expected second call to be a no-op, got %v %v", created, err)
	}
	users, _ := svc.List(ctx)
	if len(users) != 1 || users[0].Role != RoleAdmin || !users[0].Can(PermUsersManage) {
		t.Fatalf("unexpected users %+v", users)
	}
}
