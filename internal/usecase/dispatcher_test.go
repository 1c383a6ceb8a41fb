package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/mallkit/passport/internal/core/domain"
	"github.com/mallkit/passport/internal/infra/security"
)

func memberLookup(t *testing.T, principals map[string]*domain.Principal) *fakeLookup {
	t.Helper()
	return &fakeLookup{userType: domain.UserTypeMember, principals: principals}
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return hash
}

func TestAuthenticateSuccess(t *testing.T) {
	lookup := memberLookup(t, map[string]*domain.Principal{
		"alice": {
			SubjectID:       "member-1",
			UserType:        domain.UserTypeMember,
			CredentialsHash: hashOf(t, "s3cret!"),
			Enabled:         true,
			Authorities:     []string{"ROLE_MEMBER"},
		},
	})
	d := NewCredentialDispatcher(true, zap.NewNop(), lookup)

	principal, err := d.Authenticate(context.Background(), domain.UserTypeMember, "alice", "s3cret!")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if principal.SubjectID != "member-1" {
		t.Fatalf("subject = %q, want member-1", principal.SubjectID)
	}
	if !principal.HasAuthority("ROLE_MEMBER") {
		t.Fatal("expected ROLE_MEMBER authority")
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	lookup := memberLookup(t, map[string]*domain.Principal{
		"alice": {SubjectID: "member-1", CredentialsHash: hashOf(t, "s3cret!"), Enabled: true},
	})
	d := NewCredentialDispatcher(true, zap.NewNop(), lookup)

	if _, err := d.Authenticate(context.Background(), domain.UserTypeMember, "alice", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("err = %v, want ErrBadCredentials", err)
	}
}

func TestAuthenticateUnknownAccountHidden(t *testing.T) {
	d := NewCredentialDispatcher(true, zap.NewNop(), memberLookup(t, nil))

	if _, err := d.Authenticate(context.Background(), domain.UserTypeMember, "ghost", "pw"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("err = %v, want ErrBadCredentials when hiding", err)
	}
}

func TestAuthenticateUnknownAccountSurfaced(t *testing.T) {
	d := NewCredentialDispatcher(false, zap.NewNop(), memberLookup(t, nil))

	if _, err := d.Authenticate(context.Background(), domain.UserTypeMember, "ghost", "pw"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound when not hiding", err)
	}
}

func TestAuthenticateDisabledAccount(t *testing.T) {
	lookup := memberLookup(t, map[string]*domain.Principal{
		"alice": {SubjectID: "member-1", CredentialsHash: hashOf(t, "s3cret!"), Enabled: false},
	})
	d := NewCredentialDispatcher(true, zap.NewNop(), lookup)

	if _, err := d.Authenticate(context.Background(), domain.UserTypeMember, "alice", "s3cret!"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("err = %v, want ErrAccountDisabled", err)
	}
}

func TestAuthenticateMissingHash(t *testing.T) {
	lookup := memberLookup(t, map[string]*domain.Principal{
		"alice": {SubjectID: "member-1", Enabled: true},
	})
	d := NewCredentialDispatcher(true, zap.NewNop(), lookup)

	if _, err := d.Authenticate(context.Background(), domain.UserTypeMember, "alice", "anything"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("err = %v, want ErrBadCredentials", err)
	}
}

func TestAuthenticateNoBackendForUserType(t *testing.T) {
	d := NewCredentialDispatcher(true, zap.NewNop(), memberLookup(t, nil))

	if _, err := d.Authenticate(context.Background(), domain.UserTypeSystem, "root", "pw"); !errors.Is(err, ErrNoProviderForUserType) {
		t.Fatalf("err = %v, want ErrNoProviderForUserType", err)
	}
}

func TestAuthenticateInvalidArguments(t *testing.T) {
	d := NewCredentialDispatcher(true, zap.NewNop(), memberLookup(t, nil))
	ctx := context.Background()

	if _, err := d.Authenticate(ctx, domain.UserTypeMember, "", "pw"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty identifier err = %v, want ErrInvalidArgument", err)
	}
	if _, err := d.Authenticate(ctx, domain.UserTypeMember, "alice", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty password err = %v, want ErrInvalidArgument", err)
	}
	if _, err := d.Authenticate(ctx, domain.UserType("robot"), "alice", "pw"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("bad user type err = %v, want ErrInvalidArgument", err)
	}
}

func TestResolveSkipsPasswordCheck(t *testing.T) {
	lookup := memberLookup(t, map[string]*domain.Principal{
		"alice": {SubjectID: "member-1", Enabled: true},
	})
	d := NewCredentialDispatcher(true, zap.NewNop(), lookup)

	principal, err := d.Resolve(context.Background(), domain.UserTypeMember, "alice")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if principal.SubjectID != "member-1" {
		t.Fatalf("subject = %q, want member-1", principal.SubjectID)
	}
}

func TestDispatchOrderPrefersFirstSupportingBackend(t *testing.T) {
	first := &fakeLookup{userType: domain.UserTypeMember, principals: map[string]*domain.Principal{
		"alice": {SubjectID: "from-first", Enabled: true},
	}}
	second := &fakeLookup{userType: domain.UserTypeMember, principals: map[string]*domain.Principal{
		"alice": {SubjectID: "from-second", Enabled: true},
	}}
	d := NewCredentialDispatcher(true, zap.NewNop(), first, second)

	principal, err := d.Resolve(context.Background(), domain.UserTypeMember, "alice")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if principal.SubjectID != "from-first" {
		t.Fatalf("subject = %q, want from-first", principal.SubjectID)
	}
}
