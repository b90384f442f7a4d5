package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSignup_NormalizesAndHashes(t *testing.T) {
	a := newAccounts(t, newSQLiteStore(t))
	ctx := context.Background()

	u, err := a.Signup(ctx, SignupInput{
		Name:            "  Ada   Lovelace ",
		Email:           "  Ada@Example.COM ",
		Password:        "correct horse",
		PasswordConfirm: "correct horse",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if u.Name != "Ada Lovelace" {
		t.Fatalf("unexpected name %q", u.Name)
	}
	if u.Email != "ada@example.com" {
		t.Fatalf("unexpected email %q", u.Email)
	}
	if u.PasswordHash == "" || strings.Contains(u.PasswordHash, "correct horse") {
		t.Fatalf("password not hashed: %q", u.PasswordHash)
	}
	if len(u.ID) != 26 {
		t.Fatalf("expected ulid id, got %q", u.ID)
	}
}

func TestSignup_Validation(t *testing.T) {
	a := newAccounts(t, newSQLiteStore(t))
	ctx := context.Background()

	cases := []struct {
		name  string
		in    SignupInput
		field string
		msg   string
	}{
		{"missing name", SignupInput{Email: "a@b.co", Password: "12345678", PasswordConfirm: "12345678"}, "name", "Please tell us your name"},
		{"bad email", SignupInput{Name: "A", Email: "nope", Password: "12345678", PasswordConfirm: "12345678"}, "email", "Please provide a valid email"},
		{"short password", SignupInput{Name: "A", Email: "a@b.co", Password: "short", PasswordConfirm: "short"}, "password", "A password must have at least 8 characters"},
		{"mismatch", SignupInput{Name: "A", Email: "a@b.co", Password: "12345678", PasswordConfirm: "87654321"}, "passwordConfirm", "The Passwords do not match"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Signup(ctx, tc.in)
			if !IsInvalidInput(err) {
				t.Fatalf("expected invalid input, got %v", err)
			}
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			found := false
			for _, f := range ve.Fields {
				if f.Field == tc.field && f.Message == tc.msg {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %s=%q in %+v", tc.field, tc.msg, ve.Fields)
			}
			if !strings.Contains(ve.Message(), tc.msg) {
				t.Fatalf("message %q lacks %q", ve.Message(), tc.msg)
			}
		})
	}
}

func TestSignup_DuplicateEmailConflicts(t *testing.T) {
	a := newAccounts(t, newSQLiteStore(t))
	ctx := context.Background()

	in := SignupInput{Name: "A", Email: "dup@example.com", Password: "12345678", PasswordConfirm: "12345678"}
	if _, err := a.Signup(ctx, in); err != nil {
		t.Fatalf("signup 1: %v", err)
	}
	in.Email = "DUP@example.com"
	_, err := a.Signup(ctx, in)
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var ce ConflictError
	if !errors.As(err, &ce) || ce.Field != "email" {
		t.Fatalf("expected email conflict, got %+v", ce)
	}
}

func TestAuthenticate(t *testing.T) {
	a := newAccounts(t, newSQLiteStore(t))
	ctx := context.Background()

	created, err := a.Signup(ctx, SignupInput{Name: "A", Email: "a@example.com", Password: "12345678", PasswordConfirm: "12345678"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	u, err := a.Authenticate(ctx, " A@Example.com", "12345678")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, u.ID)
	}

	if _, err := a.Authenticate(ctx, "a@example.com", "wrong-password"); !IsInvalidCredentials(err) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := a.Authenticate(ctx, "ghost@example.com", "12345678"); !IsInvalidCredentials(err) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}
	if _, err := a.Authenticate(ctx, "", "12345678"); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	a := newAccounts(t, newSQLiteStore(t))
	ctx := context.Background()

	u, err := a.Signup(ctx, SignupInput{Name: "A", Email: "a@example.com", Password: "12345678", PasswordConfirm: "12345678"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := a.ChangePassword(ctx, u.ID, "bad-current", "abcdefgh", "abcdefgh", now); !IsInvalidCredentials(err) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := a.ChangePassword(ctx, u.ID, "12345678", "abcdefgh", "abcdefgX", now); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	updated, err := a.ChangePassword(ctx, u.ID, "12345678", "abcdefgh", "abcdefgh", now)
	if err != nil {
		t.Fatalf("change: %v", err)
	}
	if updated.PasswordChangedAt == nil || !updated.PasswordChangedAt.Equal(now.Add(-time.Second)) {
		t.Fatalf("unexpected changedAt %v", updated.PasswordChangedAt)
	}

	if _, err := a.Authenticate(ctx, "a@example.com", "abcdefgh"); err != nil {
		t.Fatalf("authenticate with new password: %v", err)
	}
	if _, err := a.Authenticate(ctx, "a@example.com", "12345678"); !IsInvalidCredentials(err) {
		t.Fatalf("old password must fail, got %v", err)
	}

	stored, err := a.Lookup(ctx, u.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stored.PasswordChangedAt == nil || !stored.PasswordChangedAt.Equal(now.Add(-time.Second)) {
		t.Fatalf("stored changedAt %v", stored.PasswordChangedAt)
	}
}

func TestChangedPasswordAfter(t *testing.T) {
	changed := time.Date(2026, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
	u := User{PasswordChangedAt: &changed}

	if !u.ChangedPasswordAfter(changed.Add(-2 * time.Second)) {
		t.Fatalf("token issued before change must be stale")
	}
	if u.ChangedPasswordAfter(changed.Truncate(time.Second)) {
		t.Fatalf("token issued in the same second must stay valid")
	}
	if u.ChangedPasswordAfter(changed.Add(time.Second)) {
		t.Fatalf("token issued after change must stay valid")
	}
	if (User{}).ChangedPasswordAfter(time.Unix(0, 0)) {
		t.Fatalf("users without a change are never stale")
	}
}

func TestLookupAndDelete(t *testing.T) {
	a := newAccounts(t, newSQLiteStore(t))
	ctx := context.Background()

	if _, err := a.Lookup(ctx, ""); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	u, err := a.Signup(ctx, SignupInput{Name: "A", Email: "a@example.com", Password: "12345678", PasswordConfirm: "12345678"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := a.Delete(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := a.Lookup(ctx, u.ID); !IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := a.Delete(ctx, u.ID); !IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestValidEmail(t *testing.T) {
	good := []string{"a@b.co", "first.last+tag@example.org"}
	bad := []string{"", "plain", "a@b", "Ann <a@b.co>", "a@@b.co"}

	for _, s := range good {
		if !ValidEmail(s) {
			t.Fatalf("expected %q valid", s)
		}
	}
	for _, s := range bad {
		if ValidEmail(s) {
			t.Fatalf("expected %q invalid", s)
		}
	}
}
