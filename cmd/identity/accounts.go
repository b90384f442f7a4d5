package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"closet/cmd/identity/ids"
	"closet/cmd/security/password"
)

const maxNameLen = 80

// SignupInput is raw sign-up data as received from a client.
type SignupInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
	Now             time.Time
}

// Accounts implements the account use cases over a Store.
type Accounts struct {
	store  Store
	hasher password.Hasher

	// dummyHash keeps login timing similar for unknown emails.
	dummyHash string
}

// NewAccounts wires a store with a password hasher.
func NewAccounts(store Store, hasher password.Hasher) (*Accounts, error) {
	if store == nil {
		return nil, fmt.Errorf("identity: nil store")
	}
	dummy, err := hasher.Hash("closet-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("identity: dummy hash: %w", err)
	}
	return &Accounts{store: store, hasher: hasher, dummyHash: dummy}, nil
}

// Store returns the underlying store.
func (a *Accounts) Store() Store { return a.store }

// Signup validates input, hashes the password and creates the user.
func (a *Accounts) Signup(ctx context.Context, in SignupInput) (User, error) {
	const op = "identity.Signup"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	name := NormalizeName(in.Name)
	email := NormalizeEmail(in.Email)

	var fields []FieldError
	switch {
	case name == "":
		fields = append(fields, FieldError{Field: "name", Message: "Please tell us your name"})
	case len(name) > maxNameLen:
		fields = append(fields, FieldError{Field: "name", Message: fmt.Sprintf("A name must have at most %d characters", maxNameLen)})
	}
	switch {
	case email == "":
		fields = append(fields, FieldError{Field: "email", Message: "Please provide your email"})
	case !ValidEmail(email):
		fields = append(fields, FieldError{Field: "email", Message: "Please provide a valid email"})
	}
	switch {
	case in.Password == "":
		fields = append(fields, FieldError{Field: "password", Message: "Please provide a password"})
	default:
		if fe, bad := a.passwordRule(in.Password); bad {
			fields = append(fields, fe)
		}
	}
	if in.PasswordConfirm != in.Password {
		fields = append(fields, FieldError{Field: "passwordConfirm", Message: "The Passwords do not match"})
	}
	if len(fields) > 0 {
		return User{}, ValidationError{Op: op, Fields: fields}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	hash, err := a.hasher.Hash(in.Password)
	if err != nil {
		return User{}, invalid(op, err.Error())
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	return a.store.CreateUser(ctx, NewUser{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now.UTC(),
	})
}

// Authenticate returns the user owning email when plain matches its hash.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (a *Accounts) Authenticate(ctx context.Context, email, plain string) (User, error) {
	const op = "identity.Authenticate"

	email = NormalizeEmail(email)
	if email == "" || plain == "" {
		return User{}, invalid(op, "email and password are required")
	}

	u, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			_, _ = a.hasher.Verify(a.dummyHash, plain)
			return User{}, OpError{Op: op, Kind: ErrInvalidCredentials}
		}
		return User{}, err
	}

	ok, err := a.hasher.Verify(u.PasswordHash, plain)
	if err != nil {
		return User{}, fmt.Errorf("%s: verify: %w", op, err)
	}
	if !ok {
		return User{}, OpError{Op: op, Kind: ErrInvalidCredentials}
	}
	return u, nil
}

// ChangePassword verifies current, stores next and stamps PasswordChangedAt
// one second in the past so a token issued right after still validates.
func (a *Accounts) ChangePassword(ctx context.Context, id, current, next, confirm string, now time.Time) (User, error) {
	const op = "identity.ChangePassword"

	u, err := a.store.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	ok, err := a.hasher.Verify(u.PasswordHash, current)
	if err != nil {
		return User{}, fmt.Errorf("%s: verify: %w", op, err)
	}
	if !ok {
		return User{}, OpError{Op: op, Kind: ErrInvalidCredentials, Msg: "Your current password is wrong."}
	}

	var fields []FieldError
	if fe, bad := a.passwordRule(next); bad {
		fields = append(fields, fe)
	}
	if next != confirm {
		fields = append(fields, FieldError{Field: "passwordConfirm", Message: "The Passwords do not match"})
	}
	if len(fields) > 0 {
		return User{}, ValidationError{Op: op, Fields: fields}
	}

	hash, err := a.hasher.Hash(next)
	if err != nil {
		return User{}, invalid(op, err.Error())
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}
	changedAt := now.UTC().Add(-time.Second).Truncate(time.Millisecond)
	if err := a.store.UpdatePassword(ctx, u.ID, hash, changedAt); err != nil {
		return User{}, err
	}

	u.PasswordHash = hash
	u.PasswordChangedAt = &changedAt
	return u, nil
}

func (a *Accounts) passwordRule(plain string) (FieldError, bool) {
	switch err := a.hasher.Check(plain); {
	case err == nil:
		return FieldError{}, false
	case errors.Is(err, password.ErrPasswordTooLong):
		return FieldError{Field: "password", Message: fmt.Sprintf("A password must have at most %d characters", a.hasher.MaxLength())}, true
	default:
		return FieldError{Field: "password", Message: fmt.Sprintf("A password must have at least %d characters", a.hasher.MinLength())}, true
	}
}

// Lookup returns the user with id.
func (a *Accounts) Lookup(ctx context.Context, id string) (User, error) {
	if strings.TrimSpace(id) == "" {
		return User{}, NotFoundError{Op: "identity.Lookup", Resource: "user"}
	}
	return a.store.GetUserByID(ctx, id)
}

// Delete removes the user with id.
func (a *Accounts) Delete(ctx context.Context, id string) error {
	return a.store.DeleteUser(ctx, id)
}
