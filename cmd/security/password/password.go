package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Version = 19

// Hasher hashes and verifies passwords with a fixed parameter set.
type Hasher struct {
	p Params
}

// NewHasher returns a Hasher. Zero or degenerate fields in p are replaced by safe minimums.
func NewHasher(p Params) Hasher {
	return Hasher{p: p.sane()}
}

// Check enforces the length policy.
func (h Hasher) Check(plain string) error {
	switch {
	case len(plain) < h.p.MinLength:
		return ErrPasswordTooShort
	case len(plain) > h.p.MaxLength:
		return ErrPasswordTooLong
	}
	return nil
}

// MinLength reports the configured minimum password length.
func (h Hasher) MinLength() int { return h.p.MinLength }

// MaxLength reports the configured maximum password length.
func (h Hasher) MaxLength() int { return h.p.MaxLength }

// Hash validates plain against the policy and returns its encoded Argon2id hash.
func (h Hasher) Hash(plain string) (string, error) {
	if err := h.Check(plain); err != nil {
		return "", err
	}

	salt := make([]byte, h.p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	key := argon2.IDKey([]byte(plain), salt, h.p.Iterations, h.p.MemoryKiB, h.p.Parallelism, h.p.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version, h.p.MemoryKiB, h.p.Iterations, h.p.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key),
	), nil
}

// Verify reports whether plain matches encoded.
// Malformed hashes, or hashes whose cost is far above ours, yield ErrInvalidHash.
func (h Hasher) Verify(encoded, plain string) (bool, error) {
	got, salt, want, err := decode(encoded)
	if err != nil {
		return false, err
	}
	if got.MemoryKiB > h.p.MemoryKiB*2 || got.Iterations > h.p.Iterations*2 || got.Parallelism > h.p.Parallelism*2 {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey([]byte(plain), salt, got.Iterations, got.MemoryKiB, got.Parallelism, uint32(len(want))) // #nosec G115 -- bounded by decode.
	return subtle.ConstantTimeCompare(key, want) == 1, nil
}

func decode(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" || parts[2] != "v=19" {
		return Params{}, nil, nil, ErrInvalidHash
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < 8 || len(salt) > 64 {
		return Params{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) < 16 || len(key) > 128 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	return Params{MemoryKiB: mem, Iterations: it, Parallelism: uint8(par)}, salt, key, nil // #nosec G115 -- par <= 255.
}
