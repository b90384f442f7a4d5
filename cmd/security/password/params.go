package password

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Params controls Argon2id cost and the accepted password length.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength int
	MaxLength int
}

// DefaultParams returns the production baseline.
func DefaultParams() Params {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}
	return Params{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4].
		SaltLength:  16,
		KeyLength:   32,
		MinLength:   8,
		MaxLength:   256,
	}
}

// ParamsFromEnv overlays CLOSET_ARGON2_* and CLOSET_PASSWORD_* on the defaults.
// Values that do not parse or fall outside sane bounds are ignored.
func ParamsFromEnv() Params {
	p := DefaultParams()
	if n, ok := envUint("CLOSET_ARGON2_MEMORY_KIB", 8*1024, 1024*1024); ok {
		p.MemoryKiB = n
	}
	if n, ok := envUint("CLOSET_ARGON2_ITERATIONS", 1, 20); ok {
		p.Iterations = n
	}
	if n, ok := envUint("CLOSET_ARGON2_PARALLELISM", 1, 64); ok {
		p.Parallelism = uint8(n) // #nosec G115 -- bounded above.
	}
	if n, ok := envUint("CLOSET_PASSWORD_MIN_LEN", 8, 128); ok {
		p.MinLength = int(n)
	}
	return p
}

func envUint(key string, lo, hi uint32) (uint32, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil || uint32(n) < lo || uint32(n) > hi {
		return 0, false
	}
	return uint32(n), true
}

// sane fills zero fields so argon2 never runs with degenerate settings.
func (p Params) sane() Params {
	d := DefaultParams()
	if p.MemoryKiB < 8*1024 {
		p.MemoryKiB = 8 * 1024
	}
	if p.Iterations == 0 {
		p.Iterations = 1
	}
	if p.Parallelism == 0 {
		p.Parallelism = 1
	}
	if p.SaltLength < 8 {
		p.SaltLength = d.SaltLength
	}
	if p.KeyLength < 16 {
		p.KeyLength = d.KeyLength
	}
	if p.MinLength <= 0 {
		p.MinLength = d.MinLength
	}
	if p.MaxLength <= 0 {
		p.MaxLength = d.MaxLength
	}
	return p
}
