package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/custodia-labs/restormel-core/internal/core/domain"
	"github.com/custodia-labs/restormel-core/internal/core/ports/driven"
)

// Ensure Hasher implements PasswordHasher
var _ driven.PasswordHasher = (*Hasher)(nil)

// Scheme names the encoding used for newly hashed passwords
type Scheme string

const (
	SchemeBcrypt   Scheme = "bcrypt"
	SchemeArgon2id Scheme = "argon2id"
)

const argon2Prefix = "$argon2id$"

// Argon2Params are the argon2id cost parameters
type Argon2Params struct {
	Memory      uint32 `koanf:"memory"` // KiB
	Time        uint32 `koanf:"time"`
	Parallelism uint8  `koanf:"parallelism"`
	SaltLength  uint32 `koanf:"salt_length"`
	KeyLength   uint32 `koanf:"key_length"`
}

// DefaultArgon2Params returns the argon2id parameters used when none are configured
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// HasherConfig selects and tunes the hashing scheme
type HasherConfig struct {
	Scheme     Scheme
	BcryptCost int
	Argon2     Argon2Params
}

// Hasher hashes passwords with the configured scheme and verifies bcrypt,
// argon2id and legacy salted SHA-256 encodings.
type Hasher struct {
	scheme     Scheme
	bcryptCost int
	argon2     Argon2Params
}

// NewHasher creates a Hasher. Zero values fall back to defaults.
func NewHasher(cfg HasherConfig) (*Hasher, error) {
	if cfg.Scheme == "" {
		cfg.Scheme = SchemeBcrypt
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Argon2 == (Argon2Params{}) {
		cfg.Argon2 = DefaultArgon2Params()
	}

	switch cfg.Scheme {
	case SchemeBcrypt:
		if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
		}
	case SchemeArgon2id:
		if err := cfg.Argon2.validate(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown hash scheme %q", cfg.Scheme)
	}

	return &Hasher{
		scheme:     cfg.Scheme,
		bcryptCost: cfg.BcryptCost,
		argon2:     cfg.Argon2,
	}, nil
}

// Scheme returns the scheme used for new hashes
func (h *Hasher) Scheme() Scheme {
	return h.scheme
}

// HashPassword hashes a plaintext password with a fresh random salt
func (h *Hasher) HashPassword(password string) (string, error) {
	if h.scheme == SchemeArgon2id {
		return h.hashArgon2(password)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks a password against any supported encoding.
// Unknown or malformed encodings never verify.
func (h *Hasher) VerifyPassword(password, hash string) bool {
	switch {
	case isBcrypt(hash):
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	case strings.HasPrefix(hash, argon2Prefix):
		ok, err := verifyArgon2(password, hash)
		return err == nil && ok
	default:
		ok, err := verifyLegacy(password, hash)
		return err == nil && ok
	}
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

func (h *Hasher) hashArgon2(password string) (string, error) {
	p := h.argon2
	salt := make([]byte, p.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory,
		p.Time,
		p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func verifyArgon2(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return false, domain.ErrUnsupportedHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return false, domain.ErrUnsupportedHash
	}

	var p Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Parallelism); err != nil {
		return false, domain.ErrUnsupportedHash
	}
	if p.Memory == 0 || p.Time == 0 || p.Parallelism == 0 {
		return false, domain.ErrUnsupportedHash
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return false, domain.ErrUnsupportedHash
	}
	want, err := base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, domain.ErrUnsupportedHash
	}

	got := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// verifyLegacy checks the "salt:hex(sha256(salt+password))" encoding
func verifyLegacy(password, encoded string) (bool, error) {
	salt, digest, ok := strings.Cut(encoded, ":")
	if !ok || salt == "" || digest == "" {
		return false, domain.ErrUnsupportedHash
	}

	want, err := hex.DecodeString(digest)
	if err != nil || len(want) != sha256.Size {
		return false, domain.ErrUnsupportedHash
	}

	got := sha256.Sum256([]byte(salt + password))
	return subtle.ConstantTimeCompare(got[:], want) == 1, nil
}

func (p Argon2Params) validate() error {
	switch {
	case p.Memory < 8*1024:
		return errors.New("argon2 memory must be >= 8192 KiB")
	case p.Time < 1:
		return errors.New("argon2 time must be >= 1")
	case p.Parallelism < 1:
		return errors.New("argon2 parallelism must be >= 1")
	case p.SaltLength < 16:
		return errors.New("argon2 salt length must be >= 16")
	case p.KeyLength < 16:
		return errors.New("argon2 key length must be >= 16")
	}
	return nil
}
