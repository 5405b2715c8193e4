package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

type PasswordAlgorithm string

const (
	AlgorithmArgon2id PasswordAlgorithm = "argon2id"
	AlgorithmBcrypt   PasswordAlgorithm = "bcrypt"
)

type Argon2Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

var defaultParams = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 2,
	KeyLen:  32,
	SaltLen: 16,
}

// Upper bounds applied when reading parameters back out of a stored digest.
const (
	maxArgonTime   = 10
	maxArgonMemory = 512 * 1024
)

const argonVersionField = "v=19"

// PasswordHasher produces self-describing salted digests. New digests use the configured
// algorithm; Verify accepts both argon2id and bcrypt digests so accounts created under
// either setting keep working.
type PasswordHasher struct {
	algorithm  PasswordAlgorithm
	argon      Argon2Params
	bcryptCost int
}

func NewPasswordHasher(algorithm string) (*PasswordHasher, error) {
	switch PasswordAlgorithm(strings.ToLower(strings.TrimSpace(algorithm))) {
	case "", AlgorithmArgon2id:
		return &PasswordHasher{algorithm: AlgorithmArgon2id, argon: defaultParams}, nil
	case AlgorithmBcrypt:
		return &PasswordHasher{algorithm: AlgorithmBcrypt, bcryptCost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", algorithm)
	}
}

// NewArgon2Hasher is used where the default cost is too slow, e.g. tests.
func NewArgon2Hasher(params Argon2Params) *PasswordHasher {
	return &PasswordHasher{algorithm: AlgorithmArgon2id, argon: params}
}

func (h *PasswordHasher) Algorithm() PasswordAlgorithm {
	return h.algorithm
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	if h.algorithm == AlgorithmBcrypt {
		digest, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
		if err != nil {
			return "", fmt.Errorf("bcrypt: %w", err)
		}
		return string(digest), nil
	}
	return HashPasswordWithParams(password, h.argon)
}

// Verify never returns an error: a digest that cannot be parsed simply does not match.
func (h *PasswordHasher) Verify(password string, digest string) bool {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return verifyArgon2(password, digest)
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
	default:
		return false
	}
}

func HashPasswordWithParams(password string, params Argon2Params) (string, error) {
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLen)

	encoded := base64.StdEncoding.EncodeToString(hash)
	encodedSalt := base64.StdEncoding.EncodeToString(salt)

	return fmt.Sprintf("$argon2id$%s$t=%d,m=%d,p=%d$%s$%s",
		argonVersionField, params.Time, params.Memory, params.Threads, encodedSalt, encoded), nil
}

func verifyArgon2(password string, digest string) bool {
	params, salt, hash, ok := decodeArgon2(digest)
	if !ok {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLen)
	return subtle.ConstantTimeCompare(hash, computed) == 1
}

func decodeArgon2(digest string) (Argon2Params, []byte, []byte, bool) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" || parts[2] != argonVersionField {
		return Argon2Params{}, nil, nil, false
	}

	var params Argon2Params
	seen := 0
	for _, field := range strings.Split(parts[3], ",") {
		key, value, found := strings.Cut(field, "=")
		if !found {
			return Argon2Params{}, nil, nil, false
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return Argon2Params{}, nil, nil, false
		}
		switch key {
		case "t":
			params.Time = uint32(n)
		case "m":
			params.Memory = uint32(n)
		case "p":
			if n > 255 {
				return Argon2Params{}, nil, nil, false
			}
			params.Threads = uint8(n)
		default:
			return Argon2Params{}, nil, nil, false
		}
		seen++
	}
	if seen != 3 {
		return Argon2Params{}, nil, nil, false
	}
	if params.Time < 1 || params.Time > maxArgonTime || params.Threads < 1 {
		return Argon2Params{}, nil, nil, false
	}
	if params.Memory < 8*uint32(params.Threads) || params.Memory > maxArgonMemory {
		return Argon2Params{}, nil, nil, false
	}

	salt, err := base64.StdEncoding.Strict().DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return Argon2Params{}, nil, nil, false
	}
	hash, err := base64.StdEncoding.Strict().DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return Argon2Params{}, nil, nil, false
	}

	params.KeyLen = uint32(len(hash))
	params.SaltLen = uint32(len(salt))
	return params, salt, hash, true
}
