// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"crypto/md5" //nolint:gosec // retained only for migrating legacy digests
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// Algorithm tags the hashing scheme used for a stored credential.
type Algorithm string

// Supported algorithms. The set is closed: an unrecognized tag yields a
// failure result, never a panic.
const (
	AlgorithmArgon2id Algorithm = "argon2id" // memory-hard primary
	AlgorithmBcrypt   Algorithm = "bcrypt"   // adaptive cost
	AlgorithmScrypt   Algorithm = "scrypt"   // memory-hard alternative
	AlgorithmPBKDF2   Algorithm = "pbkdf2"   // standard KDF
	AlgorithmSHA256   Algorithm = "sha256"   // fast digest
	AlgorithmSHA512   Algorithm = "sha512"   // fast digest
	AlgorithmMD5      Algorithm = "md5"      // insecure legacy, migration only
)

// Valid reports whether the tag names a supported algorithm.
func (a Algorithm) Valid() bool {
	switch a {
	case AlgorithmArgon2id, AlgorithmBcrypt, AlgorithmScrypt, AlgorithmPBKDF2,
		AlgorithmSHA256, AlgorithmSHA512, AlgorithmMD5:
		return true
	}
	return false
}

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2KeyLen  = 32
)

// scrypt and pbkdf2 parameters.
const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32

	pbkdf2Iterations = 600_000
	pbkdf2KeyLen     = 32

	saltLen = 16
)

// Hashing errors.
var (
	ErrEmptyPassword    = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")
	ErrUnknownAlgorithm = oops.Code("AUTH_UNKNOWN_ALGORITHM").Errorf("unknown hash algorithm")
)

// Hasher hashes and verifies passwords, dispatching on the algorithm tag.
// Salted algorithms generate a fresh per-credential salt on every Hash call
// and embed it in the encoded digest.
type Hasher struct{}

// NewHasher creates a Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// Hash produces an encoded digest of the password under the named
// algorithm. An unrecognized tag returns ErrUnknownAlgorithm.
func (h *Hasher) Hash(alg Algorithm, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	switch alg {
	case AlgorithmArgon2id:
		return hashArgon2id(password)
	case AlgorithmBcrypt:
		digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return "", oops.Code("AUTH_HASH_FAILED").With("algorithm", string(alg)).Wrap(err)
		}
		return string(digest), nil
	case AlgorithmScrypt:
		return hashScrypt(password)
	case AlgorithmPBKDF2:
		return hashPBKDF2(password)
	case AlgorithmSHA256:
		sum := sha256.Sum256([]byte(password))
		return hex.EncodeToString(sum[:]), nil
	case AlgorithmSHA512:
		sum := sha512.Sum512([]byte(password))
		return hex.EncodeToString(sum[:]), nil
	case AlgorithmMD5:
		sum := md5.Sum([]byte(password)) //nolint:gosec // legacy migration path
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", oops.Code("AUTH_UNKNOWN_ALGORITHM").
			With("algorithm", string(alg)).
			Wrap(ErrUnknownAlgorithm)
	}
}

// Verify checks the password against an encoded digest produced under the
// named algorithm. Returns (false, ErrUnknownAlgorithm) for an unrecognized
// tag; callers must treat that as a failed credential operation, not as a
// wrong password.
func (h *Hasher) Verify(password, digest string, alg Algorithm) (bool, error) {
	if digest == "" {
		return false, nil
	}

	switch alg {
	case AlgorithmArgon2id:
		return verifyArgon2id(password, digest)
	case AlgorithmBcrypt:
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, oops.Code("AUTH_INVALID_HASH").With("algorithm", string(alg)).Wrap(err)
	case AlgorithmScrypt:
		return verifyScrypt(password, digest)
	case AlgorithmPBKDF2:
		return verifyPBKDF2(password, digest)
	case AlgorithmSHA256:
		sum := sha256.Sum256([]byte(password))
		return constantTimeHexEqual(sum[:], digest), nil
	case AlgorithmSHA512:
		sum := sha512.Sum512([]byte(password))
		return constantTimeHexEqual(sum[:], digest), nil
	case AlgorithmMD5:
		sum := md5.Sum([]byte(password)) //nolint:gosec // legacy migration path
		return constantTimeHexEqual(sum[:], digest), nil
	default:
		return false, oops.Code("AUTH_UNKNOWN_ALGORITHM").
			With("algorithm", string(alg)).
			Wrap(ErrUnknownAlgorithm)
	}
}

func constantTimeHexEqual(sum []byte, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum)), []byte(digest)) == 1
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}
	return salt, nil
}

func hashArgon2id(password string) (string, error) {
	salt, err := newSalt()
	if err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	// PHC string format: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func verifyArgon2id(password, digest string) (bool, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid argon2id digest")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	var memory, time uint32
	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(expected) == 0 || len(expected) > 1<<10 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid key length: %d", len(expected))
	}

	computed := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func hashScrypt(password string) (string, error) {
	salt, err := newSalt()
	if err != nil {
		return "", err
	}
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").With("algorithm", "scrypt").Wrap(err)
	}
	return fmt.Sprintf(
		"$scrypt$N=%d,r=%d,p=%d$%s$%s",
		scryptN, scryptR, scryptP,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func verifyScrypt(password, digest string) (bool, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 5 || parts[1] != "scrypt" {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid scrypt digest")
	}

	var n, r, p int
	if _, err := fmt.Sscanf(parts[2], "N=%d,r=%d,p=%d", &n, &r, &p); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	computed, err := scrypt.Key([]byte(password), salt, n, r, p, len(expected))
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func hashPBKDF2(password string) (string, error) {
	salt, err := newSalt()
	if err != nil {
		return "", err
	}
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return fmt.Sprintf(
		"$pbkdf2-sha256$i=%d$%s$%s",
		pbkdf2Iterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func verifyPBKDF2(password, digest string) (bool, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 5 || parts[1] != "pbkdf2-sha256" {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid pbkdf2 digest")
	}

	var iterations int
	if _, err := fmt.Sscanf(parts[2], "i=%d", &iterations); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if iterations <= 0 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid iteration count: %d", iterations)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	computed := pbkdf2.Key([]byte(password), salt, iterations, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}
