package store

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"
)

// usernamePattern is the allowed account name charset.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// minPasswordLength is the minimum accepted password length.
const minPasswordLength = 10

// Register creates an account: validates the username and password strength,
// creates the user directory and writes the credential file. Every violated
// rule is collected into one ValidationError rather than failing on the
// first. Returns the canonical username on success.
func (s *Store) Register(username, password string) (string, error) {
	canonical := Canonical(username)

	var violations []string
	if !usernamePattern.MatchString(username) {
		violations = append(violations, "username may only contain letters, digits, underscore, period and hyphen")
	} else if canonical == lostMailDir || canonical == "." || canonical == ".." {
		violations = append(violations, "username is reserved")
	} else if s.userExists(canonical) {
		violations = append(violations, "username is already taken")
	}
	violations = append(violations, passwordViolations(password)...)

	if len(violations) > 0 {
		return "", &ValidationError{Violations: violations}
	}

	dir := s.userDir(canonical)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating user directory: %w", err)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, credentialFile), []byte(hash), 0o600); err != nil {
		return "", fmt.Errorf("writing credential file: %w", err)
	}

	return canonical, nil
}

// Verify checks credentials against the stored hash. Returns the canonical
// username on success, ErrUnknownUser when no account exists, and
// ErrBadPassword when the hash does not match.
func (s *Store) Verify(username, password string) (string, error) {
	canonical := Canonical(username)

	if !s.userExists(canonical) || canonical == lostMailDir {
		return "", ErrUnknownUser
	}

	stored, err := os.ReadFile(filepath.Join(s.userDir(canonical), credentialFile))
	if err != nil {
		return "", fmt.Errorf("reading credential file: %w", err)
	}

	ok, err := verifyPassword(strings.TrimSpace(string(stored)), password)
	if err != nil {
		return "", fmt.Errorf("checking credential: %w", err)
	}
	if !ok {
		return "", ErrBadPassword
	}

	return canonical, nil
}

// passwordViolations returns one message per violated strength rule.
func passwordViolations(password string) []string {
	var violations []string

	if len(password) < minPasswordLength {
		violations = append(violations, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasDigit, hasLower, hasUpper bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		}
	}

	if !hasDigit {
		violations = append(violations, "password must contain at least one digit")
	}
	if !hasLower {
		violations = append(violations, "password must contain at least one lowercase letter")
	}
	if !hasUpper {
		violations = append(violations, "password must contain at least one uppercase letter")
	}

	return violations
}

// argon2id parameters for new credential files.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 32
)

// hashPassword generates an argon2id hash in the standard encoded form.
func hashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// verifyPassword recomputes the hash with the parameters stored in the
// encoded form and compares in constant time.
func verifyPassword(encoded, password string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, fmt.Errorf("unsupported credential format")
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, fmt.Errorf("parsing credential parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("decoding salt: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("decoding hash: %w", err)
	}

	got := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
