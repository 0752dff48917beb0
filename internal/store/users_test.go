package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), "example.org")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestRegister(t *testing.T) {
	s := newTestStore(t)

	canonical, err := s.Register("Alice", "Password123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if canonical != "alice" {
		t.Errorf("canonical = %q, want %q", canonical, "alice")
	}

	// The user directory must exist with exactly one credential file.
	entries, err := os.ReadDir(filepath.Join(s.root, "alice"))
	if err != nil {
		t.Fatalf("reading user directory: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != credentialFile {
		t.Errorf("user directory entries = %v, want only %q", entries, credentialFile)
	}

	// The credential file must not contain the clear-text password.
	data, err := os.ReadFile(filepath.Join(s.root, "alice", credentialFile))
	if err != nil {
		t.Fatalf("reading credential file: %v", err)
	}
	if strings.Contains(string(data), "Password123") {
		t.Error("credential file contains the clear-text password")
	}
	if !strings.HasPrefix(string(data), "$argon2id$") {
		t.Errorf("credential file = %q, want argon2id encoded hash", data)
	}
}

func TestRegisterTakenUsername(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Register("bob", "Password123"); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	_, err := s.Register("Bob", "Password123")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("second Register() error = %v, want ValidationError", err)
	}
	if !strings.Contains(verr.Error(), "taken") {
		t.Errorf("error = %q, want mention of username taken", verr.Error())
	}
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name       string
		username   string
		password   string
		wantCount  int
		wantSubstr string
	}{
		{
			name:       "username with illegal characters",
			username:   "al ice!",
			password:   "Password123",
			wantCount:  1,
			wantSubstr: "letters, digits",
		},
		{
			name:       "empty username",
			username:   "",
			password:   "Password123",
			wantCount:  1,
			wantSubstr: "letters, digits",
		},
		{
			name:       "reserved username",
			username:   "lost",
			password:   "Password123",
			wantCount:  1,
			wantSubstr: "reserved",
		},
		{
			name:       "dot username",
			username:   ".",
			password:   "Password123",
			wantCount:  1,
			wantSubstr: "reserved",
		},
		{
			name:       "dot-dot username",
			username:   "..",
			password:   "Password123",
			wantCount:  1,
			wantSubstr: "reserved",
		},
		{
			name:       "password too short",
			username:   "carol",
			password:   "Pw1",
			wantCount:  1,
			wantSubstr: "at least 10 characters",
		},
		{
			name:       "password missing digit",
			username:   "carol",
			password:   "Passwordxyz",
			wantCount:  1,
			wantSubstr: "one digit",
		},
		{
			name:       "password missing lowercase",
			username:   "carol",
			password:   "PASSWORD123",
			wantCount:  1,
			wantSubstr: "one lowercase",
		},
		{
			name:       "password missing uppercase",
			username:   "carol",
			password:   "password123",
			wantCount:  1,
			wantSubstr: "one uppercase",
		},
		{
			name:      "all rules violated at once",
			username:  "no spaces allowed",
			password:  "short",
			wantCount: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)

			_, err := s.Register(tt.username, tt.password)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Register() error = %v, want ValidationError", err)
			}

			if len(verr.Violations) != tt.wantCount {
				t.Errorf("violations = %v, want %d entries", verr.Violations, tt.wantCount)
			}

			if tt.wantSubstr != "" && !strings.Contains(verr.Error(), tt.wantSubstr) {
				t.Errorf("error = %q, want substring %q", verr.Error(), tt.wantSubstr)
			}

			// Nothing may be created on a failed registration.
			if tt.username == "carol" && s.userExists("carol") {
				t.Error("user directory created despite validation failure")
			}
		})
	}
}

func TestVerify(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Register("dave", "Password123"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantUser string
		wantErr  error
	}{
		{
			name:     "correct credentials",
			username: "dave",
			password: "Password123",
			wantUser: "dave",
		},
		{
			name:     "username is case-insensitive",
			username: "DaVe",
			password: "Password123",
			wantUser: "dave",
		},
		{
			name:     "wrong password",
			username: "dave",
			password: "Password124",
			wantErr:  ErrBadPassword,
		},
		{
			name:     "unknown user",
			username: "ghost",
			password: "Password123",
			wantErr:  ErrUnknownUser,
		},
		{
			name:     "lost-mail directory is not an account",
			username: "lost",
			password: "Password123",
			wantErr:  ErrUnknownUser,
		},
		{
			name:     "data root is not an account",
			username: ".",
			password: "Password123",
			wantErr:  ErrUnknownUser,
		},
		{
			name:     "parent directory is not an account",
			username: "..",
			password: "Password123",
			wantErr:  ErrUnknownUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Verify(tt.username, tt.password)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Verify() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if got != tt.wantUser {
				t.Errorf("Verify() = %q, want %q", got, tt.wantUser)
			}
		})
	}
}

func TestVerifyPasswordRoundtrip(t *testing.T) {
	encoded, err := hashPassword("Correct horse 9")
	if err != nil {
		t.Fatalf("hashPassword() error = %v", err)
	}

	ok, err := verifyPassword(encoded, "Correct horse 9")
	if err != nil {
		t.Fatalf("verifyPassword() error = %v", err)
	}
	if !ok {
		t.Error("verifyPassword() = false for the original password")
	}

	ok, err = verifyPassword(encoded, "correct horse 9")
	if err != nil {
		t.Fatalf("verifyPassword() error = %v", err)
	}
	if ok {
		t.Error("verifyPassword() = true for a different password")
	}
}

func TestVerifyPasswordRejectsUnknownFormat(t *testing.T) {
	if _, err := verifyPassword("$md5$abc", "whatever"); err == nil {
		t.Error("expected error for unsupported credential format")
	}
}
