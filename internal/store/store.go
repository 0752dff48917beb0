// Package store persists accounts and mail as plain files under a single
// data directory: one subdirectory per user holding a fixed-name credential
// file and one file per message, plus a reserved directory for mail addressed
// to unknown local users. The filesystem is the source of truth; nothing is
// cached between calls.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

const (
	// credentialFile is the fixed name of the password hash file inside
	// each user directory. Excluded from all message enumeration.
	credentialFile = "passwd"

	// lostMailDir is the reserved directory for undeliverable mail.
	// The name is also reserved as a username.
	lostMailDir = "lost"
)

// Store provides credential and mailbox persistence for one data directory.
type Store struct {
	root   string
	domain string
	seq    atomic.Uint64
}

// New creates a Store rooted at dir, serving mail for the given domain.
// The root and lost-mail directories are created if absent.
func New(dir, domain string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, lostMailDir), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directories: %w", err)
	}
	return &Store{root: dir, domain: strings.ToLower(domain)}, nil
}

// Domain returns the mail domain this store delivers for.
func (s *Store) Domain() string {
	return s.domain
}

// Address returns the full mail address for a local username.
func (s *Store) Address(username string) string {
	return Canonical(username) + "@" + s.domain
}

// Canonical returns the canonical (lowercased) form of a username.
// Directory names and all comparisons use this form.
func Canonical(username string) string {
	return strings.ToLower(username)
}

// userDir returns the directory path for a canonicalized username.
func (s *Store) userDir(username string) string {
	return filepath.Join(s.root, Canonical(username))
}

// userExists reports whether a registered account exists for the username.
// Only a directory holding a credential file counts, and the path names "."
// and ".." never do: they resolve to the data root and above it, not to an
// account directory.
func (s *Store) userExists(username string) bool {
	name := Canonical(username)
	if name == "." || name == ".." || name == lostMailDir {
		return false
	}
	info, err := os.Stat(filepath.Join(s.userDir(name), credentialFile))
	return err == nil && info.Mode().IsRegular()
}
