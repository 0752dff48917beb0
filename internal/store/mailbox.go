package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is one piece of mail, persisted as a single JSON file in the
// recipient's directory. Files are immutable once written.
type Message struct {
	Sender      string `json:"sender"`
	Destination string `json:"destination"`
	Subject     string `json:"subject"`
	Date        string `json:"date"`
	Content     string `json:"content"`
}

// Summary describes one stored message for list displays.
type Summary struct {
	Sender  string
	Subject string
	Date    string
	Size    int64
}

// Deliver routes a message by its destination address.
//
// Destinations outside the store's domain are rejected with
// ErrExternalDelivery and nothing is stored. A known local user receives the
// message as a new uniquely named file in their directory. An unknown local
// user sends the message to the lost-mail directory and the call fails with
// ErrUnknownRecipient: stored, but undeliverable.
func (s *Store) Deliver(msg Message) error {
	local, domain, found := strings.Cut(msg.Destination, "@")
	if !found || strings.ToLower(domain) != s.domain || local == "" {
		return ErrExternalDelivery
	}

	canonical := Canonical(local)
	if !s.userExists(canonical) || canonical == lostMailDir {
		if err := s.writeMessage(filepath.Join(s.root, lostMailDir), msg); err != nil {
			return err
		}
		return ErrUnknownRecipient
	}

	return s.writeMessage(s.userDir(canonical), msg)
}

// List enumerates the user's messages, most recent first. An empty or absent
// mailbox yields an empty slice, not an error.
func (s *Store) List(username string) ([]Summary, error) {
	files, err := s.scanMailbox(username)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(files))
	for _, f := range files {
		msg, err := readMessageFile(f.path)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, Summary{
			Sender:  msg.Sender,
			Subject: msg.Subject,
			Date:    msg.Date,
			Size:    f.size,
		})
	}
	return summaries, nil
}

// Read returns the full message at the given 1-based position in the same
// newest-first order List produces. Out-of-range positions fail with
// ErrInvalidChoice.
func (s *Store) Read(username string, choice int) (Message, error) {
	files, err := s.scanMailbox(username)
	if err != nil {
		return Message{}, err
	}

	if choice < 1 || choice > len(files) {
		return Message{}, ErrInvalidChoice
	}

	return readMessageFile(files[choice-1].path)
}

// Stat returns the message count and summed byte size for the user's
// mailbox. An absent directory yields zero/zero, not an error.
func (s *Store) Stat(username string) (int, int64, error) {
	files, err := s.scanMailbox(username)
	if err != nil {
		return 0, 0, err
	}

	var total int64
	for _, f := range files {
		total += f.size
	}
	return len(files), total, nil
}

// mailFile is one message file found during a directory scan.
type mailFile struct {
	path    string
	name    string
	created int64
	size    int64
}

// scanMailbox re-reads the user's directory on every call, skipping the
// credential file. Results are ordered by creation time descending; equal
// stamps fall back to file name ascending, which is write order thanks to
// the sequence segment in the name.
func (s *Store) scanMailbox(username string) ([]mailFile, error) {
	dir := s.userDir(username)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning mailbox: %w", err)
	}

	files := make([]mailFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == credentialFile {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("scanning mailbox: %w", err)
		}
		files = append(files, mailFile{
			path:    filepath.Join(dir, entry.Name()),
			name:    entry.Name(),
			created: creationStamp(entry.Name(), info.ModTime()),
			size:    info.Size(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].created != files[j].created {
			return files[i].created > files[j].created
		}
		return files[i].name < files[j].name
	})

	return files, nil
}

// writeMessage persists a message as a new uniquely named file.
// The name leads with the creation timestamp and a zero-padded write
// sequence, so enumeration can order messages without opening them even
// when two arrive on the same clock reading.
func (s *Store) writeMessage(dir string, msg Message) error {
	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	name := fmt.Sprintf("%d-%012d-%s", time.Now().UnixNano(), s.seq.Add(1), uuid.NewString())
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
		return fmt.Errorf("writing message file: %w", err)
	}
	return nil
}

// creationStamp extracts the timestamp prefix from a message file name,
// falling back to the file's modification time.
func creationStamp(name string, modTime time.Time) int64 {
	prefix, _, found := strings.Cut(name, "-")
	if found {
		if ts, err := strconv.ParseInt(prefix, 10, 64); err == nil {
			return ts
		}
	}
	return modTime.UnixNano()
}

// readMessageFile loads and decodes one stored message.
func readMessageFile(path string) (Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Message{}, fmt.Errorf("reading message file: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decoding message file: %w", err)
	}
	return msg, nil
}
