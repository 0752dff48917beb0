// Package wire defines the mail exchange message format: a header naming the
// operation plus an optional operation-specific payload, carried as one
// length-prefixed JSON document per message.
package wire

import (
	"encoding/json"
	"fmt"
)

// Header identifies a request or response kind.
type Header string

// Request headers.
const (
	HeaderRegister Header = "register"
	HeaderLogin    Header = "login"
	HeaderLogout   Header = "logout"
	HeaderGoodbye  Header = "goodbye"
	HeaderListMail Header = "list-mail"
	HeaderReadMail Header = "read-mail"
	HeaderSendMail Header = "send-mail"
	HeaderStats    Header = "stats"
)

// Response headers.
const (
	HeaderOK    Header = "ok"
	HeaderError Header = "error"
)

// Message is one request or response on the wire.
type Message struct {
	Header  Header          `json:"header"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AuthPayload carries credentials for register and login.
type AuthPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ErrorPayload carries a single combined human-readable error message.
type ErrorPayload struct {
	ErrorMessage string `json:"error_message"`
}

// MailListPayload carries formatted display lines, newest first.
type MailListPayload struct {
	Entries []string `json:"entries"`
}

// EmailContentPayload carries one full message.
type EmailContentPayload struct {
	Sender      string `json:"sender"`
	Destination string `json:"destination"`
	Subject     string `json:"subject"`
	Date        string `json:"date"`
	Content     string `json:"content"`
}

// ChoicePayload selects one message by its 1-based list position.
type ChoicePayload struct {
	Choice int `json:"choice"`
}

// StatsPayload carries mailbox usage numbers.
type StatsPayload struct {
	Count int   `json:"count"`
	Size  int64 `json:"size"`
}

// NewMessage builds a message with the given header and payload.
// A nil payload produces a header-only message.
func NewMessage(header Header, payload any) (Message, error) {
	msg := Message{Header: header}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s payload: %w", header, err)
	}
	msg.Payload = data
	return msg, nil
}

// OK builds an ok response carrying the given payload (nil for none).
func OK(payload any) (Message, error) {
	return NewMessage(HeaderOK, payload)
}

// Error builds an error response from a message string.
func Error(text string) Message {
	msg, _ := NewMessage(HeaderError, ErrorPayload{ErrorMessage: text})
	return msg
}

// DecodePayload unmarshals the message payload into dst.
func (m Message) DecodePayload(dst any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", m.Header)
	}
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return fmt.Errorf("%s: decoding payload: %w", m.Header, err)
	}
	return nil
}

// SummaryLine formats one mail list entry for display.
func SummaryLine(number int, sender, subject, date string) string {
	return fmt.Sprintf("#%d [%s] %s (%s)", number, sender, subject, date)
}
