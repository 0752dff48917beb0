package server

import (
	"errors"
	"time"

	"github.com/infodancer/mailxd/internal/metrics"
	"github.com/infodancer/mailxd/internal/store"
	"github.com/infodancer/mailxd/internal/wire"
)

// handlerFunc processes one decoded request and returns the response.
type handlerFunc func(s *Server, c *conn, username string, msg wire.Message) wire.Message

// Request kinds are registered in exactly one of two tables. Anonymous
// connections may only use anonymousHandlers; authenticated connections only
// authenticatedHandlers. Goodbye is handled outside both.
var (
	anonymousHandlers = map[wire.Header]handlerFunc{
		wire.HeaderRegister: handleRegister,
		wire.HeaderLogin:    handleLogin,
	}

	authenticatedHandlers = map[wire.Header]handlerFunc{
		wire.HeaderLogout:   handleLogout,
		wire.HeaderListMail: handleListMail,
		wire.HeaderReadMail: handleReadMail,
		wire.HeaderSendMail: handleSendMail,
		wire.HeaderStats:    handleStats,
	}
)

// User-facing error texts.
const (
	errBadPacket            = "bad packet"
	errUnknownRequest       = "unknown request"
	errAlreadyAuthenticated = "already authenticated"
	errNotAuthenticated     = "not authenticated"
	errRegistrationFailed   = "registration failed"
	errDeliveryFailed       = "delivery failed"
	errMailboxUnavailable   = "mailbox unavailable"
)

// dispatch routes one request to its handler. It returns the response to
// send and whether the connection must be torn down afterwards. Goodbye is
// the only request producing no response.
func (s *Server) dispatch(c *conn, msg wire.Message) (wire.Message, bool) {
	s.collector.RequestProcessed(string(msg.Header))

	if msg.Header == wire.HeaderGoodbye {
		return wire.Message{}, true
	}

	username, authenticated := s.registry.Username(c.id)

	if handler, ok := anonymousHandlers[msg.Header]; ok {
		if authenticated {
			return wire.Error(errAlreadyAuthenticated), false
		}
		return handler(s, c, "", msg), false
	}

	if handler, ok := authenticatedHandlers[msg.Header]; ok {
		if !authenticated {
			return wire.Error(errNotAuthenticated), false
		}
		return handler(s, c, username, msg), false
	}

	return wire.Error(errUnknownRequest), false
}

func handleRegister(s *Server, c *conn, _ string, msg wire.Message) wire.Message {
	var auth wire.AuthPayload
	if err := msg.DecodePayload(&auth); err != nil {
		return wire.Error(errBadPacket)
	}

	canonical, err := s.store.Register(auth.Username, auth.Password)
	if err != nil {
		s.collector.AuthAttempt("register", false)

		var verr *store.ValidationError
		if errors.As(err, &verr) {
			return wire.Error(verr.Error())
		}
		s.logger.Error("registration failed", "username", auth.Username, "error", err.Error())
		return wire.Error(errRegistrationFailed)
	}

	// A new account is implicitly logged in.
	s.registry.Attach(c.id, canonical)
	s.collector.AuthAttempt("register", true)
	s.logger.Info("account created", "username", canonical)

	return mustOK(nil)
}

func handleLogin(s *Server, c *conn, _ string, msg wire.Message) wire.Message {
	var auth wire.AuthPayload
	if err := msg.DecodePayload(&auth); err != nil {
		return wire.Error(errBadPacket)
	}

	canonical, err := s.store.Verify(auth.Username, auth.Password)
	if err != nil {
		s.collector.AuthAttempt("login", false)

		if errors.Is(err, store.ErrUnknownUser) || errors.Is(err, store.ErrBadPassword) {
			return wire.Error(err.Error())
		}
		s.logger.Error("credential check failed", "username", auth.Username, "error", err.Error())
		return wire.Error(errMailboxUnavailable)
	}

	s.registry.Attach(c.id, canonical)
	s.collector.AuthAttempt("login", true)
	s.logger.Info("user logged in", "username", canonical)

	return mustOK(nil)
}

func handleLogout(s *Server, c *conn, username string, _ wire.Message) wire.Message {
	s.registry.Detach(c.id)
	s.logger.Info("user logged out", "username", username)
	return mustOK(nil)
}

func handleListMail(s *Server, _ *conn, username string, _ wire.Message) wire.Message {
	summaries, err := s.store.List(username)
	if err != nil {
		s.logger.Error("listing mailbox failed", "username", username, "error", err.Error())
		return wire.Error(errMailboxUnavailable)
	}

	entries := make([]string, len(summaries))
	for i, summary := range summaries {
		entries[i] = wire.SummaryLine(i+1, summary.Sender, summary.Subject, summary.Date)
	}

	s.collector.MailboxListed()
	return mustOK(wire.MailListPayload{Entries: entries})
}

func handleReadMail(s *Server, _ *conn, username string, msg wire.Message) wire.Message {
	var choice wire.ChoicePayload
	if err := msg.DecodePayload(&choice); err != nil {
		// A non-integer choice is indistinguishable from an out-of-range one
		// from the client's point of view.
		return wire.Error(store.ErrInvalidChoice.Error())
	}

	message, err := s.store.Read(username, choice.Choice)
	if err != nil {
		if errors.Is(err, store.ErrInvalidChoice) {
			return wire.Error(err.Error())
		}
		s.logger.Error("reading message failed", "username", username, "error", err.Error())
		return wire.Error(errMailboxUnavailable)
	}

	s.collector.MessageRead(int64(len(message.Content)))
	return mustOK(wire.EmailContentPayload{
		Sender:      message.Sender,
		Destination: message.Destination,
		Subject:     message.Subject,
		Date:        message.Date,
		Content:     message.Content,
	})
}

func handleSendMail(s *Server, _ *conn, username string, msg wire.Message) wire.Message {
	var content wire.EmailContentPayload
	if err := msg.DecodePayload(&content); err != nil {
		return wire.Error(errBadPacket)
	}

	// The sender and date are stamped server-side; whatever the client
	// claims is discarded.
	err := s.store.Deliver(store.Message{
		Sender:      s.store.Address(username),
		Destination: content.Destination,
		Subject:     content.Subject,
		Date:        time.Now().UTC().Format(time.RFC1123Z),
		Content:     content.Content,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrExternalDelivery):
			s.collector.MessageDelivered(metrics.DeliveryOutcomeExternal)
			return wire.Error(err.Error())
		case errors.Is(err, store.ErrUnknownRecipient):
			s.collector.MessageDelivered(metrics.DeliveryOutcomeLost)
			return wire.Error(err.Error())
		default:
			s.logger.Error("delivery failed", "destination", content.Destination, "error", err.Error())
			return wire.Error(errDeliveryFailed)
		}
	}

	s.collector.MessageDelivered(metrics.DeliveryOutcomeDelivered)
	return mustOK(nil)
}

func handleStats(s *Server, _ *conn, username string, _ wire.Message) wire.Message {
	count, size, err := s.store.Stat(username)
	if err != nil {
		s.logger.Error("mailbox stats failed", "username", username, "error", err.Error())
		return wire.Error(errMailboxUnavailable)
	}

	return mustOK(wire.StatsPayload{Count: count, Size: size})
}

// mustOK builds an ok response. Payload types here are all marshalable, so
// an encoding failure means a programming error.
func mustOK(payload any) wire.Message {
	msg, err := wire.OK(payload)
	if err != nil {
		panic(err)
	}
	return msg
}
