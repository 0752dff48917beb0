// Package metrics provides interfaces and implementations for collecting
// mail exchange server metrics. This package defines the Collector interface
// for recording metrics and the Server interface for exposing them.
package metrics

import "context"

// Collector defines the interface for recording server metrics.
type Collector interface {
	// Connection metrics
	ConnectionOpened()
	ConnectionClosed()

	// Authentication metrics (kind is "register" or "login")
	AuthAttempt(kind string, success bool)

	// Request metrics
	RequestProcessed(header string)

	// Mailbox metrics
	MessageDelivered(outcome string)
	MessageRead(sizeBytes int64)
	MailboxListed()
}

// Server defines the interface for a metrics HTTP server.
type Server interface {
	// Start begins serving metrics. It blocks until the context is canceled
	// or an error occurs.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the metrics server.
	Shutdown(ctx context.Context) error
}

// Delivery outcome labels for MessageDelivered.
const (
	DeliveryOutcomeDelivered = "delivered"
	DeliveryOutcomeLost      = "lost"
	DeliveryOutcomeExternal  = "external"
)
