package signals

import (
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// subjectPrefix carries signals between the worker and API processes. The
// worker publishes, the API relays to its locally connected sinks.
const subjectPrefix = "signals.user."

// NATSRelay publishes signals over NATS and forwards inbound signals to a
// local registry.
type NATSRelay struct {
	conn   *nats.Conn
	logger *slog.Logger
	sub    *nats.Subscription
}

// NewNATSRelay wraps an established NATS connection.
func NewNATSRelay(conn *nats.Conn, logger *slog.Logger) *NATSRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSRelay{conn: conn, logger: logger}
}

// Publish sends a serialized signal to the user's subject.
func (r *NATSRelay) Publish(userID string, payload []byte) error {
	if err := r.conn.Publish(subjectPrefix+userID, payload); err != nil {
		return fmt.Errorf("publish signal for user %s: %w", userID, err)
	}
	return nil
}

// Listen subscribes to all user subjects and broadcasts inbound signals to
// the registry. Call Stop to detach.
func (r *NATSRelay) Listen(registry *Registry) error {
	sub, err := r.conn.Subscribe(subjectPrefix+"*", func(msg *nats.Msg) {
		userID := msg.Subject[len(subjectPrefix):]
		if userID == "" {
			return
		}
		registry.Broadcast(userID, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe to signal subjects: %w", err)
	}
	r.sub = sub
	r.logger.Info("signal relay listening", "subject", subjectPrefix+"*")
	return nil
}

// Stop unsubscribes the relay.
func (r *NATSRelay) Stop() error {
	if r.sub == nil {
		return nil
	}
	return r.sub.Unsubscribe()
}
