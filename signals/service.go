package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/curatorhq/curator/domain"
	"github.com/curatorhq/curator/store"
)

// Publisher fans a signal out to subscribers in other processes. The NATS
// relay implements it; a nil publisher limits push delivery to local sinks.
type Publisher interface {
	Publish(userID string, payload []byte) error
}

// DeliveryFailure is returned when a signal reached neither a live
// subscriber nor the durable inbox.
type DeliveryFailure struct {
	SignalID string
	PushErr  error
	StoreErr error
}

func (e *DeliveryFailure) Error() string {
	return fmt.Sprintf("signal %s undeliverable: push: %v, inbox: %v", e.SignalID, e.PushErr, e.StoreErr)
}

// Service validates, pushes, and persists signals. Delivery succeeds when at
// least one of the two channels accepts the signal.
type Service struct {
	registry  *Registry
	inbox     store.InboxStore
	publisher Publisher
	metrics   *Metrics
	logger    *slog.Logger
}

// NewService wires the delivery pipeline. publisher may be nil.
func NewService(registry *Registry, inbox store.InboxStore, publisher Publisher, metrics *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics != nil && registry != nil {
		registry.Instrument(metrics.Subscribers)
	}
	return &Service{
		registry:  registry,
		inbox:     inbox,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// wireSignal is the JSON shape pushed to subscribers.
type wireSignal struct {
	ID         string         `json:"id"`
	SignalType string         `json:"signal_type"`
	WorkflowID string         `json:"workflow_id"`
	Data       map[string]any `json:"data"`
	Timestamp  string         `json:"timestamp"`
}

// Send validates and delivers a signal. The returned signal carries the
// assigned id and the timestamp actually recorded in the inbox.
func (s *Service) Send(ctx context.Context, userID, workflowID string, t domain.SignalType, data map[string]any) (*domain.Signal, error) {
	if err := domain.ValidateSignalData(t, data); err != nil {
		return nil, fmt.Errorf("invalid signal payload: %w", err)
	}

	sig := &domain.Signal{
		ID:         uuid.NewString(),
		UserID:     userID,
		WorkflowID: workflowID,
		Type:       t,
		Data:       data,
		Timestamp:  time.Now().UTC(),
	}

	// Persist first so the pushed payload carries the inbox timestamp,
	// which the store may have bumped for ordering.
	storeErr := s.inbox.AppendSignal(ctx, sig)
	s.count(t, "inbox", storeErr)

	payload, err := json.Marshal(wireSignal{
		ID:         sig.ID,
		SignalType: string(sig.Type),
		WorkflowID: sig.WorkflowID,
		Data:       sig.Data,
		Timestamp:  sig.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal signal: %w", err)
	}

	pushErr := s.push(userID, payload)
	s.count(t, "push", pushErr)

	if storeErr != nil && pushErr != nil {
		return nil, &DeliveryFailure{SignalID: sig.ID, PushErr: pushErr, StoreErr: storeErr}
	}
	if storeErr != nil {
		s.logger.Warn("signal pushed but not persisted", "signal_id", sig.ID, "error", storeErr)
	}
	if pushErr != nil {
		s.logger.Debug("signal persisted without live delivery", "signal_id", sig.ID, "error", pushErr)
	}
	return sig, nil
}

// push delivers to local sinks and the cross-process relay. It succeeds when
// at least one local sink accepted the payload or the relay publish went
// through.
func (s *Service) push(userID string, payload []byte) error {
	delivered := s.registry.Broadcast(userID, payload)

	var pubErr error
	if s.publisher != nil {
		pubErr = s.publisher.Publish(userID, payload)
	} else if delivered == 0 {
		pubErr = fmt.Errorf("no live subscribers for user %s", userID)
	}

	if delivered > 0 || (s.publisher != nil && pubErr == nil) {
		return nil
	}
	return pubErr
}

func (s *Service) count(t domain.SignalType, channel string, err error) {
	if s.metrics == nil {
		return
	}
	if err != nil {
		s.metrics.Failed.WithLabelValues(string(t), channel).Inc()
		return
	}
	s.metrics.Sent.WithLabelValues(string(t), channel).Inc()
}
