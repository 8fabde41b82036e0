package domain

import (
	"fmt"
	"time"
)

// SignalType classifies a user-facing signal.
type SignalType string

const (
	SignalStatusUpdate SignalType = "status_update"
	SignalProgress     SignalType = "progress"
	SignalCompletion   SignalType = "completion"
	SignalError        SignalType = "error"
)

// Signal is a typed notification addressed to a user. Signals are pushed to
// live subscribers and appended to the user's durable inbox.
type Signal struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	WorkflowID string         `json:"workflow_id"`
	Type       SignalType     `json:"signal_type"`
	Data       map[string]any `json:"data"`
	Timestamp  time.Time      `json:"timestamp"`
	Read       bool           `json:"read"`
	ReadAt     *time.Time     `json:"read_at,omitempty"`
}

// requiredSignalFields lists the payload keys each signal type must carry.
var requiredSignalFields = map[SignalType][]string{
	SignalStatusUpdate: {"status"},
	SignalProgress:     {"progress", "step"},
	SignalCompletion:   {"result"},
	SignalError:        {"error"},
}

// ValidateSignalData checks that the payload carries the required fields for
// its type and that progress values stay in [0,1].
func ValidateSignalData(t SignalType, data map[string]any) error {
	required, ok := requiredSignalFields[t]
	if !ok {
		return fmt.Errorf("unknown signal type %q", t)
	}
	for _, field := range required {
		if _, present := data[field]; !present {
			return fmt.Errorf("signal type %s requires field %q", t, field)
		}
	}
	if raw, present := data["progress"]; present {
		p, isFloat := toFloat(raw)
		if !isFloat {
			return fmt.Errorf("progress must be numeric, got %T", raw)
		}
		if p < 0 || p > 1 {
			return fmt.Errorf("progress must be in [0,1], got %g", p)
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
