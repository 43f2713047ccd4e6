package extract

import (
	"encoding/json"
	"fmt"
)

const dateLayout = "2006-01-02"

// MarshalJSON renders a Value as the API-facing JSON: strings for text
// fields, ISO dates, bare numbers for amounts, null when absent.
func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.Text != nil:
		return json.Marshal(*v.Text)
	case v.Date != nil:
		return json.Marshal(v.Date.Format(dateLayout))
	case v.Amount != nil:
		// decimal renders as a bare JSON number, matching the stored schema.
		return []byte(v.Amount.String()), nil
	default:
		return []byte("null"), nil
	}
}

// String renders the value for logs and prompts; absent values render as "null".
func (v Value) String() string {
	switch {
	case v.Text != nil:
		return *v.Text
	case v.Date != nil:
		return v.Date.Format(dateLayout)
	case v.Amount != nil:
		return v.Amount.String()
	default:
		return "null"
	}
}

// MarshalSteps serializes a step log for durable storage.
func MarshalSteps(l StepLog) (string, error) {
	b, err := json.Marshal(l)
	if err != nil {
		return "", fmt.Errorf("marshal step log: %w", err)
	}
	return string(b), nil
}

// UnmarshalSteps restores a step log from its stored form. An empty input
// yields an empty log.
func UnmarshalSteps(s string) (StepLog, error) {
	if s == "" {
		return StepLog{}, nil
	}
	var l StepLog
	if err := json.Unmarshal([]byte(s), &l); err != nil {
		return nil, fmt.Errorf("unmarshal step log: %w", err)
	}
	return l, nil
}
