package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry records one model call.
type Entry struct {
	ID           string        `json:"id"`
	Timestamp    time.Time     `json:"timestamp"`
	RequestID    string        `json:"request_id"`
	Stage        string        `json:"stage"`
	Attempt      int           `json:"attempt"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Estimated    bool          `json:"estimated,omitempty"`
	CostUSD      float64       `json:"cost_usd"`
	RunningUSD   float64       `json:"running_usd"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration_ms"`
}

// NewEntry creates an entry with a generated ID and timestamp.
func NewEntry(requestID, stage string, attempt int) *Entry {
	return &Entry{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		RequestID: requestID,
		Stage:     stage,
		Attempt:   attempt,
	}
}

// MarshalJSON writes Duration as milliseconds.
func (e *Entry) MarshalJSON() ([]byte, error) {
	type Alias Entry
	return json.Marshal(&struct {
		*Alias
		DurationMs int64 `json:"duration_ms"`
	}{
		Alias:      (*Alias)(e),
		DurationMs: e.Duration.Milliseconds(),
	})
}

// UnmarshalJSON reads Duration from milliseconds.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type Alias Entry
	aux := &struct {
		*Alias
		DurationMs int64 `json:"duration_ms"`
	}{
		Alias: (*Alias)(e),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	e.Duration = time.Duration(aux.DurationMs) * time.Millisecond
	return nil
}
