// Package audit keeps the per-request record of model usage and spend.
package audit

import (
	"os"
	"sort"
	"sync"

	"webforge/internal/fileutil"
)

// Ledger collects entries for one request. It is safe for concurrent use.
type Ledger struct {
	requestID string

	mu      sync.RWMutex
	entries []*Entry
	total   float64
}

// NewLedger creates an empty ledger.
func NewLedger(requestID string) *Ledger {
	return &Ledger{requestID: requestID}
}

// RequestID returns the request the ledger belongs to.
func (l *Ledger) RequestID() string { return l.requestID }

// Record appends e, adding its cost to the running total, and returns the new total.
func (l *Ledger) Record(e *Entry) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total += e.CostUSD
	e.RunningUSD = l.total
	l.entries = append(l.entries, e)
	return l.total
}

// Total returns the running USD total.
func (l *Ledger) Total() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// Entries returns a copy of all entries in call order.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = *e
	}
	return out
}

// StageTotal aggregates usage for one stage.
type StageTotal struct {
	Stage        string  `json:"stage"`
	Calls        int     `json:"calls"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Summary is the ledger condensed for result metadata.
type Summary struct {
	RequestID    string       `json:"request_id"`
	Calls        int          `json:"calls"`
	InputTokens  int          `json:"input_tokens"`
	OutputTokens int          `json:"output_tokens"`
	TotalUSD     float64      `json:"total_usd"`
	Stages       []StageTotal `json:"stages"`
}

// Summarize aggregates the ledger by stage.
func (l *Ledger) Summarize() Summary {
	entries := l.Entries()
	s := Summary{RequestID: l.requestID, TotalUSD: l.Total()}
	byStage := make(map[string]*StageTotal)
	for _, e := range entries {
		s.Calls++
		s.InputTokens += e.InputTokens
		s.OutputTokens += e.OutputTokens
		st, ok := byStage[e.Stage]
		if !ok {
			st = &StageTotal{Stage: e.Stage}
			byStage[e.Stage] = st
		}
		st.Calls++
		st.InputTokens += e.InputTokens
		st.OutputTokens += e.OutputTokens
		st.CostUSD += e.CostUSD
	}
	for _, st := range byStage {
		s.Stages = append(s.Stages, *st)
	}
	sort.Slice(s.Stages, func(i, j int) bool { return s.Stages[i].Stage < s.Stages[j].Stage })
	return s
}

// Save writes the entries as a JSON array, owner-readable only.
func (l *Ledger) Save(path string) error {
	return fileutil.AtomicWriteJSON(path, struct {
		Summary Summary `json:"summary"`
		Entries []Entry `json:"entries"`
	}{l.Summarize(), l.Entries()}, os.FileMode(0o600))
}
