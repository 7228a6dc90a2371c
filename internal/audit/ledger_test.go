package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRunningTotal(t *testing.T) {
	l := NewLedger("req-1")

	e1 := NewEntry("req-1", "spec", 0)
	e1.CostUSD = 0.01
	e2 := NewEntry("req-1", "build", 0)
	e2.CostUSD = 0.04
	e3 := NewEntry("req-1", "build", 1)
	e3.CostUSD = 0.02

	prev := 0.0
	for _, e := range []*Entry{e1, e2, e3} {
		total := l.Record(e)
		assert.GreaterOrEqual(t, total, prev)
		prev = total
	}
	assert.InDelta(t, 0.07, l.Total(), 1e-9)

	entries := l.Entries()
	require.Len(t, entries, 3)
	assert.InDelta(t, 0.05, entries[1].RunningUSD, 1e-9)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)

	s := l.Summarize()
	assert.Equal(t, 3, s.Calls)
	require.Len(t, s.Stages, 2)
	assert.Equal(t, "build", s.Stages[0].Stage)
	assert.Equal(t, 2, s.Stages[0].Calls)
}

func TestLedgerSave(t *testing.T) {
	l := NewLedger("req-2")
	e := NewEntry("req-2", "review", 0)
	e.Duration = 1500 * time.Millisecond
	e.Success = true
	l.Record(e)

	path := filepath.Join(t.TempDir(), ".webforge", "usage.json")
	require.NoError(t, l.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var out struct {
		Summary Summary `json:"summary"`
		Entries []Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out.Entries, 1)
	assert.Equal(t, 1500*time.Millisecond, out.Entries[0].Duration)
	assert.Equal(t, "req-2", out.Summary.RequestID)
}
