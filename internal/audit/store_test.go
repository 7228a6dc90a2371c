package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCall(requestID, stage, model string, cost float64, ok bool) *Entry {
	e := NewEntry(requestID, stage, 0)
	e.Provider = "gemini"
	e.Model = model
	e.InputTokens = 1000
	e.OutputTokens = 500
	e.CostUSD = cost
	e.Success = ok
	e.Duration = 1500 * time.Millisecond
	return e
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "nested", "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreSpend(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l1 := NewLedger("req-1")
	l1.Record(newCall("req-1", "spec", "gemini-2.5-flash", 0.01, true))
	l1.Record(newCall("req-1", "build", "gemini-2.5-pro", 0.20, true))
	l2 := NewLedger("req-2")
	l2.Record(newCall("req-2", "build", "gemini-2.5-pro", 0.30, false))

	require.NoError(t, s.SaveLedger(ctx, l1))
	require.NoError(t, s.SaveLedger(ctx, l2))

	sp, err := s.Spend(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, sp.Requests)
	assert.Equal(t, 3, sp.Calls)
	assert.Equal(t, 1, sp.Failed)
	assert.Equal(t, 3000, sp.InputTokens)
	assert.InDelta(t, 0.51, sp.TotalUSD, 1e-9)

	require.Len(t, sp.Models, 2)
	assert.Equal(t, "gemini-2.5-pro", sp.Models[0].Model)
	assert.Equal(t, 2, sp.Models[0].Calls)
	assert.InDelta(t, 0.50, sp.Models[0].CostUSD, 1e-9)
}

func TestStoreSaveIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l := NewLedger("req-1")
	l.Record(newCall("req-1", "spec", "gemini-2.5-flash", 0.01, true))
	require.NoError(t, s.SaveLedger(ctx, l))
	require.NoError(t, s.SaveLedger(ctx, l))

	sp, err := s.Spend(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, sp.Calls)
}

func TestStoreSpendSince(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := newCall("req-old", "build", "gemini-2.5-pro", 0.40, true)
	old.Timestamp = time.Now().Add(-48 * time.Hour)
	l := NewLedger("req-old")
	l.Record(old)
	require.NoError(t, s.SaveLedger(ctx, l))

	sp, err := s.Spend(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, sp.Calls)
	assert.Zero(t, sp.TotalUSD)
	assert.Empty(t, sp.Models)
}

func TestStoreEmptyLedger(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveLedger(context.Background(), NewLedger("req-1")))
}
