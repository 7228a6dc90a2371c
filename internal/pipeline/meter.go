package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"webforge/internal/audit"
	"webforge/internal/client"
	"webforge/internal/logging"
	"webforge/internal/security"
)

// meter wraps a client so every call lands in the ledger and the running
// total is checked against the cap as soon as the call returns.
type meter struct {
	client.Client
	ledger   *audit.Ledger
	prices   *client.PriceTable
	capUSD   float64
	redactor *security.SecretRedactor
	attempt  atomic.Int32
}

func newMeter(c client.Client, ledger *audit.Ledger, prices *client.PriceTable, capUSD float64, redactor *security.SecretRedactor) *meter {
	return &meter{Client: c, ledger: ledger, prices: prices, capUSD: capUSD, redactor: redactor}
}

func (m *meter) setAttempt(n int) { m.attempt.Store(int32(n)) }

// Generate forwards to the wrapped client. A response that pushes the total
// over the cap is returned together with a *CostCapError.
func (m *meter) Generate(ctx context.Context, req *client.Request) (*client.Response, error) {
	entry := audit.NewEntry(m.ledger.RequestID(), req.Stage, int(m.attempt.Load()))
	entry.Provider = m.Provider()
	entry.Model = m.Model()

	start := time.Now()
	resp, err := m.Client.Generate(ctx, req)
	entry.Duration = time.Since(start)

	if err != nil {
		entry.Error = m.redactor.Redact(err.Error())
		m.ledger.Record(entry)
		logging.Warn("model call failed",
			"request_id", entry.RequestID, "stage", req.Stage, "error", entry.Error)
		return nil, err
	}

	entry.Success = true
	entry.Model = resp.Model
	entry.InputTokens = resp.InputTokens
	entry.OutputTokens = resp.OutputTokens
	entry.Estimated = resp.Estimated
	entry.CostUSD = m.prices.Lookup(m.Provider(), resp.Model).Cost(resp.InputTokens, resp.OutputTokens)
	total := m.ledger.Record(entry)

	logging.Info("model call",
		"request_id", entry.RequestID,
		"stage", req.Stage,
		"attempt", entry.Attempt,
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"cost_usd", entry.CostUSD,
		"total_usd", total,
		"duration", entry.Duration)

	if total > m.capUSD {
		return resp, &CostCapError{TotalUSD: total, CapUSD: m.capUSD, Stage: req.Stage}
	}
	return resp, nil
}
