package client

import "strings"

// Price is USD per million tokens.
type Price struct {
	Input  float64
	Output float64
}

// Cost returns the USD cost of a call.
func (p Price) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*p.Input/1e6 + float64(outputTokens)*p.Output/1e6
}

// fallbackPrice applies to models missing from every table. It is set high
// enough that an unknown model cannot slip under the cost cap.
var fallbackPrice = Price{Input: 3.00, Output: 15.00}

// PriceTable resolves per-model prices.
type PriceTable struct {
	overrides map[string]Price
}

// NewPriceTable builds a table with the given overrides on top of the built-in prices.
func NewPriceTable(overrides map[string]Price) *PriceTable {
	t := &PriceTable{overrides: make(map[string]Price, len(overrides))}
	for k, v := range overrides {
		t.overrides[k] = v
	}
	return t
}

// Lookup returns the price of a model.
func (t *PriceTable) Lookup(provider, model string) Price {
	if t != nil {
		if p, ok := t.overrides[model]; ok {
			return p
		}
	}
	if info, ok := GetModelInfo(model); ok {
		return info.Pricing
	}
	// Dated or suffixed variants share the base model's price.
	for _, m := range AvailableModels {
		if strings.HasPrefix(model, m.ID) {
			return m.Pricing
		}
	}
	if provider == "ollama" || provider == "fake" {
		return Price{}
	}
	return fallbackPrice
}
