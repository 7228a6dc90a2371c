package quality

import (
	"math"
	"strings"

	"webforge/internal/ingest"
	"webforge/internal/project"
)

// Visual score weights.
const (
	tokenWeight = 0.7
	hintWeight  = 0.3
)

// VisualScore estimates, 0-100, how closely generated files reproduce the
// reference style tokens and interaction hints. Missing references count as
// fully matched.
func VisualScore(refTokens, refHints []string, p *project.Project) int {
	code := p.Concat()
	return int(math.Round(100 * (tokenWeight*tokenOverlap(refTokens, code) + hintWeight*hintCoverage(refHints, code))))
}

func tokenOverlap(ref []string, code string) float64 {
	if len(ref) == 0 {
		return 1
	}
	generated := make(map[string]bool)
	for _, t := range ingest.ExtractStyleTokens(code) {
		generated[t] = true
	}
	hit := 0
	for _, t := range ref {
		if generated[t] {
			hit++
		}
	}
	return float64(hit) / float64(len(ref))
}

func hintCoverage(hints []string, code string) float64 {
	if len(hints) == 0 {
		return 1
	}
	lower := strings.ToLower(code)
	hit := 0
	for _, h := range hints {
		if ingest.HintPresent(h, lower) {
			hit++
		}
	}
	return float64(hit) / float64(len(hints))
}
