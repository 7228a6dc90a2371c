package policy

import (
	"fmt"

	"webforge/internal/project"
)

// Runtime names a preview strategy.
type Runtime string

const (
	RuntimeStatic  Runtime = "static"
	RuntimeBundled Runtime = "bundled"
	RuntimeRemote  Runtime = "remote"
)

// RemoteThreshold is the complexity score at which framework output is
// better previewed in a remote sandbox than an in-browser bundler.
const RemoteThreshold = 85

// RuntimeHint recommends how to preview a project.
type RuntimeHint struct {
	Preferred       Runtime `json:"preferredRuntime"`
	Fallback        Runtime `json:"fallbackRuntime"`
	Reason          string  `json:"reason"`
	ComplexityScore int     `json:"complexityScore"`
}

// heavyPackages are slow to bundle in the browser or need native-like APIs.
var heavyPackages = map[string]bool{
	"three":                 true,
	"@react-three/fiber":    true,
	"@react-three/drei":     true,
	"d3":                    true,
	"recharts":              true,
	"chart.js":              true,
	"react-chartjs-2":       true,
	"leaflet":               true,
	"react-leaflet":         true,
	"gsap":                  true,
	"swiper":                true,
	"@tanstack/react-query": true,
	"firebase":              true,
	"@tensorflow/tfjs":      true,
	"monaco-editor":         true,
	"@monaco-editor/react":  true,
	"pixi.js":               true,
	"phaser":                true,
	"mapbox-gl":             true,
}

// Score weights.
const (
	frameworkBaseScore = 20
	perDependency      = 6
	perHeavyPackage    = 18
	bytesPerPoint      = 2048
)

// ComplexityScore rates a project 0-100 from its extra dependency count, its
// heavy packages and its total source size.
func ComplexityScore(m *Manifest, p *project.Project) int {
	score := 0
	if m.Framework == FrameworkReactVite {
		score = frameworkBaseScore
	}
	for name := range m.Dependencies {
		if _, base := baseDependencies[name]; base {
			continue
		}
		score += perDependency
		if heavyPackages[name] {
			score += perHeavyPackage
		}
	}
	score += p.TotalBytes() / bytesPerPoint
	if score > 100 {
		score = 100
	}
	return score
}

// Hint derives the preview recommendation.
func Hint(m *Manifest, p *project.Project) RuntimeHint {
	score := ComplexityScore(m, p)
	switch {
	case m.Framework != FrameworkReactVite:
		return RuntimeHint{
			Preferred:       RuntimeStatic,
			Fallback:        RuntimeBundled,
			Reason:          "plain HTML/CSS/JS output can be served as static files",
			ComplexityScore: score,
		}
	case score < RemoteThreshold:
		return RuntimeHint{
			Preferred:       RuntimeBundled,
			Fallback:        RuntimeRemote,
			Reason:          fmt.Sprintf("complexity %d is below %d; an in-browser bundler can run it", score, RemoteThreshold),
			ComplexityScore: score,
		}
	default:
		return RuntimeHint{
			Preferred:       RuntimeRemote,
			Fallback:        RuntimeBundled,
			Reason:          fmt.Sprintf("complexity %d reaches %d; run it in a remote sandbox with a real install", score, RemoteThreshold),
			ComplexityScore: score,
		}
	}
}
