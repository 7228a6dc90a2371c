// Package design turns ingested references into a structured design
// blueprint that every later stage reads.
package design

import (
	"encoding/json"

	"webforge/internal/project"
)

// Layout is the page structure.
type Layout struct {
	Structure   string   `json:"structure"`
	Sections    []string `json:"sections"`
	Breakpoints []string `json:"breakpoints"`
}

// Typography names font families and the type scale.
type Typography struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
	Scale   string `json:"scale,omitempty"`
}

// Visual is the visual system.
type Visual struct {
	Theme      string            `json:"theme"`
	Palette    map[string]string `json:"palette"`
	Typography Typography        `json:"typography"`
	Spacing    []string          `json:"spacing"`
	Radius     string            `json:"radius,omitempty"`
}

// Component is one UI component the page needs.
type Component struct {
	Name   string   `json:"name"`
	Role   string   `json:"role"`
	States []string `json:"states,omitempty"`
}

// Interaction is one behavior the page must implement.
type Interaction struct {
	Name     string `json:"name"`
	Trigger  string `json:"trigger,omitempty"`
	Behavior string `json:"behavior"`
}

// Origin records where a Spec came from.
type Origin string

const (
	OriginModel    Origin = "model"
	OriginFallback Origin = "fallback"
)

// Spec is the design blueprint. It is created once per request and treated
// as read-only afterwards.
type Spec struct {
	Name         string                `json:"name"`
	Description  string                `json:"description"`
	Stack        project.Stack         `json:"outputStack"`
	Layout       Layout                `json:"layout"`
	Visual       Visual                `json:"visual"`
	Components   []Component           `json:"components"`
	Interactions []Interaction         `json:"interactions"`
	FilePlan     []project.PlannedFile `json:"filePlan"`

	Origin Origin `json:"-"`
}

// JSON renders the spec for inclusion in a prompt.
func (s *Spec) JSON() string {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
