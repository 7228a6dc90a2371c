package design

import (
	"strings"
	"unicode"

	"webforge/internal/ingest"
	"webforge/internal/project"
)

// Synthesize builds a spec from the bundle alone. It is deterministic: the
// same bundle and stack always produce the same spec.
func Synthesize(b *ingest.Bundle, stack project.Stack) *Spec {
	s := &Spec{}
	Normalize(s, b, stack)
	s.Origin = OriginFallback
	return s
}

// Normalize fills every empty field of s from reference signals or curated
// defaults, sets the stack and forces the file plan to the stack's required
// set.
func Normalize(s *Spec, b *ingest.Bundle, stack project.Stack) {
	if b == nil {
		b = &ingest.Bundle{}
	}
	sig := readSignals(b)

	s.Stack = stack
	if strings.TrimSpace(s.Name) == "" {
		s.Name = deriveName(b)
	}
	if strings.TrimSpace(s.Description) == "" {
		s.Description = deriveDescription(b)
	}

	if s.Layout.Structure == "" {
		s.Layout.Structure = "single-page, vertically stacked sections, centered max-width container"
	}
	if len(s.Layout.Sections) == 0 {
		s.Layout.Sections = deriveSections(sig.components)
	}
	if len(s.Layout.Breakpoints) == 0 {
		s.Layout.Breakpoints = append([]string(nil), defaultBreakpoints...)
	}

	if s.Visual.Theme == "" {
		s.Visual.Theme = defaultTheme
	}
	s.Visual.Palette = mergePalette(s.Visual.Palette, sig.colors)
	if s.Visual.Typography.Heading == "" {
		s.Visual.Typography.Heading = firstOr(sig.fonts, defaultFontStack)
	}
	if s.Visual.Typography.Body == "" {
		s.Visual.Typography.Body = firstOr(sig.fonts, defaultFontStack)
	}
	if s.Visual.Typography.Scale == "" {
		s.Visual.Typography.Scale = defaultScale
	}
	if len(s.Visual.Spacing) == 0 {
		if len(sig.spacing) > 0 {
			s.Visual.Spacing = sig.spacing
		} else {
			s.Visual.Spacing = append([]string(nil), defaultSpacing...)
		}
	}
	if s.Visual.Radius == "" {
		s.Visual.Radius = firstOr(sig.radius, defaultRadius)
	}

	if len(s.Components) == 0 {
		s.Components = deriveComponents(sig.components)
	}
	if len(s.Interactions) == 0 {
		s.Interactions = deriveInteractions(b.InteractionHints)
	}

	s.FilePlan = project.RequiredFiles(stack)
}

type signals struct {
	colors     []string
	fonts      []string
	spacing    []string
	radius     []string
	components []string
}

func readSignals(b *ingest.Bundle) signals {
	var sig signals
	for _, tok := range b.StyleTokens {
		if strings.HasPrefix(tok, "#") {
			sig.colors = append(sig.colors, tok)
			continue
		}
		kind, value, ok := strings.Cut(tok, ":")
		if !ok {
			continue
		}
		switch kind {
		case "font":
			sig.fonts = append(sig.fonts, value+", "+defaultFontStack)
		case "spacing":
			sig.spacing = append(sig.spacing, value)
		case "radius":
			sig.radius = append(sig.radius, value)
		case "component":
			sig.components = append(sig.components, value)
		}
	}
	return sig
}

func mergePalette(p map[string]string, colors []string) map[string]string {
	out := make(map[string]string, len(defaultPalette))
	for k, v := range p {
		if v != "" {
			out[k] = v
		}
	}
	i := 0
	for _, role := range paletteOrder {
		if _, ok := out[role]; ok {
			continue
		}
		if i < len(colors) {
			out[role] = colors[i]
			i++
			continue
		}
		out[role] = defaultPalette[role]
	}
	return out
}

func deriveName(b *ingest.Bundle) string {
	for _, src := range b.Sources {
		if src.OK && src.Title != "" {
			return truncateWords(src.Title, 6)
		}
	}
	if b.Prompt != "" {
		return titleCase(truncateWords(b.Prompt, 5))
	}
	return "Generated Site"
}

func deriveDescription(b *ingest.Bundle) string {
	if b.Prompt != "" {
		return truncateWords(b.Prompt, 40)
	}
	for _, src := range b.Sources {
		if src.Description != "" {
			return src.Description
		}
	}
	return "A responsive single-page website."
}

var sectionForComponent = map[string]string{
	"navbar":      "header",
	"header":      "header",
	"hero":        "hero",
	"card":        "features",
	"pricing":     "pricing",
	"testimonial": "testimonials",
	"form":        "contact",
	"footer":      "footer",
}

func deriveSections(components []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	add("header")
	add("hero")
	for _, c := range components {
		if s, ok := sectionForComponent[c]; ok && s != "footer" {
			add(s)
		}
	}
	if len(out) == 2 {
		for _, s := range defaultSections[2:] {
			add(s)
		}
	}
	add("footer")
	return out
}

func deriveComponents(components []string) []Component {
	if len(components) == 0 {
		return append([]Component(nil), defaultComponents...)
	}
	out := make([]Component, 0, len(components))
	for _, c := range components {
		out = append(out, Component{Name: titleCase(c), Role: c + " component matching the reference"})
	}
	return out
}

func deriveInteractions(hints []string) []Interaction {
	var out []Interaction
	for _, h := range hints {
		kind, value, ok := strings.Cut(h, ":")
		if !ok {
			continue
		}
		switch kind {
		case "interaction":
			out = append(out, Interaction{Name: value, Trigger: "user action", Behavior: "implement " + value + " with visible state changes"})
		case "button":
			out = append(out, Interaction{Name: value, Trigger: "click", Behavior: "button labelled \"" + value + "\" performs its action"})
		case "form":
			out = append(out, Interaction{Name: "form", Trigger: "submit", Behavior: "validate fields and show a confirmation"})
		}
	}
	if len(out) == 0 {
		out = []Interaction{{Name: "mobile menu", Trigger: "click", Behavior: "toggle the navigation on small screens"}}
	}
	return out
}

func firstOr(values []string, def string) string {
	if len(values) > 0 {
		return values[0]
	}
	return def
}

func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
