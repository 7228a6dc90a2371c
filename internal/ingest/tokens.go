package ingest

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	hexColorRe   = regexp.MustCompile(`#(?:[0-9a-fA-F]{6}|[0-9a-fA-F]{3})\b`)
	fontFamilyRe = regexp.MustCompile(`(?i)font-family\s*:\s*([^;}\n>]+)`)
	spacingRe    = regexp.MustCompile(`(?i)\b(?:padding|margin|gap)(?:-[a-z]+)?\s*:\s*([0-9.]+(?:px|rem|em))`)
	radiusRe     = regexp.MustCompile(`(?i)border-radius\s*:\s*([0-9.]+(?:px|rem|em|%))`)
	classAttrRe  = regexp.MustCompile(`(?i)class(?:Name)?\s*=\s*["'{]([^"'}]+)`)
	classSplitRe = regexp.MustCompile(`[\s\-_:/]+`)
	wordRe       = regexp.MustCompile(`[a-z]+`)
)

// componentWords maps class-name words to a canonical component name.
var componentWords = map[string]string{
	"nav":          "navbar",
	"navbar":       "navbar",
	"navigation":   "navbar",
	"menu":         "menu",
	"hero":         "hero",
	"banner":       "hero",
	"card":         "card",
	"cards":        "card",
	"btn":          "button",
	"button":       "button",
	"modal":        "modal",
	"dialog":       "modal",
	"footer":       "footer",
	"header":       "header",
	"sidebar":      "sidebar",
	"tabs":         "tabs",
	"tab":          "tabs",
	"accordion":    "accordion",
	"carousel":     "carousel",
	"slider":       "carousel",
	"badge":        "badge",
	"pricing":      "pricing",
	"testimonial":  "testimonial",
	"testimonials": "testimonial",
	"dropdown":     "dropdown",
	"avatar":       "avatar",
	"table":        "table",
	"form":         "form",
}

// interactionWords are prompt keywords that name an interaction.
var interactionWords = []string{
	"toggle", "modal", "carousel", "tabs", "accordion", "dropdown",
	"search", "filter", "sort", "drag", "hover", "animation", "dark mode",
	"checkout", "login", "signup", "subscribe", "upload",
}

// ExtractStyleTokens derives normalized style tokens from markup, CSS or
// component source: hex colors, font families, spacing and radius values, and
// recognizable component class names.
func ExtractStyleTokens(text string) []string {
	s := make(set)
	for _, c := range hexColorRe.FindAllString(text, -1) {
		s.add(normalizeHex(c))
	}
	for _, m := range fontFamilyRe.FindAllStringSubmatch(text, -1) {
		if f := firstFont(m[1]); f != "" {
			s.add("font:" + f)
		}
	}
	for _, m := range spacingRe.FindAllStringSubmatch(text, -1) {
		s.add("spacing:" + strings.ToLower(m[1]))
	}
	for _, m := range radiusRe.FindAllStringSubmatch(text, -1) {
		s.add("radius:" + strings.ToLower(m[1]))
	}
	for _, m := range classAttrRe.FindAllStringSubmatch(text, -1) {
		for _, word := range classSplitRe.Split(strings.ToLower(m[1]), -1) {
			if c, ok := componentWords[word]; ok {
				s.add("component:" + c)
			}
		}
	}
	return s.sorted()
}

// PromptHints extracts interaction keywords named in a prompt.
func PromptHints(prompt string) []string {
	lower := strings.ToLower(prompt)
	s := make(set)
	for _, w := range interactionWords {
		if strings.Contains(lower, w) {
			s.add("interaction:" + w)
		}
	}
	return s.sorted()
}

// HintPresent reports whether a hint is reflected in generated source.
// code must already be lowercased.
func HintPresent(hint, code string) bool {
	kind, value, ok := strings.Cut(hint, ":")
	if !ok {
		return strings.Contains(code, strings.ToLower(hint))
	}
	switch kind {
	case "form":
		return strings.Contains(code, "<form") || strings.Contains(code, "<input")
	case "interaction":
		for _, w := range wordRe.FindAllString(value, -1) {
			if !strings.Contains(code, w) {
				return false
			}
		}
		return true
	default:
		return strings.Contains(code, strings.ToLower(value))
	}
}

func normalizeHex(c string) string {
	c = strings.ToLower(c)
	if len(c) == 4 {
		return fmt.Sprintf("#%c%c%c%c%c%c", c[1], c[1], c[2], c[2], c[3], c[3])
	}
	return c
}

func firstFont(decl string) string {
	first := strings.TrimSpace(decl)
	if first != "" && (first[0] == '"' || first[0] == '\'') {
		if end := strings.IndexByte(first[1:], first[0]); end >= 0 {
			first = first[1 : end+1]
		}
	}
	if i := strings.IndexAny(first, ",\"'"); i >= 0 {
		first = first[:i]
	}
	first = strings.ToLower(strings.TrimSpace(first))
	if first == "" || strings.HasPrefix(first, "var(") || strings.HasPrefix(first, "inherit") {
		return ""
	}
	return first
}
