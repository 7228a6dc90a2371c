package project

import (
	"path"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

// webLanguages pins the tags downstream consumers switch on.
var webLanguages = map[string]string{
	".html": "html",
	".htm":  "html",
	".css":  "css",
	".scss": "scss",
	".js":   "javascript",
	".mjs":  "javascript",
	".cjs":  "javascript",
	".jsx":  "jsx",
	".ts":   "typescript",
	".tsx":  "tsx",
	".json": "json",
	".md":   "markdown",
	".svg":  "svg",
}

// DetectLanguage returns a lowercase language tag for a file path.
// Unknown extensions fall back to the chroma lexer registry, then "plaintext".
func DetectLanguage(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if lang, ok := webLanguages[ext]; ok {
		return lang
	}
	if lexer := lexers.Match(path.Base(p)); lexer != nil {
		return strings.ToLower(lexer.Config().Name)
	}
	return "plaintext"
}

// IsScript reports whether the path holds JavaScript or TypeScript source.
func IsScript(p string) bool {
	switch DetectLanguage(p) {
	case "javascript", "jsx", "typescript", "tsx":
		return true
	}
	return false
}

// IsStyle reports whether the path is a stylesheet.
func IsStyle(p string) bool {
	switch DetectLanguage(p) {
	case "css", "scss":
		return true
	}
	return false
}
