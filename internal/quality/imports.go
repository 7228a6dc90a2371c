package quality

import (
	"path"
	"regexp"
	"strings"

	"webforge/internal/project"
)

var importRes = []*regexp.Regexp{
	regexp.MustCompile(`(?m)\bimport\s+(?:type\s+)?[\w*{}\s,$]+?\s+from\s+["']([^"']+)["']`),
	regexp.MustCompile(`(?m)\bimport\s+["']([^"']+)["']`),
	regexp.MustCompile(`(?m)\bexport\s+(?:type\s+)?[\w*{}\s,$]+?\s+from\s+["']([^"']+)["']`),
	regexp.MustCompile(`\bimport\(\s*["']([^"']+)["']\s*\)`),
	regexp.MustCompile(`\brequire\(\s*["']([^"']+)["']\s*\)`),
}

// resolveExtensions are tried, in order, for an extensionless import.
var resolveExtensions = []string{".tsx", ".ts", ".jsx", ".js", ".mjs", ".json", ".css"}

// nodeBuiltins are modules a config file may import without declaring them.
var nodeBuiltins = map[string]bool{
	"path": true, "fs": true, "url": true, "os": true, "util": true,
	"crypto": true, "events": true, "stream": true, "module": true, "process": true,
}

// Imports returns the import specifiers of a JS/TS source file, in order of
// appearance and without duplicates.
func Imports(content string) []string {
	seen := map[string]bool{}
	var out []string
	for _, re := range importRes {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				out = append(out, m[1])
			}
		}
	}
	return out
}

// isRelative reports whether spec points into the project.
func isRelative(spec string) bool {
	return strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") || strings.HasPrefix(spec, "/")
}

// isExternal reports whether spec is loaded from outside the package graph.
func isExternal(spec string) bool {
	lower := strings.ToLower(spec)
	for _, prefix := range []string{"http://", "https://", "//", "data:", "node:", "virtual:", "~"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Resolve finds the file a relative import from "from" refers to, trying
// common extensions and directory index files the way a bundler would.
func Resolve(p *project.Project, from, spec string) (string, bool) {
	spec, _, _ = strings.Cut(spec, "?")
	var base string
	if strings.HasPrefix(spec, "/") {
		base = path.Clean(strings.TrimPrefix(spec, "/"))
	} else {
		base = path.Join(path.Dir(from), spec)
	}
	if strings.HasPrefix(base, "../") || base == ".." {
		return "", false
	}

	candidates := []string{base, "public/" + base}
	for _, ext := range resolveExtensions {
		candidates = append(candidates, base+ext)
	}
	for _, ext := range resolveExtensions {
		candidates = append(candidates, base+"/index"+ext)
	}
	// TS sources often import "./x.js" meaning "./x.ts".
	if ext := path.Ext(base); ext == ".js" || ext == ".jsx" {
		stem := strings.TrimSuffix(base, ext)
		candidates = append(candidates, stem+".ts", stem+".tsx")
	}
	return p.HasAny(candidates...)
}
