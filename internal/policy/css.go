package policy

import (
	"path"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"webforge/internal/project"
)

// File classification globs.
const (
	styleGlob  = "**/*.{css,scss}"
	markupGlob = "**/*.{html,htm}"
	sourceGlob = "**/*.{js,jsx,ts,tsx,mjs}"
)

var (
	legacyTailwindRe = regexp.MustCompile(`(?m)^[ \t]*@tailwind[ \t]+(base|components|utilities|variants|screens)[ \t]*;?[ \t]*\n?`)
	legacyImportRe   = regexp.MustCompile(`(?m)^[ \t]*@import[ \t]+["']tailwindcss/(base|components|utilities)(\.css)?["'][ \t]*;?[ \t]*\n?`)
	tailwindImportRe = regexp.MustCompile(`@import\s+["']tailwindcss["']`)

	breakpointRe = regexp.MustCompile(`@media[^{]*\(\s*(min|max)-width|@container|\b(sm|md|lg|xl|2xl):[a-z-]`)
	overflowRe   = regexp.MustCompile(`overflow-x\s*:\s*(hidden|clip|auto)|\boverflow-x-(hidden|clip|auto)\b|\bmax-w-full\b|max-width\s*:\s*100(%|vw)|overflow-wrap\s*:\s*(anywhere|break-word)|\bbreak-words\b`)
)

// Guard markers let a second pass recognize injected blocks.
const (
	overflowMarker   = "/* webforge:overflow-guard */"
	breakpointMarker = "/* webforge:breakpoints */"
)

const overflowGuard = overflowMarker + `
html, body { max-width: 100%; overflow-x: hidden; }
img, video, canvas, iframe { max-width: 100%; height: auto; }
`

const breakpointBaseline = breakpointMarker + `
@media (max-width: 768px) {
  body { font-size: 15px; }
  section { padding-left: 1rem; padding-right: 1rem; }
}
@media (min-width: 1280px) {
  main { margin-left: auto; margin-right: auto; }
}
`

func matchGlob(pattern, name string) bool {
	ok, _ := doublestar.Match(pattern, name)
	return ok
}

// IsStylesheet reports whether path is CSS or SCSS.
func IsStylesheet(p string) bool { return matchGlob(styleGlob, p) }

// IsMarkup reports whether path is an HTML document.
func IsMarkup(p string) bool { return matchGlob(markupGlob, p) }

// IsSource reports whether path is JS or TS source.
func IsSource(p string) bool { return matchGlob(sourceGlob, p) }

// responsiveText concatenates every stylesheet, markup and source file.
func responsiveText(p *project.Project) string {
	var b strings.Builder
	for _, f := range p.Files() {
		if IsStylesheet(f.Path) || IsMarkup(f.Path) || IsSource(f.Path) {
			b.WriteString(f.Content)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// HasBreakpoint reports whether any file declares a responsive breakpoint,
// either as a CSS media query or a Tailwind responsive prefix.
func HasBreakpoint(p *project.Project) bool {
	return breakpointRe.MatchString(responsiveText(p))
}

// HasOverflowGuard reports whether any file prevents horizontal overflow.
func HasOverflowGuard(p *project.Project) bool {
	return overflowRe.MatchString(responsiveText(p))
}

// HasLegacyTailwind reports whether content uses v3 directives.
func HasLegacyTailwind(content string) bool {
	return legacyTailwindRe.MatchString(content) || legacyImportRe.MatchString(content)
}

// normalizeTailwind rewrites v3 directives in every stylesheet to the single
// v4 import. It returns the paths it changed.
func normalizeTailwind(w *workset) []string {
	var changed []string
	for _, f := range w.list() {
		if !IsStylesheet(f.Path) || !HasLegacyTailwind(f.Content) {
			continue
		}
		content := legacyTailwindRe.ReplaceAllString(f.Content, "")
		content = legacyImportRe.ReplaceAllString(content, "")
		if !tailwindImportRe.MatchString(content) {
			content = tailwindImport + "\n" + content
		}
		w.set(f.Path, content)
		changed = append(changed, f.Path)
	}
	return changed
}

// ensureTailwindImport makes sure some stylesheet imports tailwind and that
// the entry point loads that stylesheet. When no stylesheet has the import,
// the main stylesheet gets it plus a base reset.
func ensureTailwindImport(w *workset, entry string, n *notes) {
	for _, f := range w.list() {
		if IsStylesheet(f.Path) && tailwindImportRe.MatchString(f.Content) {
			return
		}
	}
	css, ok := project.Satisfy(w.project(), "src/index.css")
	if !ok {
		css = "src/index.css"
	}
	existing, _ := w.get(css)
	w.set(css, tailwindImport+"\n\n"+baseReset+"\n"+existing.Content)
	n.add("injected the tailwind import and base reset into " + css)

	ensureStyleImported(w, entry, css, n)
}

// ensureStyleImported adds an import of css to entry when no source file
// imports it.
func ensureStyleImported(w *workset, entry, css string, n *notes) {
	base := path.Base(css)
	for _, f := range w.list() {
		if IsSource(f.Path) && strings.Contains(f.Content, base) {
			return
		}
	}
	f, ok := w.get(entry)
	if !ok {
		return
	}
	rel := "./" + strings.TrimPrefix(css, path.Dir(entry)+"/")
	w.set(entry, "import '"+rel+"'\n"+f.Content)
	n.add("imported " + css + " from " + entry)
}

// injectGuards appends the overflow guard and breakpoint baseline to the
// main stylesheet when the project has neither pattern.
func injectGuards(w *workset, stylesheet string, n *notes) {
	p := w.project()
	needOverflow := !HasOverflowGuard(p)
	needBreakpoint := !HasBreakpoint(p)
	if !needOverflow && !needBreakpoint {
		return
	}
	f, _ := w.get(stylesheet)
	content := strings.TrimRight(f.Content, "\n")
	if needOverflow {
		content += "\n\n" + overflowGuard
		n.add("injected responsive overflow guard into " + stylesheet)
	}
	if needBreakpoint {
		content += "\n\n" + breakpointBaseline
		n.add("injected breakpoint baseline into " + stylesheet)
	}
	w.set(stylesheet, strings.TrimLeft(content, "\n"))
}
