package quality

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/net/html"

	"webforge/internal/policy"
	"webforge/internal/project"
)

// Findings is the output of the deterministic rule battery.
type Findings struct {
	Issues             []string
	ResponsiveWarnings []string
}

func (f *Findings) issue(format string, args ...any) {
	f.Issues = append(f.Issues, fmt.Sprintf(format, args...))
}

// RunRules checks p without calling a model.
func RunRules(p *project.Project, m *policy.Manifest, stack project.Stack) *Findings {
	f := &Findings{}
	checkHTMLReferences(f, p)
	if stack == project.StackFramework {
		for _, missing := range project.MissingRequired(p, stack) {
			f.issue("Missing required file: %s", missing)
		}
	}
	checkLegacyCSS(f, p)
	checkImports(f, p, m, stack)
	checkSyntax(f, p)
	checkResponsive(f, p)
	return f
}

// checkHTMLReferences reports local scripts and stylesheets an HTML file
// loads that are not in the project.
func checkHTMLReferences(f *Findings, p *project.Project) {
	for _, file := range p.Files() {
		if !policy.IsMarkup(file.Path) {
			continue
		}
		for _, ref := range htmlReferences(file.Content) {
			if isExternal(ref) || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "mailto:") {
				continue
			}
			target := ref
			if !strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "./") && !strings.HasPrefix(target, "../") {
				target = "./" + target
			}
			if _, ok := Resolve(p, file.Path, target); !ok {
				f.issue("Missing referenced file: %s", strings.TrimPrefix(ref, "./"))
			}
		}
	}
}

func htmlReferences(content string) []string {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil
	}
	var refs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script":
				if src := attr(n, "src"); src != "" {
					refs = append(refs, src)
				}
			case "link":
				rel := strings.ToLower(attr(n, "rel"))
				if href := attr(n, "href"); href != "" && (rel == "stylesheet" || rel == "modulepreload") {
					refs = append(refs, href)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	for i, r := range refs {
		r, _, _ = strings.Cut(r, "?")
		r, _, _ = strings.Cut(r, "#")
		refs[i] = strings.TrimSpace(r)
	}
	return refs
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func checkLegacyCSS(f *Findings, p *project.Project) {
	for _, file := range p.Files() {
		if policy.IsStylesheet(file.Path) && policy.HasLegacyTailwind(file.Content) {
			f.issue(`Legacy Tailwind directive in %s: replace @tailwind rules with @import "tailwindcss";`, file.Path)
		}
	}
}

func checkImports(f *Findings, p *project.Project, m *policy.Manifest, stack project.Stack) {
	for _, file := range p.Files() {
		if !policy.IsSource(file.Path) {
			continue
		}
		for _, spec := range Imports(file.Content) {
			switch {
			case isExternal(spec):
			case isRelative(spec):
				if _, ok := Resolve(p, file.Path, spec); !ok {
					f.issue("Unresolved import %q in %s", spec, file.Path)
				}
			default:
				pkg := policy.PackageName(spec)
				if nodeBuiltins[pkg] && policy.IsConfigFile(file.Path) {
					continue
				}
				if stack == project.StackStatic {
					f.issue("Bare package import %q in %s cannot load without a bundler", spec, file.Path)
					continue
				}
				if !m.Has(pkg) {
					f.issue("Package %q imported in %s is missing from package.json", pkg, file.Path)
				}
			}
		}
	}
}

var loaders = map[string]api.Loader{
	".js":  api.LoaderJSX,
	".mjs": api.LoaderJS,
	".jsx": api.LoaderJSX,
	".ts":  api.LoaderTS,
	".tsx": api.LoaderTSX,
	".css": api.LoaderCSS,
}

// checkSyntax transpiles every source file and stylesheet and reports the
// first error of each. JSON files are checked for validity.
func checkSyntax(f *Findings, p *project.Project) {
	for _, file := range p.Files() {
		ext := strings.ToLower(path.Ext(file.Path))
		if ext == ".json" {
			if !json.Valid([]byte(file.Content)) {
				f.issue("Syntax error in %s: invalid JSON", file.Path)
			}
			continue
		}
		loader, ok := loaders[ext]
		if !ok {
			continue
		}
		if msg := transpileError(file.Path, file.Content, loader); msg != "" {
			f.issue("Syntax error in %s", msg)
		}
	}
}

func transpileError(name, content string, loader api.Loader) string {
	result := api.Transform(content, api.TransformOptions{
		Loader:     loader,
		Sourcefile: name,
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) == 0 {
		return ""
	}
	e := result.Errors[0]
	if e.Location == nil {
		return fmt.Sprintf("%s: %s", name, e.Text)
	}
	return fmt.Sprintf("%s:%d:%d: %s", name, e.Location.Line, e.Location.Column+1, e.Text)
}

func checkResponsive(f *Findings, p *project.Project) {
	viewport := false
	for _, file := range p.Files() {
		if policy.IsMarkup(file.Path) && hasViewportMeta(file.Content) {
			viewport = true
			break
		}
	}
	if !viewport {
		f.ResponsiveWarnings = append(f.ResponsiveWarnings, `No viewport meta tag: add <meta name="viewport" content="width=device-width, initial-scale=1"> to index.html`)
	}
	if !policy.HasBreakpoint(p) {
		f.ResponsiveWarnings = append(f.ResponsiveWarnings, "No responsive breakpoint: add @media rules or sm:/md:/lg: variants")
	}
	if !policy.HasOverflowGuard(p) {
		f.ResponsiveWarnings = append(f.ResponsiveWarnings, "No horizontal overflow guard: constrain wide content with max-width: 100% or overflow-x: hidden")
	}
}

func hasViewportMeta(content string) bool {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return false
	}
	found := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found {
			return
		}
		if n.Type == html.ElementNode && n.Data == "meta" && strings.EqualFold(attr(n, "name"), "viewport") {
			found = true
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}
