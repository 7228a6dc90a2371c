// Package policy sanitizes generated dependency manifests, scaffolds missing
// required files, normalizes legacy syntax and recommends a preview runtime.
// Enforce is a fixed point: applying it to its own output changes nothing.
package policy

import (
	"sort"
	"strings"

	"webforge/internal/config"
	"webforge/internal/logging"
	"webforge/internal/project"
)

const defaultPackageName = "webforge-app"

// Request selects how a project is enforced.
type Request struct {
	Stack project.Stack
	// Name seeds the package name and scaffold titles.
	Name string
}

// Result is a policy pass.
type Result struct {
	Project  *project.Project
	Manifest *Manifest
	Hint     RuntimeHint
	// Notes are human-readable descriptions of every change and warning.
	Notes []string
	// Dropped lists packages removed in strict mode.
	Dropped []string
}

// Enforcer applies the package policy.
type Enforcer struct {
	strict bool
	extra  map[string]bool
}

// NewEnforcer creates an enforcer from policy configuration.
func NewEnforcer(cfg config.PolicyConfig) *Enforcer {
	e := &Enforcer{strict: cfg.Strict, extra: make(map[string]bool)}
	for _, name := range cfg.ExtraAllowed {
		if name = strings.TrimSpace(name); name != "" {
			e.extra[name] = true
		}
	}
	return e
}

// Enforce returns a policy-compliant copy of p.
func (e *Enforcer) Enforce(p *project.Project, req Request) (*Result, error) {
	w := newWorkset(p)
	n := &notes{}

	title := strings.TrimSpace(req.Name)
	if title == "" {
		title = "Generated Site"
	}
	name := sanitizeName(req.Name)
	if name == "" {
		name = defaultPackageName
	}

	var (
		m          *Manifest
		stylesheet string
	)
	if req.Stack == project.StackStatic {
		m = e.buildManifest(w.project(), req.Stack, name, n)
		ensureScaffold(w, req.Stack, m, title, n)
		stylesheet, _ = project.Satisfy(w.project(), "styles.css")
	} else {
		normalizeConfigs(w, n)

		m = e.buildManifest(w.project(), req.Stack, name, n)
		w.set("package.json", m.PackageJSON())
		ensureScaffold(w, req.Stack, m, title, n)

		for _, changed := range normalizeTailwind(w) {
			n.add("converted legacy @tailwind directives in " + changed)
		}
		ensureTailwindImport(w, m.Entry, n)

		if vite, ok := project.Satisfy(w.project(), "vite.config.ts"); ok {
			f, _ := w.get(vite)
			if content, changed := addTailwindVitePlugin(f.Content); changed {
				w.set(vite, content)
				n.add("registered @tailwindcss/vite in " + vite)
			}
		}
		stylesheet, _ = project.Satisfy(w.project(), "src/index.css")
	}

	if stylesheet != "" {
		injectGuards(w, stylesheet, n)
	}

	out := w.project()
	res := &Result{
		Project:  out,
		Manifest: m,
		Hint:     Hint(m, out),
		Notes:    n.items,
		Dropped:  n.dropped,
	}
	logging.Debug("policy enforced",
		"files", out.Len(),
		"packages", m.Count(),
		"dropped", len(n.dropped),
		"complexity", res.Hint.ComplexityScore,
		"runtime", string(res.Hint.Preferred))
	return res, nil
}

// normalizeConfigs converts CommonJS config modules to ES modules and removes
// PostCSS configs that load tailwind as a PostCSS plugin.
func normalizeConfigs(w *workset, n *notes) {
	for _, f := range w.list() {
		if isLegacyPostcssConfig(f.Path, f.Content) {
			w.remove(f.Path)
			n.add("removed " + f.Path + "; tailwind v4 runs through the vite plugin")
			continue
		}
		if IsConfigFile(f.Path) && HasCommonJS(f.Content) {
			w.set(f.Path, toESM(f.Content))
			n.add("converted " + f.Path + " from CommonJS to ES module syntax")
		}
	}
}

type notes struct {
	items   []string
	dropped []string
}

func (n *notes) add(msg string) {
	n.items = append(n.items, msg)
}

func (n *notes) drop(pkg string) {
	n.dropped = append(n.dropped, pkg)
	n.add("dropped package " + pkg + " (not on the allowlist)")
}

// workset is the mutable file map a single Enforce call works on.
type workset struct {
	files map[string]project.File
}

func newWorkset(p *project.Project) *workset {
	w := &workset{files: make(map[string]project.File, p.Len())}
	for _, f := range p.Files() {
		w.files[f.Path] = f
	}
	return w
}

func (w *workset) get(path string) (project.File, bool) {
	f, ok := w.files[path]
	return f, ok
}

func (w *workset) set(path, content string) {
	f := w.files[path]
	f.Path = path
	f.Content = content
	if f.Language == "" {
		f.Language = project.DetectLanguage(path)
	}
	w.files[path] = f
}

func (w *workset) remove(path string) {
	delete(w.files, path)
}

func (w *workset) list() []project.File {
	keys := make([]string, 0, len(w.files))
	for k := range w.files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]project.File, 0, len(keys))
	for _, k := range keys {
		out = append(out, w.files[k])
	}
	return out
}

// project snapshots the workset. Paths came from a Project or from the
// fixed scaffold set, so they are already normalized.
func (w *workset) project() *project.Project {
	return project.MustNew(w.list()...)
}
