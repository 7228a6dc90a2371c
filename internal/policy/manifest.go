package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"webforge/internal/llmjson"
	"webforge/internal/project"
)

// Framework tags.
const (
	FrameworkReactVite = "react-vite"
	FrameworkStatic    = "static"
)

// Manifest is the sanitized dependency manifest of a project.
type Manifest struct {
	Name            string            `json:"name"`
	Framework       string            `json:"framework"`
	Entry           string            `json:"entry"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// Has reports whether pkg is a dependency or dev dependency.
func (m *Manifest) Has(pkg string) bool {
	if m == nil {
		return false
	}
	_, dep := m.Dependencies[pkg]
	_, dev := m.DevDependencies[pkg]
	return dep || dev
}

// Count returns the number of declared packages.
func (m *Manifest) Count() int {
	return len(m.Dependencies) + len(m.DevDependencies)
}

// PackageJSON renders the manifest as package.json.
func (m *Manifest) PackageJSON() string {
	doc := struct {
		Name            string            `json:"name"`
		Private         bool              `json:"private"`
		Version         string            `json:"version"`
		Type            string            `json:"type"`
		Scripts         map[string]string `json:"scripts"`
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}{m.Name, true, "0.0.0", "module", m.Scripts, m.Dependencies, m.DevDependencies}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	_ = enc.Encode(doc)
	return buf.String()
}

// packageJSON is the subset of a generated package.json the policy reads.
type packageJSON struct {
	Name            string            `json:"name"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func parsePackageJSON(content string) (packageJSON, bool) {
	return llmjson.Parse[packageJSON](content)
}

var baseScripts = map[string]string{
	"dev":     "vite",
	"build":   "vite build",
	"preview": "vite preview",
}

var baseDependencies = map[string]string{
	"react":     "^18.3.1",
	"react-dom": "^18.3.1",
}

var baseDevDependencies = map[string]string{
	"vite":                 "^5.4.10",
	"@vitejs/plugin-react": "^4.3.3",
	"typescript":           "^5.6.3",
	"@types/react":         "^18.3.12",
	"@types/react-dom":     "^18.3.1",
	"tailwindcss":          "^4.0.0",
	"@tailwindcss/vite":    "^4.0.0",
}

// aliases maps names models commonly get wrong to the real package.
var aliases = map[string]string{
	"react-router":               "react-router-dom",
	"framer":                     "framer-motion",
	"motion":                     "framer-motion",
	"lucide":                     "lucide-react",
	"lucide-icons":               "lucide-react",
	"heroicons":                  "@heroicons/react",
	"headlessui":                 "@headlessui/react",
	"tailwind":                   "tailwindcss",
	"chartjs":                    "chart.js",
	"react-chartjs":              "react-chartjs-2",
	"react-three-fiber":          "@react-three/fiber",
	"drei":                       "@react-three/drei",
	"react-query":                "@tanstack/react-query",
	"vite-plugin-react":          "@vitejs/plugin-react",
	"@vitejs/plugin-react-swc":   "@vitejs/plugin-react",
	"classnames":                 "clsx",
	"react-use-gesture":          "@use-gesture/react",
	"react-intersection-observe": "react-intersection-observer",
}

// allowed maps vetted packages to the version range used when the generated
// range is missing or unusable.
var allowed = map[string]string{
	"react":                       "^18.3.1",
	"react-dom":                   "^18.3.1",
	"react-router-dom":            "^6.27.0",
	"lucide-react":                "^0.454.0",
	"framer-motion":               "^11.11.11",
	"clsx":                        "^2.1.1",
	"tailwind-merge":              "^2.5.4",
	"class-variance-authority":    "^0.7.0",
	"zustand":                     "^5.0.1",
	"@heroicons/react":            "^2.1.5",
	"@headlessui/react":           "^2.2.0",
	"react-icons":                 "^5.3.0",
	"date-fns":                    "^4.1.0",
	"dayjs":                       "^1.11.13",
	"recharts":                    "^2.13.3",
	"chart.js":                    "^4.4.6",
	"react-chartjs-2":             "^5.2.0",
	"d3":                          "^7.9.0",
	"three":                       "^0.170.0",
	"@react-three/fiber":          "^8.17.10",
	"@react-three/drei":           "^9.115.0",
	"gsap":                        "^3.12.5",
	"axios":                       "^1.7.7",
	"uuid":                        "^11.0.2",
	"zod":                         "^3.23.8",
	"react-hook-form":             "^7.53.1",
	"@tanstack/react-query":       "^5.59.16",
	"swiper":                      "^11.1.14",
	"embla-carousel-react":        "^8.3.1",
	"react-intersection-observer": "^9.13.1",
	"leaflet":                     "^1.9.4",
	"react-leaflet":               "^4.2.1",
	"marked":                      "^14.1.3",
	"@use-gesture/react":          "^10.3.1",
	"postcss":                     "^8.4.47",
	"autoprefixer":                "^10.4.20",
	"@types/node":                 "^22.8.6",
	"@types/three":                "^0.170.0",
	"@types/leaflet":              "^1.9.14",
	"@types/d3":                   "^7.4.3",
}

var versionRe = regexp.MustCompile(`^[\^~]?\d+(\.(\d+|x|\*)){0,2}(-[0-9A-Za-z.-]+)?$`)

func init() {
	for k, v := range baseDevDependencies {
		allowed[k] = v
	}
}

// Canonical resolves a dependency name through the alias table. Deep imports
// such as "react-icons/fa" reduce to their package name.
func Canonical(name string) string {
	name = PackageName(strings.TrimSpace(name))
	if alias, ok := aliases[strings.ToLower(name)]; ok {
		return alias
	}
	return name
}

// PackageName reduces an import specifier to its npm package name.
func PackageName(spec string) string {
	parts := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") && len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

// Allowed reports whether pkg is on the allowlist or in extra.
func (e *Enforcer) Allowed(pkg string) bool {
	if _, ok := allowed[pkg]; ok {
		return true
	}
	return e.extra[pkg]
}

// buildManifest merges the base manifest with the generated package.json.
func (e *Enforcer) buildManifest(p *project.Project, stack project.Stack, name string, notes *notes) *Manifest {
	if stack == project.StackStatic {
		return &Manifest{
			Name:            name,
			Framework:       FrameworkStatic,
			Entry:           "index.html",
			Scripts:         map[string]string{},
			Dependencies:    map[string]string{},
			DevDependencies: map[string]string{},
		}
	}

	m := &Manifest{
		Name:            name,
		Framework:       FrameworkReactVite,
		Entry:           "src/main.tsx",
		Scripts:         copyMap(baseScripts),
		Dependencies:    copyMap(baseDependencies),
		DevDependencies: copyMap(baseDevDependencies),
	}
	if entry, ok := project.Satisfy(p, "src/main.tsx"); ok {
		m.Entry = entry
	}

	f, ok := p.Get("package.json")
	if !ok {
		notes.add("package.json synthesized from the base manifest")
		return m
	}
	gen, ok := parsePackageJSON(f.Content)
	if !ok {
		notes.add("package.json unparseable; replaced with the base manifest")
		return m
	}
	if n := sanitizeName(gen.Name); n != "" {
		m.Name = n
	}
	for k, v := range gen.Scripts {
		if _, base := baseScripts[k]; !base && strings.TrimSpace(v) != "" {
			m.Scripts[k] = v
		}
	}

	e.mergeDeps(m, gen.Dependencies, false, notes)
	e.mergeDeps(m, gen.DevDependencies, true, notes)
	return m
}

func (e *Enforcer) mergeDeps(m *Manifest, deps map[string]string, dev bool, notes *notes) {
	names := make([]string, 0, len(deps))
	for k := range deps {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, raw := range names {
		version := strings.TrimSpace(deps[raw])
		name := Canonical(raw)
		if name != raw {
			notes.add(fmt.Sprintf("dependency %q renamed to %q", raw, name))
		}
		if name == "" {
			continue
		}
		if _, ok := baseDependencies[name]; ok {
			continue
		}
		if _, ok := baseDevDependencies[name]; ok {
			delete(m.Dependencies, name)
			continue
		}

		if !e.Allowed(name) {
			if e.strict {
				notes.drop(name)
				continue
			}
			notes.add(fmt.Sprintf("dependency %q is not on the allowlist; kept", name))
		}

		if !versionRe.MatchString(version) {
			if known, ok := allowed[name]; ok {
				version = known
			} else {
				version = "latest"
			}
		}

		target := m.Dependencies
		if dev || strings.HasPrefix(name, "@types/") {
			target = m.DevDependencies
		}
		if _, exists := m.Dependencies[name]; exists && dev {
			continue
		}
		target[name] = version
	}
}

var nameRe = regexp.MustCompile(`[^a-z0-9._-]+`)

func sanitizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nameRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-._")
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
