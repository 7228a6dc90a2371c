package policy

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webforge/internal/config"
	"webforge/internal/project"
)

func frameworkProject() *project.Project {
	return project.MustNew(
		project.File{Path: "index.html", Content: `<!doctype html><html><head><meta name="viewport" content="width=device-width"></head><body><div id="root"></div><script type="module" src="/src/main.tsx"></script></body></html>`},
		project.File{Path: "package.json", Content: `{
  "name": "My Cool Site!",
  "scripts": {"build": "webpack", "lint": "eslint ."},
  "dependencies": {"react": "^19.0.0", "framer": "latest", "lucide-react": "^0.400.0", "left-pad": "1.3.0", "@types/react": "*"},
  "devDependencies": {"tailwindcss": "^3.4.0"}
}`},
		project.File{Path: "src/main.tsx", Content: "import App from './App'\nimport './index.css'\n"},
		project.File{Path: "src/App.tsx", Content: `export default function App() { return <div className="p-4">hi</div> }`},
		project.File{Path: "src/index.css", Content: "@tailwind base;\n@tailwind components;\n@tailwind utilities;\n\nbody { color: #111; }\n"},
		project.File{Path: "postcss.config.js", Content: "module.exports = { plugins: { tailwindcss: {}, autoprefixer: {} } }\n"},
		project.File{Path: "tailwind.config.js", Content: "const colors = require('tailwindcss/colors')\nmodule.exports = { content: ['./src/**/*.tsx'], theme: { colors } }\n"},
		project.File{Path: "vite.config.ts", Content: "import { defineConfig } from 'vite'\nimport react from '@vitejs/plugin-react'\n\nexport default defineConfig({\n  plugins: [react()],\n})\n"},
	)
}

func readManifest(t *testing.T, p *project.Project) packageJSON {
	t.Helper()
	f, ok := p.Get("package.json")
	require.True(t, ok)
	var doc packageJSON
	require.NoError(t, json.Unmarshal([]byte(f.Content), &doc))
	return doc
}

func TestEnforceFramework(t *testing.T) {
	res, err := NewEnforcer(config.PolicyConfig{}).Enforce(frameworkProject(), Request{Stack: project.StackFramework, Name: "Cool"})
	require.NoError(t, err)

	m := res.Manifest
	assert.Equal(t, "my-cool-site", m.Name)
	assert.Equal(t, FrameworkReactVite, m.Framework)
	assert.Equal(t, "src/main.tsx", m.Entry)
	assert.Equal(t, "vite build", m.Scripts["build"])
	assert.Equal(t, "eslint .", m.Scripts["lint"])
	assert.Equal(t, "^18.3.1", m.Dependencies["react"])
	assert.Equal(t, allowed["framer-motion"], m.Dependencies["framer-motion"])
	assert.Equal(t, "^0.400.0", m.Dependencies["lucide-react"])
	assert.Equal(t, "1.3.0", m.Dependencies["left-pad"])
	assert.NotContains(t, m.Dependencies, "tailwindcss")
	assert.NotContains(t, m.Dependencies, "@types/react")
	assert.Equal(t, "^4.0.0", m.DevDependencies["tailwindcss"])
	assert.Empty(t, res.Dropped)

	doc := readManifest(t, res.Project)
	assert.Equal(t, m.Dependencies, doc.Dependencies)

	css, _ := res.Project.Get("src/index.css")
	assert.True(t, strings.HasPrefix(css.Content, `@import "tailwindcss";`))
	assert.NotContains(t, css.Content, "@tailwind")
	assert.Contains(t, css.Content, overflowMarker)
	assert.Contains(t, css.Content, breakpointMarker)

	assert.False(t, res.Project.Has("postcss.config.js"))

	tw, _ := res.Project.Get("tailwind.config.js")
	assert.Contains(t, tw.Content, "import colors from 'tailwindcss/colors'")
	assert.Contains(t, tw.Content, "export default {")
	assert.NotContains(t, tw.Content, "require(")

	vite, _ := res.Project.Get("vite.config.ts")
	assert.Contains(t, vite.Content, "import tailwindcss from '@tailwindcss/vite'")
	assert.Contains(t, vite.Content, "plugins: [tailwindcss(), react()]")

	assert.Contains(t, strings.Join(res.Notes, "\n"), `dependency "left-pad" is not on the allowlist; kept`)
	assert.Equal(t, RuntimeBundled, res.Hint.Preferred)
}

func TestEnforceStrictDropsUnknownPackages(t *testing.T) {
	res, err := NewEnforcer(config.PolicyConfig{Strict: true}).Enforce(frameworkProject(), Request{Stack: project.StackFramework})
	require.NoError(t, err)
	assert.Equal(t, []string{"left-pad"}, res.Dropped)
	assert.NotContains(t, res.Manifest.Dependencies, "left-pad")
}

func TestEnforceStrictHonorsExtraAllowed(t *testing.T) {
	res, err := NewEnforcer(config.PolicyConfig{Strict: true, ExtraAllowed: []string{"left-pad"}}).
		Enforce(frameworkProject(), Request{Stack: project.StackFramework})
	require.NoError(t, err)
	assert.Empty(t, res.Dropped)
	assert.Contains(t, res.Manifest.Dependencies, "left-pad")
}

func TestEnforceInjectsTailwindStylesheet(t *testing.T) {
	p := project.MustNew(
		project.File{Path: "src/App.tsx", Content: "export default function App() { return <p>x</p> }"},
	)
	res, err := NewEnforcer(config.PolicyConfig{}).Enforce(p, Request{Stack: project.StackFramework, Name: "Demo"})
	require.NoError(t, err)

	for _, req := range project.RequiredPaths(project.StackFramework) {
		assert.True(t, res.Project.Has(req), req)
	}
	css, _ := res.Project.Get("src/index.css")
	assert.True(t, strings.HasPrefix(css.Content, tailwindImport))
	assert.Contains(t, css.Content, "box-sizing: border-box")

	main, _ := res.Project.Get("src/main.tsx")
	assert.Contains(t, main.Content, "import './index.css'")
	html, _ := res.Project.Get("index.html")
	assert.Contains(t, html.Content, `src="/src/main.tsx"`)
	assert.Contains(t, html.Content, "<title>Demo</title>")
}

func TestEnforceAddsTailwindImportToExistingStylesheet(t *testing.T) {
	p := frameworkProject().Without("src/index.css")
	p, err := p.With(project.File{Path: "src/styles.css", Content: "h1 { font-size: 2rem; }\n"})
	require.NoError(t, err)

	res, err := NewEnforcer(config.PolicyConfig{}).Enforce(p, Request{Stack: project.StackFramework})
	require.NoError(t, err)

	assert.False(t, res.Project.Has("src/index.css"))
	css, _ := res.Project.Get("src/styles.css")
	assert.True(t, strings.HasPrefix(css.Content, tailwindImport))
	assert.Contains(t, css.Content, "h1 { font-size: 2rem; }")

	main, _ := res.Project.Get("src/main.tsx")
	assert.True(t, strings.HasPrefix(main.Content, "import './styles.css'\n"))
}

func TestEnforceIsIdempotent(t *testing.T) {
	e := NewEnforcer(config.PolicyConfig{})
	for _, tc := range []struct {
		name  string
		p     *project.Project
		stack project.Stack
	}{
		{"framework", frameworkProject(), project.StackFramework},
		{"empty framework", project.MustNew(), project.StackFramework},
		{"static", project.MustNew(project.File{Path: "index.html", Content: "<html></html>"}), project.StackStatic},
	} {
		t.Run(tc.name, func(t *testing.T) {
			first, err := e.Enforce(tc.p, Request{Stack: tc.stack, Name: "Site"})
			require.NoError(t, err)
			second, err := e.Enforce(first.Project, Request{Stack: tc.stack, Name: "Site"})
			require.NoError(t, err)

			assert.True(t, first.Project.Equal(second.Project))
			assert.Equal(t, first.Manifest, second.Manifest)
			assert.Equal(t, first.Hint, second.Hint)
		})
	}
}

func TestEnforceStatic(t *testing.T) {
	p := project.MustNew(
		project.File{Path: "index.html", Content: `<html><head><link rel="stylesheet" href="style.css"></head><body></body></html>`},
		project.File{Path: "style.css", Content: "body { margin: 0 }\n@media (max-width: 600px) { body { padding: 0 } }\n"},
	)
	res, err := NewEnforcer(config.PolicyConfig{}).Enforce(p, Request{Stack: project.StackStatic})
	require.NoError(t, err)

	assert.Equal(t, FrameworkStatic, res.Manifest.Framework)
	assert.False(t, res.Project.Has("package.json"))
	assert.False(t, res.Project.Has("styles.css"))
	assert.True(t, res.Project.Has("script.js"))

	css, _ := res.Project.Get("style.css")
	assert.Contains(t, css.Content, overflowMarker)
	assert.NotContains(t, css.Content, breakpointMarker)

	assert.Equal(t, RuntimeStatic, res.Hint.Preferred)
}

func TestHintHeavyFrameworkGoesRemote(t *testing.T) {
	m := &Manifest{
		Framework: FrameworkReactVite,
		Dependencies: map[string]string{
			"react": "^18", "react-dom": "^18",
			"three": "x", "@react-three/fiber": "x", "@react-three/drei": "x", "d3": "x",
		},
	}
	h := Hint(m, project.MustNew())
	assert.Equal(t, RuntimeRemote, h.Preferred)
	assert.Equal(t, RuntimeBundled, h.Fallback)
	assert.GreaterOrEqual(t, h.ComplexityScore, RemoteThreshold)
	assert.NotEmpty(t, h.Reason)
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "react-icons", Canonical("react-icons/fa"))
	assert.Equal(t, "@heroicons/react", Canonical("@heroicons/react/24/outline"))
	assert.Equal(t, "framer-motion", Canonical("framer"))
	assert.Equal(t, "react-router-dom", Canonical("react-router"))
}

func TestToESM(t *testing.T) {
	in := "const { join: j } = require('path')\nmodule.exports = {\n  plugins: [require('autoprefixer')],\n}\n"
	out := toESM(in)
	assert.Equal(t, "import { join as j } from 'path'\nimport autoprefixer from 'autoprefixer'\n\nexport default {\n  plugins: [autoprefixer],\n}\n", out)
	assert.False(t, HasCommonJS(out))
}
