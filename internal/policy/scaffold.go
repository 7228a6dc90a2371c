package policy

import (
	"fmt"
	"html"
	"strings"

	"webforge/internal/project"
)

// scaffoldContext is what the defaults need to reference each other.
type scaffoldContext struct {
	manifest   *Manifest
	title      string
	stylesheet string
	script     string
}

// scaffold returns a minimal working default for a required path.
func scaffold(path string, c scaffoldContext) string {
	m, title := c.manifest, c.title
	switch path {
	case "index.html":
		if m.Framework == FrameworkStatic {
			return fmt.Sprintf(staticIndexHTML, html.EscapeString(title), c.stylesheet, c.script)
		}
		return fmt.Sprintf(frameworkIndexHTML, html.EscapeString(title), "/"+m.Entry)
	case "package.json":
		return m.PackageJSON()
	case "vite.config.ts":
		return viteConfig
	case "src/main.tsx":
		return fmt.Sprintf(mainTSX, "./"+strings.TrimPrefix(c.stylesheet, "src/"))
	case "src/App.tsx":
		return fmt.Sprintf(appTSX, jsxText(title))
	case "src/index.css":
		return tailwindImport + "\n\n" + baseReset
	case "styles.css":
		return baseReset
	case "script.js":
		return staticScript
	}
	return ""
}

func jsxText(s string) string {
	r := strings.NewReplacer("{", "&#123;", "}", "&#125;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

const tailwindImport = `@import "tailwindcss";`

const baseReset = `*, *::before, *::after { box-sizing: border-box; }
html { -webkit-text-size-adjust: 100%; }
body {
  margin: 0;
  min-height: 100vh;
  font-family: system-ui, -apple-system, "Segoe UI", Roboto, sans-serif;
  line-height: 1.5;
}
img, picture, video, canvas, svg { display: block; max-width: 100%; }
`

const frameworkIndexHTML = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>%s</title>
  </head>
  <body>
    <div id="root"></div>
    <script type="module" src="%s"></script>
  </body>
</html>
`

const staticIndexHTML = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>%s</title>
    <link rel="stylesheet" href="%s" />
  </head>
  <body>
    <main id="app"></main>
    <script src="%s" defer></script>
  </body>
</html>
`

const viteConfig = `import { defineConfig } from 'vite'
import react from '@vitejs/plugin-react'
import tailwindcss from '@tailwindcss/vite'

export default defineConfig({
  plugins: [tailwindcss(), react()],
})
`

const mainTSX = `import { StrictMode } from 'react'
import { createRoot } from 'react-dom/client'
import '%s'
import App from './App'

createRoot(document.getElementById('root')!).render(
  <StrictMode>
    <App />
  </StrictMode>,
)
`

const appTSX = `export default function App() {
  return (
    <main className="min-h-screen flex items-center justify-center p-6">
      <h1 className="text-3xl font-semibold">%s</h1>
    </main>
  )
}
`

const staticScript = `document.addEventListener('DOMContentLoaded', () => {
  document.documentElement.classList.add('js')
})
`

// ensureScaffold synthesizes every missing required file.
func ensureScaffold(w *workset, stack project.Stack, m *Manifest, title string, n *notes) {
	p := w.project()
	c := scaffoldContext{manifest: m, title: title, stylesheet: "styles.css", script: "script.js"}
	if stack == project.StackFramework {
		c.stylesheet = "src/index.css"
	}
	if css, ok := project.Satisfy(p, c.stylesheet); ok {
		c.stylesheet = css
	}
	if js, ok := project.Satisfy(p, c.script); ok {
		c.script = js
	}

	for _, req := range project.MissingRequired(p, stack) {
		w.set(req, scaffold(req, c))
		n.add("scaffolded missing " + req)
	}
}
