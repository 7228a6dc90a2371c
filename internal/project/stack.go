package project

import "fmt"

// Stack is the output stack requested for a generation.
type Stack string

const (
	// StackFramework is React + TypeScript + Vite + Tailwind.
	StackFramework Stack = "framework"
	// StackStatic is plain HTML, CSS and JavaScript.
	StackStatic Stack = "static"
)

// ParseStack validates a stack name. Empty means framework.
func ParseStack(s string) (Stack, error) {
	switch Stack(s) {
	case "", StackFramework:
		return StackFramework, nil
	case StackStatic:
		return StackStatic, nil
	}
	return "", fmt.Errorf("unknown output stack %q", s)
}

// PlannedFile is one entry of a file plan.
type PlannedFile struct {
	Path    string `json:"path"`
	Purpose string `json:"purpose"`
}

// RequiredFiles returns the file plan every project of the stack must contain.
func RequiredFiles(stack Stack) []PlannedFile {
	if stack == StackStatic {
		return []PlannedFile{
			{Path: "index.html", Purpose: "document markup and entry point"},
			{Path: "styles.css", Purpose: "all styling, including responsive rules"},
			{Path: "script.js", Purpose: "interactions and client-side behavior"},
		}
	}
	return []PlannedFile{
		{Path: "index.html", Purpose: "HTML entry with viewport meta and root mount node"},
		{Path: "package.json", Purpose: "dependencies and scripts"},
		{Path: "vite.config.ts", Purpose: "build-tool configuration"},
		{Path: "src/main.tsx", Purpose: "application entry point"},
		{Path: "src/App.tsx", Purpose: "root component"},
		{Path: "src/index.css", Purpose: "global stylesheet with the tailwind import"},
	}
}

// RequiredPaths is RequiredFiles reduced to paths.
func RequiredPaths(stack Stack) []string {
	plan := RequiredFiles(stack)
	out := make([]string, len(plan))
	for i, f := range plan {
		out[i] = f.Path
	}
	return out
}

// alternatives lists the paths that satisfy a required file. The canonical
// path comes first.
var alternatives = map[string][]string{
	"vite.config.ts": {"vite.config.ts", "vite.config.js", "vite.config.mjs", "vite.config.mts"},
	"src/main.tsx":   {"src/main.tsx", "src/main.jsx", "src/main.ts", "src/main.js", "src/index.tsx", "src/index.jsx"},
	"src/App.tsx":    {"src/App.tsx", "src/App.jsx", "src/app.tsx", "src/app.jsx"},
	"src/index.css":  {"src/index.css", "src/styles.css", "src/main.css", "src/App.css", "src/global.css", "src/globals.css"},
	"styles.css":     {"styles.css", "style.css", "css/styles.css", "css/style.css"},
	"script.js":      {"script.js", "main.js", "app.js", "js/script.js", "js/main.js"},
}

// Satisfy returns the path in p that fulfils a required path, accepting
// common alternative names such as src/main.jsx for src/main.tsx.
func Satisfy(p *Project, required string) (string, bool) {
	if alts, ok := alternatives[required]; ok {
		return p.HasAny(alts...)
	}
	return p.HasAny(required)
}

// MissingRequired lists required paths of the stack not satisfied by p.
func MissingRequired(p *Project, stack Stack) []string {
	var missing []string
	for _, req := range RequiredPaths(stack) {
		if _, ok := Satisfy(p, req); !ok {
			missing = append(missing, req)
		}
	}
	return missing
}
