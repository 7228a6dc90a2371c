package builder

import (
	"fmt"
	"strings"

	"webforge/internal/project"
)

const grammarRules = `Output format (mandatory):
For EVERY file, emit exactly:
---FILE: <relative/path>---
<raw file content>
---END FILE---

- Paths are relative to the project root. Never use "..", absolute paths or drive letters.
- Do not wrap file content in markdown code fences.
- Emit the complete content of every file. Never emit diffs or placeholders like "rest unchanged".
- Emit nothing outside the file blocks.`

const frameworkGuidance = `Stack: React 18 + TypeScript + Vite + Tailwind CSS v4.
- index.html includes <meta name="viewport" content="width=device-width, initial-scale=1"> and <div id="root"></div>, and loads /src/main.tsx as a module.
- package.json has "type": "module" and scripts {"dev": "vite", "build": "vite build", "preview": "vite preview"}.
- vite.config.ts uses ES module syntax with @vitejs/plugin-react and @tailwindcss/vite.
- src/index.css starts with @import "tailwindcss"; and never uses @tailwind directives.
- Only depend on well-known packages (react, react-dom, lucide-react, framer-motion, clsx, react-router-dom, zustand). Every imported package must be listed in package.json.
- Every relative import must resolve to a file you emit.
- Use responsive Tailwind classes (sm:, md:, lg:) and prevent horizontal overflow.`

const staticGuidance = `Stack: plain HTML, CSS and JavaScript with no build step.
- index.html includes <meta name="viewport" content="width=device-width, initial-scale=1">, links styles.css and loads script.js with defer.
- styles.css defines CSS custom properties for the palette, includes @media breakpoints and prevents horizontal overflow (max-width: 100%, overflow-x: hidden on body).
- script.js is vanilla JavaScript without imports from packages.
- Every file referenced from index.html must be emitted.`

func systemPrompt(stack project.Stack) string {
	guidance := frameworkGuidance
	if stack == project.StackStatic {
		guidance = staticGuidance
	}
	return "You are an expert front-end engineer who ships production-quality, responsive, accessible websites.\n\n" +
		guidance + "\n\n" + grammarRules
}

// Input is everything one build pass needs.
type Input struct {
	SpecJSON string
	Stack    project.Stack
	Prompt   string
	Tokens   []string
	Hints    []string

	// Previous and Patch are set on a repair pass.
	Previous *project.Project
	Patch    string
	Attempt  int
}

// Repair reports whether this is a repair pass.
func (in *Input) Repair() bool {
	return in.Previous != nil && in.Previous.Len() > 0
}

func userPrompt(in *Input) string {
	var sb strings.Builder
	if in.Repair() {
		fmt.Fprintf(&sb, "Repair pass %d. The previous output failed validation. Fix every issue below and return the COMPLETE corrected project.\n\n", in.Attempt)
		fmt.Fprintf(&sb, "## Issues to fix\n%s\n\n", in.Patch)
	} else {
		sb.WriteString("Build the project described by this design blueprint.\n\n")
	}

	if in.Prompt != "" {
		fmt.Fprintf(&sb, "## User request\n%s\n\n", in.Prompt)
	}
	fmt.Fprintf(&sb, "## Design blueprint\n%s\n\n", in.SpecJSON)
	if len(in.Tokens) > 0 {
		fmt.Fprintf(&sb, "## Style tokens to reproduce\n%s\n\n", strings.Join(in.Tokens, ", "))
	}
	if len(in.Hints) > 0 {
		fmt.Fprintf(&sb, "## Interactions to implement\n%s\n\n", strings.Join(in.Hints, ", "))
	}

	fmt.Fprintf(&sb, "## Required files\n")
	for _, f := range project.RequiredFiles(in.Stack) {
		fmt.Fprintf(&sb, "- %s: %s\n", f.Path, f.Purpose)
	}

	if in.Repair() {
		fmt.Fprintf(&sb, "\n## Current files\n%s", project.Serialize(in.Previous.Files()))
	}
	return sb.String()
}
