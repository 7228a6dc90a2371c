package policy

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const configGlob = "**/*.config.{js,mjs,ts,mts}"

var (
	moduleExportsRe   = regexp.MustCompile(`\bmodule\.exports\s*=\s*`)
	requireDeclRe     = regexp.MustCompile(`(?m)^[ \t]*(?:const|let|var)[ \t]+([A-Za-z_$][\w$]*|\{[^}]*\})[ \t]*=[ \t]*require\(\s*["']([^"']+)["']\s*\)[ \t]*;?[ \t]*$`)
	inlineRequireRe   = regexp.MustCompile(`require\(\s*["']([^"']+)["']\s*\)`)
	tailwindPostcssRe = regexp.MustCompile(`["']?tailwindcss["']?\s*[:(]|require\(\s*["']tailwindcss["']\s*\)`)
)

// IsConfigFile reports whether path is a tool configuration module.
func IsConfigFile(p string) bool { return matchGlob(configGlob, p) }

// HasCommonJS reports whether content uses CommonJS module syntax.
func HasCommonJS(content string) bool {
	return moduleExportsRe.MatchString(content) || inlineRequireRe.MatchString(content)
}

// toESM rewrites CommonJS require/module.exports in a config module to ES
// module syntax.
func toESM(content string) string {
	var imports []string
	seen := map[string]string{}

	content = requireDeclRe.ReplaceAllStringFunc(content, func(line string) string {
		m := requireDeclRe.FindStringSubmatch(line)
		binding, spec := m[1], m[2]
		if strings.HasPrefix(binding, "{") {
			imports = append(imports, fmt.Sprintf("import %s from '%s'", normalizeBraces(binding), spec))
		} else {
			seen[spec] = binding
			imports = append(imports, fmt.Sprintf("import %s from '%s'", binding, spec))
		}
		return ""
	})

	content = inlineRequireRe.ReplaceAllStringFunc(content, func(call string) string {
		spec := inlineRequireRe.FindStringSubmatch(call)[1]
		if id, ok := seen[spec]; ok {
			return id
		}
		id := identifier(spec)
		seen[spec] = id
		imports = append(imports, fmt.Sprintf("import %s from '%s'", id, spec))
		return id
	})

	content = moduleExportsRe.ReplaceAllString(content, "export default ")
	content = strings.TrimLeft(content, "\n")
	if len(imports) == 0 {
		return content
	}
	return strings.Join(imports, "\n") + "\n\n" + content
}

func normalizeBraces(binding string) string {
	inner := strings.TrimSpace(strings.Trim(binding, "{}"))
	// CommonJS renames use ":", ESM uses "as".
	parts := strings.Split(inner, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if from, to, ok := strings.Cut(part, ":"); ok {
			part = strings.TrimSpace(from) + " as " + strings.TrimSpace(to)
		}
		parts[i] = part
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// identifier derives a JS identifier from a package specifier.
func identifier(spec string) string {
	spec = strings.TrimPrefix(spec, "@")
	var b strings.Builder
	upper := false
	for _, r := range spec {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if upper && b.Len() > 0 {
				r = unicode.ToUpper(r)
			}
			b.WriteRune(r)
			upper = false
			continue
		}
		upper = true
	}
	id := b.String()
	if id == "" || unicode.IsDigit(rune(id[0])) {
		id = "mod" + id
	}
	return id
}

// isLegacyPostcssConfig reports whether a PostCSS config loads tailwind as a
// PostCSS plugin, which the v4 vite plugin replaces.
func isLegacyPostcssConfig(p, content string) bool {
	return strings.HasPrefix(p, "postcss.config.") && tailwindPostcssRe.MatchString(content)
}

var vitePluginsRe = regexp.MustCompile(`plugins\s*:\s*\[`)

// addTailwindVitePlugin registers @tailwindcss/vite in a vite config that
// lacks it. Configs without a plugins array are left alone.
func addTailwindVitePlugin(content string) (string, bool) {
	if strings.Contains(content, "@tailwindcss/vite") {
		return content, false
	}
	loc := vitePluginsRe.FindStringIndex(content)
	if loc == nil {
		return content, false
	}
	content = content[:loc[1]] + "tailwindcss(), " + content[loc[1]:]
	return "import tailwindcss from '@tailwindcss/vite'\n" + content, true
}
