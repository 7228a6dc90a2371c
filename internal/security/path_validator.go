package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// JoinPathSafe joins rel onto base and fails if the result leaves base.
func JoinPathSafe(base, rel string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("base path cannot be empty")
	}
	if rel == "" {
		return "", fmt.Errorf("relative path cannot be empty")
	}
	if strings.ContainsRune(rel, 0) {
		return "", fmt.Errorf("path contains a null byte")
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) {
		return "", fmt.Errorf("relative path cannot be absolute: %s", rel)
	}

	cleanBase := filepath.Clean(base)
	joined := filepath.Join(cleanBase, filepath.FromSlash(rel))

	r, err := filepath.Rel(cleanBase, joined)
	if err != nil || r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt detected: %s", rel)
	}
	return joined, nil
}

// SafeEnvironment returns a minimal environment for child processes rooted at
// workDir. Provider credentials from the parent never reach the child.
func SafeEnvironment(workDir string) []string {
	vars := map[string]string{
		"PATH":      os.Getenv("PATH"),
		"HOME":      workDir,
		"USER":      os.Getenv("USER"),
		"LANG":      "en_US.UTF-8",
		"PWD":       workDir,
		"TMPDIR":    filepath.Join(workDir, ".tmp"),
		"CI":        "true",
		"NODE_ENV":  "development",
		"NODE_PATH": os.Getenv("NODE_PATH"),

		"npm_config_cache":           filepath.Join(workDir, ".npm-cache"),
		"npm_config_update_notifier": "false",
		"npm_config_registry":        os.Getenv("npm_config_registry"),
	}
	if vars["PATH"] == "" {
		vars["PATH"] = "/usr/local/bin:/usr/bin:/bin"
	}

	env := make([]string, 0, len(vars))
	for k, v := range vars {
		if v != "" {
			env = append(env, k+"="+v)
		}
	}
	return env
}
