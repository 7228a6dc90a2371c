package sandbox

import (
	"regexp"
	"strings"
)

// MaxErrorLines bounds the issues extracted from one failing command.
const MaxErrorLines = 12

var errorLineRe = regexp.MustCompile(`(?i)(\berror\b|\berr!|\bfailed\b|\bcannot\b|could not|\bunexpected\b|not found|\bmissing\b|exception|\benoent\b|\beresolve\b|\bts\d{4}\b|✘)`)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)

// ExtractErrors returns up to MaxErrorLines lines of output that look like
// errors, or the last MaxErrorLines non-empty lines when none do.
func ExtractErrors(output string) []string {
	lines := strings.Split(ansiRe.ReplaceAllString(output, ""), "\n")

	var matched []string
	seen := map[string]bool{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || seen[line] || !errorLineRe.MatchString(line) {
			continue
		}
		seen[line] = true
		matched = append(matched, line)
		if len(matched) == MaxErrorLines {
			return matched
		}
	}
	if len(matched) > 0 {
		return matched
	}

	var tail []string
	for i := len(lines) - 1; i >= 0 && len(tail) < MaxErrorLines; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			tail = append(tail, line)
		}
	}
	for i, j := 0, len(tail)-1; i < j; i, j = i+1, j-1 {
		tail[i], tail[j] = tail[j], tail[i]
	}
	return tail
}
