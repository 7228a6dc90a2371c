package project

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	fileHeaderPrefix = "---FILE: "
	fileHeaderSuffix = "---"
	fileTrailer      = "---END FILE---"
)

var (
	fileHeaderRe  = regexp.MustCompile(`(?m)^---FILE:\s*(.+?)\s*---[ \t]*\r?$`)
	fileTrailerRe = regexp.MustCompile(`\r?\n` + regexp.QuoteMeta(fileTrailer))
)

// Serialize renders files in the builder grammar, ordered by path.
func Serialize(files []File) string {
	p, err := New(files...)
	if err != nil {
		// Invalid paths are written verbatim; Parse will reject them.
		return serializeRaw(files)
	}
	return serializeRaw(p.Files())
}

func serializeRaw(files []File) string {
	var b strings.Builder
	for _, f := range files {
		b.WriteString(fileHeaderPrefix)
		b.WriteString(f.Path)
		b.WriteString(fileHeaderSuffix)
		b.WriteByte('\n')
		b.WriteString(f.Content)
		b.WriteByte('\n')
		b.WriteString(fileTrailer)
		b.WriteByte('\n')
	}
	return b.String()
}

// Parse extracts files from a model response written in the builder grammar.
// Blocks with unusable paths are skipped and reported as warnings. A block
// missing its trailer runs until the next header or the end of input.
// Markers may end in CRLF; file content is kept byte for byte.
func Parse(raw string) ([]File, []string) {
	var (
		files    []File
		warnings []string
	)
	headers := fileHeaderRe.FindAllStringSubmatchIndex(raw, -1)
	for i, loc := range headers {
		name := raw[loc[2]:loc[3]]
		start := loc[1]
		if start < len(raw) && raw[start] == '\n' {
			start++
		}
		limit := len(raw)
		if i+1 < len(headers) {
			limit = headers[i+1][0]
		}
		body := raw[start:limit]

		var content string
		switch {
		case strings.HasPrefix(body, fileTrailer):
			content = ""
		default:
			if loc := fileTrailerRe.FindStringIndex(body); loc != nil {
				content = body[:loc[0]]
			} else {
				content = strings.TrimRight(body, "\r\n")
				warnings = append(warnings, fmt.Sprintf("file %s has no end marker", name))
			}
		}

		clean, err := NormalizePath(strings.TrimLeft(strings.TrimPrefix(strings.TrimSpace(name), "./"), "/"))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipped file: %v", err))
			continue
		}
		files = append(files, File{
			Path:     clean,
			Content:  StripFence(content),
			Language: DetectLanguage(clean),
		})
	}
	return files, warnings
}

// StripFence removes a markdown code fence wrapped around content.
func StripFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return content
	}
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
		trimmed = trimmed[nl+1:]
	} else {
		return ""
	}
	trimmed = strings.TrimRight(trimmed, " \t\n")
	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimRight(trimmed, " \t\n")
	}
	return trimmed + "\n"
}
