// Package llmjson decodes the loosely formatted JSON that language models return.
package llmjson

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)\\n?\\s*```")

// Stage names which attempt produced a result.
type Stage int

const (
	StageNone Stage = iota
	StageStrict
	StageFenced
	StageBraces
)

func (s Stage) String() string {
	switch s {
	case StageStrict:
		return "strict"
	case StageFenced:
		return "fenced"
	case StageBraces:
		return "braces"
	default:
		return "none"
	}
}

// Decode tries, in order: a strict parse of the whole text, a parse of the
// first fenced code block, and a parse of the span from the first '{' to
// the last '}'. It gives up after those three attempts.
func Decode[T any](text string) (T, Stage, bool) {
	var zero T
	text = strings.TrimSpace(text)
	if text == "" {
		return zero, StageNone, false
	}

	if v, ok := strict[T](text); ok {
		return v, StageStrict, true
	}
	if v, ok := fenced[T](text); ok {
		return v, StageFenced, true
	}
	if v, ok := braces[T](text); ok {
		return v, StageBraces, true
	}
	return zero, StageNone, false
}

// Parse is Decode without the stage.
func Parse[T any](text string) (T, bool) {
	v, _, ok := Decode[T](text)
	return v, ok
}

func strict[T any](text string) (T, bool) {
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return v, false
	}
	return v, true
}

func fenced[T any](text string) (T, bool) {
	var zero T
	m := fencePattern.FindStringSubmatch(text)
	if m == nil {
		return zero, false
	}
	return strict[T](strings.TrimSpace(m[1]))
}

func braces[T any](text string) (T, bool) {
	var zero T
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return zero, false
	}
	return strict[T](text[start : end+1])
}
