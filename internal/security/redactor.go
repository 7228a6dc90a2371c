package security

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// SecretRedactor masks credentials in text bound for logs or the event stream.
type SecretRedactor struct {
	// patterns whose first group is kept and the rest replaced
	keyed []*regexp.Regexp
	// patterns replaced wholesale
	bare []*regexp.Regexp
	// exact values always masked, such as the key of the current request
	literals []string
}

// NewSecretRedactor creates a redactor with patterns for common provider keys.
func NewSecretRedactor() *SecretRedactor {
	return &SecretRedactor{
		keyed: []*regexp.Regexp{
			regexp.MustCompile(`(?i)((?:api[_-]?key|x-api-key|access[_-]?token|secret|password)["']?\s*[:=]\s*["']?)[A-Za-z0-9_\-\.]{8,}`),
			regexp.MustCompile(`(?i)(Bearer\s+)[A-Za-z0-9_\-\.]{10,256}`),
			regexp.MustCompile(`(?i)([?&]key=)[A-Za-z0-9_\-]{8,}`),
		},
		bare: []*regexp.Regexp{
			regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`),
			regexp.MustCompile(`sk-ant-[A-Za-z0-9_\-]{20,}`),
			regexp.MustCompile(`sk-[A-Za-z0-9]{32,}`),
			regexp.MustCompile(`gh[pous]_[A-Za-z0-9]{36}`),
			regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.(?:eyJ[a-zA-Z0-9_-]+)?\.[a-zA-Z0-9_-]{20,}`),
			regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]+?-----END [A-Z ]*PRIVATE KEY-----`),
		},
	}
}

// WithLiteral returns a copy that also masks the exact value s.
func (r *SecretRedactor) WithLiteral(s string) *SecretRedactor {
	if len(s) < 8 {
		return r
	}
	c := *r
	c.literals = append(append([]string(nil), r.literals...), s)
	return &c
}

// Redact masks all detected secrets in text.
func (r *SecretRedactor) Redact(text string) string {
	if text == "" {
		return ""
	}
	for _, lit := range r.literals {
		text = strings.ReplaceAll(text, lit, redacted)
	}
	for _, re := range r.keyed {
		text = re.ReplaceAllString(text, "${1}"+redacted)
	}
	for _, re := range r.bare {
		text = re.ReplaceAllString(text, redacted)
	}
	return text
}

var defaultRedactor = NewSecretRedactor()

// Redact masks secrets using the default patterns.
func Redact(text string) string {
	return defaultRedactor.Redact(text)
}

// MaskKey shows the first and last four characters of a key.
func MaskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
