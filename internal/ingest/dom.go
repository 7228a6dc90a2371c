package ingest

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	spaceRe     = regexp.MustCompile(`\s+`)
	blankLineRe = regexp.MustCompile(`[ \t]*\n\s*`)
)

const maxLabelsPerKind = 8

// Page is what a reference URL contributed.
type Page struct {
	URL         string
	Title       string
	Description string
	Text        string
	StyleTokens []string
	Hints       []string
}

// ParsePage extracts title, description, main text, style tokens and
// interaction hints from an HTML document without rendering it. Text is
// truncated to maxChars.
func ParsePage(body []byte, maxChars int) (*Page, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	p := &Page{}
	var (
		text    strings.Builder
		styles  strings.Builder
		buttons = make(set)
		links   = make(set)
		fields  int
		forms   int
	)

	skipTags := map[string]bool{
		"script": true, "noscript": true, "iframe": true, "svg": true, "template": true,
	}
	blockTags := map[string]bool{
		"p": true, "div": true, "section": true, "article": true, "main": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "li": true, "br": true,
	}

	var walk func(n *html.Node, inBody bool)
	walk = func(n *html.Node, inBody bool) {
		if n.Type == html.ElementNode {
			tag := strings.ToLower(n.Data)
			if skipTags[tag] {
				return
			}
			switch tag {
			case "title":
				if p.Title == "" {
					p.Title = collapse(nodeText(n))
				}
				return
			case "meta":
				name := strings.ToLower(attr(n, "name") + attr(n, "property"))
				if p.Description == "" && (name == "description" || name == "og:description") {
					p.Description = collapse(attr(n, "content"))
				}
			case "style":
				styles.WriteString(nodeText(n))
				styles.WriteByte('\n')
				return
			case "body":
				inBody = true
			case "button":
				buttons.add(label(nodeText(n)))
			case "a":
				links.add(label(nodeText(n)))
			case "input", "textarea", "select":
				if t := strings.ToLower(attr(n, "type")); t == "submit" {
					buttons.add(label(attr(n, "value")))
				} else if t != "hidden" {
					fields++
				}
			case "form":
				forms++
			}
			if s := attr(n, "style"); s != "" {
				styles.WriteString(s)
				styles.WriteByte(';')
			}
			if c := attr(n, "class"); c != "" {
				fmt.Fprintf(&styles, "class=%q\n", c)
			}
		}

		if n.Type == html.TextNode && inBody {
			if t := strings.TrimSpace(n.Data); t != "" {
				text.WriteString(t)
				text.WriteByte(' ')
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inBody)
		}

		if n.Type == html.ElementNode && blockTags[strings.ToLower(n.Data)] {
			text.WriteByte('\n')
		}
	}
	walk(doc, false)

	p.Text = truncate(strings.TrimSpace(blankLineRe.ReplaceAllString(text.String(), "\n")), maxChars)
	p.StyleTokens = ExtractStyleTokens(styles.String())

	hints := make(set)
	for _, b := range limit(buttons.sorted(), maxLabelsPerKind) {
		hints.add("button:" + b)
	}
	for _, l := range limit(links.sorted(), maxLabelsPerKind) {
		hints.add("link:" + l)
	}
	if forms > 0 || fields > 0 {
		hints.add(fmt.Sprintf("form:%d-fields", fields))
	}
	p.Hints = hints.sorted()
	return p, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// label normalizes a control label; overly long or empty labels are dropped.
func label(s string) string {
	s = strings.ToLower(collapse(s))
	if len(s) == 0 || len(s) > 40 {
		return ""
	}
	return s
}

func limit(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	// Back up to a rune boundary.
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
