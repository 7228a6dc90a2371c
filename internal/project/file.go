package project

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// File is one generated source file.
type File struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// NormalizePath turns a candidate path into a clean project-relative path.
// Absolute paths, Windows drive paths, null bytes and any ".." segment are rejected.
func NormalizePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.Contains(p, "\x00") {
		return "", fmt.Errorf("null byte in path %q", p)
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("absolute path %q", p)
	}
	if len(p) >= 2 && p[1] == ':' {
		return "", fmt.Errorf("drive path %q", p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("path %q escapes the project root", p)
		}
	}
	clean := path.Clean(p)
	if clean == "." || clean == "" {
		return "", fmt.Errorf("path %q names the project root", p)
	}
	return clean, nil
}

// Project is an immutable snapshot of generated files keyed by path.
// Every mutation helper returns a new snapshot and leaves the receiver untouched.
type Project struct {
	files map[string]File
	paths []string
}

// New builds a snapshot. Later files win over earlier ones with the same path.
func New(files ...File) (*Project, error) {
	p := &Project{files: make(map[string]File, len(files))}
	for _, f := range files {
		clean, err := NormalizePath(f.Path)
		if err != nil {
			return nil, err
		}
		f.Path = clean
		if f.Language == "" {
			f.Language = DetectLanguage(clean)
		}
		p.files[clean] = f
	}
	p.reindex()
	return p, nil
}

// MustNew is New for literals known to be valid.
func MustNew(files ...File) *Project {
	p, err := New(files...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Project) reindex() {
	p.paths = make([]string, 0, len(p.files))
	for k := range p.files {
		p.paths = append(p.paths, k)
	}
	sort.Strings(p.paths)
}

// Len returns the number of files.
func (p *Project) Len() int {
	if p == nil {
		return 0
	}
	return len(p.files)
}

// Get returns the file at path.
func (p *Project) Get(path string) (File, bool) {
	if p == nil {
		return File{}, false
	}
	f, ok := p.files[path]
	return f, ok
}

// Has reports whether path exists.
func (p *Project) Has(path string) bool {
	_, ok := p.Get(path)
	return ok
}

// HasAny reports whether any of paths exists and returns the first match.
func (p *Project) HasAny(paths ...string) (string, bool) {
	for _, candidate := range paths {
		if p.Has(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// Paths returns all paths in lexical order.
func (p *Project) Paths() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.paths))
	copy(out, p.paths)
	return out
}

// Files returns all files in path order.
func (p *Project) Files() []File {
	if p == nil {
		return nil
	}
	out := make([]File, 0, len(p.paths))
	for _, k := range p.paths {
		out = append(out, p.files[k])
	}
	return out
}

// TotalBytes sums the content size of every file.
func (p *Project) TotalBytes() int {
	n := 0
	for _, f := range p.Files() {
		n += len(f.Content)
	}
	return n
}

// With returns a new snapshot with files added or replaced.
func (p *Project) With(files ...File) (*Project, error) {
	merged := p.Files()
	merged = append(merged, files...)
	return New(merged...)
}

// Without returns a new snapshot with the given paths removed.
func (p *Project) Without(paths ...string) *Project {
	drop := make(map[string]bool, len(paths))
	for _, k := range paths {
		drop[k] = true
	}
	next := &Project{files: make(map[string]File, p.Len())}
	for _, f := range p.Files() {
		if !drop[f.Path] {
			next.files[f.Path] = f
		}
	}
	next.reindex()
	return next
}

// Equal reports whether both snapshots hold identical paths and contents.
func (p *Project) Equal(other *Project) bool {
	if p.Len() != other.Len() {
		return false
	}
	for _, f := range p.Files() {
		g, ok := other.Get(f.Path)
		if !ok || g.Content != f.Content {
			return false
		}
	}
	return true
}

// Concat joins every file's content, used for textual presence checks.
func (p *Project) Concat() string {
	var b strings.Builder
	for _, f := range p.Files() {
		b.WriteString(f.Content)
		b.WriteByte('\n')
	}
	return b.String()
}
