// Package setup writes a first config file through a short interactive
// wizard.
package setup

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"webforge/internal/client"
	"webforge/internal/fileutil"
)

const defaultOllamaHost = "http://localhost:11434"

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#059669"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#D97706"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

type providerChoice struct {
	name   string
	label  string
	envVar string
	keyURL string
}

var providers = []providerChoice{
	{name: "gemini", label: "Gemini (API key)", envVar: "GEMINI_API_KEY", keyURL: "https://aistudio.google.com/apikey"},
	{name: "anthropic", label: "Anthropic (API key)", envVar: "ANTHROPIC_API_KEY", keyURL: "https://console.anthropic.com/settings/keys"},
	{name: "ollama", label: "Ollama (local or self-hosted)", envVar: "OLLAMA_HOST"},
}

// fileConfig is the subset of the config file the wizard writes. Everything
// else keeps its default.
type fileConfig struct {
	Provider fileProvider `yaml:"provider"`
}

type fileProvider struct {
	Name    string `yaml:"name"`
	Model   string `yaml:"model,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// ModelLister lists the models installed on an Ollama server.
type ModelLister func(ctx context.Context, host string) ([]string, error)

// Wizard asks for a provider and its credentials and writes the config file.
type Wizard struct {
	in         *bufio.Reader
	out        io.Writer
	path       string
	getenv     func(string) string
	listModels ModelLister
}

// NewWizard creates a wizard that reads answers from in and writes the
// config to path.
func NewWizard(in io.Reader, out io.Writer, path string) *Wizard {
	return &Wizard{
		in:         bufio.NewReader(in),
		out:        out,
		path:       path,
		getenv:     os.Getenv,
		listModels: listOllamaModels,
	}
}

// ErrAborted is returned when the user declines to overwrite a config.
var ErrAborted = errors.New("setup aborted")

// Run runs the wizard.
func (w *Wizard) Run(ctx context.Context) error {
	fmt.Fprintln(w.out, titleStyle.Render("webforge setup"))
	fmt.Fprintln(w.out, dimStyle.Render("Choose the model provider used to generate projects."))

	if _, err := os.Stat(w.path); err == nil {
		ok, err := w.confirm(fmt.Sprintf("%s already exists. Overwrite?", w.path), false)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAborted
		}
	}

	choice, err := w.chooseProvider()
	if err != nil {
		return err
	}

	fc := fileConfig{Provider: fileProvider{Name: choice.name}}
	if choice.name == "ollama" {
		err = w.setupOllama(ctx, &fc.Provider)
	} else {
		err = w.setupHosted(choice, &fc.Provider)
	}
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(&fc)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := fileutil.AtomicWrite(w.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, okStyle.Render("✓ Configured "+choice.label))
	fmt.Fprintf(w.out, "  Config: %s\n\n", w.path)
	fmt.Fprintln(w.out, "Next: webforge generate \"a landing page for a coffee roaster\" --out ./site")
	return nil
}

// detected returns the provider whose environment variable is set, or the
// first provider.
func (w *Wizard) detected() int {
	for i, p := range providers {
		if w.getenv(p.envVar) != "" {
			return i
		}
	}
	return 0
}

func (w *Wizard) chooseProvider() (providerChoice, error) {
	def := w.detected()
	fmt.Fprintln(w.out)
	for i, p := range providers {
		marker := " "
		if i == def {
			marker = "*"
		}
		fmt.Fprintf(w.out, " %s [%d] %s\n", marker, i+1, p.label)
	}

	for {
		answer, err := w.ask(fmt.Sprintf("Provider (1-%d, Enter for %d):", len(providers), def+1))
		if err != nil {
			return providerChoice{}, err
		}
		if answer == "" {
			return providers[def], nil
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(providers) {
			return providers[n-1], nil
		}
		for _, p := range providers {
			if strings.EqualFold(answer, p.name) {
				return p, nil
			}
		}
		fmt.Fprintln(w.out, warnStyle.Render(fmt.Sprintf("⚠ Enter a number from 1 to %d.", len(providers))))
	}
}

func (w *Wizard) setupHosted(choice providerChoice, fp *fileProvider) error {
	if w.getenv(choice.envVar) != "" {
		fmt.Fprintln(w.out, okStyle.Render(fmt.Sprintf("✓ Found %s in the environment; it will be read from there.", choice.envVar)))
	} else {
		fmt.Fprintln(w.out, dimStyle.Render("Get a key at "+choice.keyURL))
		for {
			key, err := w.ask("API key:")
			if err != nil {
				return err
			}
			if len(key) >= 20 {
				fp.APIKey = key
				break
			}
			fmt.Fprintln(w.out, warnStyle.Render("⚠ That key looks too short."))
		}
	}

	model, err := w.ask(fmt.Sprintf("Model (Enter for %s):", client.DefaultModels[choice.name]))
	if err != nil {
		return err
	}
	fp.Model = model
	return nil
}

func (w *Wizard) setupOllama(ctx context.Context, fp *fileProvider) error {
	host := w.getenv("OLLAMA_HOST")
	answer, err := w.ask(fmt.Sprintf("Server URL (Enter for %s):", orDefault(host, defaultOllamaHost)))
	if err != nil {
		return err
	}
	if answer != "" {
		host = answer
		fp.BaseURL = answer
	}
	host = orDefault(host, defaultOllamaHost)

	listCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	models, err := w.listModels(listCtx, host)
	switch {
	case err != nil:
		fmt.Fprintln(w.out, warnStyle.Render(fmt.Sprintf("⚠ Could not reach Ollama: %v", err)))
		fmt.Fprintln(w.out, dimStyle.Render("  Make sure it is running: ollama serve"))
	case len(models) == 0:
		fmt.Fprintln(w.out, warnStyle.Render("⚠ No models installed. Run: ollama pull "+client.DefaultModels["ollama"]))
	default:
		fmt.Fprintln(w.out, okStyle.Render(fmt.Sprintf("✓ Found %d installed model(s):", len(models))))
		for i, m := range models {
			fmt.Fprintf(w.out, "    [%d] %s\n", i+1, m)
		}
	}

	def := client.DefaultModels["ollama"]
	if len(models) > 0 {
		def = models[0]
	}
	answer, err = w.ask(fmt.Sprintf("Model (number or name, Enter for %s):", def))
	if err != nil {
		return err
	}
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(models) {
		answer = models[n-1]
	}
	fp.Model = orDefault(answer, def)
	return nil
}

func (w *Wizard) ask(prompt string) (string, error) {
	fmt.Fprint(w.out, promptStyle.Render(prompt)+" ")
	line, err := w.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("error reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (w *Wizard) confirm(prompt string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	answer, err := w.ask(prompt + " " + hint)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func listOllamaModels(ctx context.Context, host string) ([]string, error) {
	c, err := client.NewOllamaClient(client.OllamaConfig{BaseURL: host, HTTPTimeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.ListModels(ctx)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
