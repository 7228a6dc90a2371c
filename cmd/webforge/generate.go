package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"webforge/internal/config"
	"webforge/internal/events"
	"webforge/internal/fileutil"
	"webforge/internal/logging"
	"webforge/internal/pipeline"
	"webforge/internal/ssh"
	"webforge/internal/ui"
	"webforge/internal/watcher"
)

type generateOptions struct {
	promptFile string
	images     []string
	urls       []string
	provider   string
	model      string
	apiKey     string
	maxRetries int
	maxCost    float64
	stack      string
	mode       string
	out        string
	ndjson     bool
	tui        bool
	watch      bool
	copy       bool
	verbose    bool
}

func newGenerateCmd() *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate a web project",
		Example: `  webforge generate "landing page for a bakery" --out ./bakery
  webforge generate --prompt-file brief.md --url https://example.com --stack static --watch --out ./site`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.promptFile, "prompt-file", "", "read the prompt from a file")
	f.StringArrayVar(&opts.images, "image", nil, "reference screenshot (repeatable)")
	f.StringArrayVar(&opts.urls, "url", nil, "reference https URL (repeatable, at most 3)")
	f.StringVar(&opts.provider, "provider", "", "model provider: gemini, anthropic, ollama")
	f.StringVar(&opts.model, "model", "", "model override")
	f.StringVar(&opts.apiKey, "api-key", "", "provider API key (default from config or environment)")
	f.IntVar(&opts.maxRetries, "max-retries", -1, "repair passes, 0 to 2 (default from config)")
	f.Float64Var(&opts.maxCost, "max-cost", 0, "cost cap in USD, at least 0.05 (default from config)")
	f.StringVar(&opts.stack, "stack", "", "output stack: framework or static")
	f.StringVar(&opts.mode, "mode", "", "quality mode: strict-visual, balanced, function-first")
	f.StringVarP(&opts.out, "out", "o", "", "write the project to this directory")
	f.BoolVar(&opts.ndjson, "ndjson", false, "print the raw event stream to stdout")
	f.BoolVar(&opts.tui, "tui", false, "show an interactive progress view")
	f.BoolVar(&opts.watch, "watch", false, "regenerate whenever the prompt file or images change")
	f.BoolVar(&opts.copy, "copy", false, "copy the run report to the clipboard as markdown")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "list every generated file")
	return cmd
}

func runGenerate(ctx context.Context, opts *generateOptions, args []string) error {
	if opts.ndjson && opts.tui {
		return errors.New("--ndjson and --tui cannot be combined")
	}
	if opts.watch && opts.promptFile == "" && len(opts.images) == 0 {
		return errors.New("--watch needs --prompt-file or --image")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg, opts.tui)
	defer logging.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *ssh.Pool
	if cfg.Runtime.Remote.Enabled() {
		pool = ssh.NewPool(ssh.DefaultMaxIdle)
		defer pool.Close()
	}
	store := openUsageStore(cfg)
	if store != nil {
		defer store.Close()
	}
	p := pipeline.New(cfg, pool, pipelineOptions(store)...)

	if !opts.watch {
		return generateOnce(ctx, cfg, p, opts, args)
	}

	paths := append([]string(nil), opts.images...)
	if opts.promptFile != "" {
		paths = append(paths, opts.promptFile)
	}
	w, err := watcher.New(paths, watcher.DefaultDebounce)
	if err != nil {
		return err
	}
	defer w.Stop()

	changed := make(chan watcher.Change, 1)
	w.OnChange(func(c watcher.Change) {
		select {
		case changed <- c:
		default:
		}
	})
	w.Start()

	for {
		if err := generateOnce(ctx, cfg, p, opts, args); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(os.Stderr, ui.DefaultStyles().Error.Render(err.Error()))
		}
		fmt.Fprintln(os.Stderr, ui.DefaultStyles().Dim.Render("watching for changes, ctrl+c to stop"))
		if !waitForChange(ctx, changed) {
			return nil
		}
	}
}

// waitForChange blocks until an input changes and reports false when ctx
// ends first. A removed input does not trigger a run.
func waitForChange(ctx context.Context, changed <-chan watcher.Change) bool {
	styles := ui.DefaultStyles()
	for {
		select {
		case <-ctx.Done():
			return false
		case c := <-changed:
			name := filepath.Base(c.Path)
			if c.Removed {
				fmt.Fprintln(os.Stderr, styles.Warning.Render(name+" was removed, waiting for it to come back"))
				continue
			}
			fmt.Fprintln(os.Stderr, styles.Dim.Render(name+" changed, regenerating"))
			return true
		}
	}
}

func generateOnce(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, opts *generateOptions, args []string) error {
	req, err := buildRequest(opts, args)
	if err != nil {
		return err
	}
	params, err := pipeline.Prepare(cfg, req)
	if err != nil {
		return err
	}

	em := p.Stream(ctx, params)
	var outcome *ui.Outcome
	switch {
	case opts.ndjson:
		outcome = &ui.Outcome{}
		tee := make(chan events.Line)
		go func() {
			defer close(tee)
			for line := range em.Lines() {
				outcome.Add(line)
				tee <- line
			}
		}()
		if err := events.WriteNDJSON(os.Stdout, tee); err != nil {
			em.Detach()
			for range tee {
			}
		}
	case opts.tui:
		outcome, err = ui.RunProgress(em.Lines())
		if err != nil {
			em.Detach()
			return err
		}
	default:
		outcome = ui.NewPrinter(os.Stderr, opts.verbose).Consume(em.Lines())
	}

	if outcome.Error != "" {
		return errors.New(outcome.Error)
	}
	if !outcome.Done || outcome.Metadata == nil {
		return errors.New("generation ended without a result")
	}

	if opts.out != "" {
		if err := writeProject(opts.out, outcome); err != nil {
			return err
		}
		if !opts.ndjson {
			fmt.Fprintln(os.Stderr, ui.DefaultStyles().Success.Render(fmt.Sprintf("%s wrote %d files to %s", ui.MessageIcons["success"], len(outcome.Files), opts.out)))
		}
	}
	if !opts.ndjson {
		fmt.Fprint(os.Stdout, ui.RenderReport(outcome.Metadata, 100))
	}
	if opts.copy {
		if err := clipboard.WriteAll(ui.ReportMarkdown(outcome.Metadata)); err != nil {
			logging.Warn("failed to copy report to clipboard", "error", err)
		}
	}
	return nil
}

func buildRequest(opts *generateOptions, args []string) (*pipeline.Request, error) {
	prompt := strings.Join(args, " ")
	if opts.promptFile != "" {
		data, err := os.ReadFile(opts.promptFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file: %w", err)
		}
		prompt = strings.TrimSpace(prompt + "\n" + string(data))
	}

	req := &pipeline.Request{
		Prompt:      prompt,
		URLs:        opts.urls,
		Provider:    opts.provider,
		APIKey:      opts.apiKey,
		Model:       opts.model,
		OutputStack: opts.stack,
		QualityMode: opts.mode,
	}
	if opts.maxRetries >= 0 {
		n := opts.maxRetries
		req.Constraints.MaxRetries = &n
	}
	if opts.maxCost > 0 {
		c := opts.maxCost
		req.Constraints.MaxCostUSD = &c
	}
	for _, path := range opts.images {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		req.Images = append(req.Images, pipeline.Image{MIMEType: http.DetectContentType(data), Data: data})
	}
	return req, nil
}

// writeProject writes the files as one unit plus the run metadata and the
// usage ledger under .webforge/.
func writeProject(dir string, o *ui.Outcome) error {
	files := make([]fileutil.TreeFile, 0, len(o.Files))
	for _, f := range o.Files {
		files = append(files, fileutil.TreeFile{Path: f.Path, Data: []byte(f.Content)})
	}
	if err := fileutil.WriteTree(dir, files); err != nil {
		return fmt.Errorf("failed to write project: %w", err)
	}

	meta := filepath.Join(dir, ".webforge", "metadata.json")
	if err := fileutil.AtomicWriteJSON(meta, o.Metadata, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if o.Metadata.Ledger != nil {
		if err := o.Metadata.Ledger.Save(filepath.Join(dir, ".webforge", "usage.json")); err != nil {
			return fmt.Errorf("failed to write usage: %w", err)
		}
	}
	return nil
}
