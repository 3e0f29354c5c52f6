package main

import (
	"context"
	"fmt"
	"io"
	stdslog "log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"google.golang.org/genai"

	"github.com/akowalczyk/ragsync"
	"github.com/akowalczyk/ragsync/breaker"
	"github.com/akowalczyk/ragsync/docling"
	"github.com/akowalczyk/ragsync/fs"
	"github.com/akowalczyk/ragsync/gemini"
	"github.com/akowalczyk/ragsync/htmltomarkdown"
	"github.com/akowalczyk/ragsync/lightrag"
	"github.com/akowalczyk/ragsync/reconcile"
	"github.com/akowalczyk/ragsync/scan"
	ragslog "github.com/akowalczyk/ragsync/slog"
	"github.com/akowalczyk/ragsync/trafilatura"
	"github.com/akowalczyk/ragsync/yaml"
)

func main() {
	ctx := context.Background()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Loaded configuration, available after Run() for end-to-end tests.
	Config *ragsync.Config
}

// NewMain returns a new instance of Main.
func NewMain() *Main {
	return &Main{}
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("ragsync"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	// Handle help flags using Kong
	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'ragsync --help' to see available commands")
	}

	cmd := args[0]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := yaml.LoadConfig(cli.ConfigPath)
	if err != nil {
		if ragsync.ErrorCode(err) == ragsync.ENOTFOUND {
			fmt.Fprintf(stderr, "Hint: pass -c to point at your configuration file\n")
		}
		return fmt.Errorf("failed to load config %q: %s", cli.ConfigPath, ragsync.ErrorMessage(err))
	}
	m.Config = cfg

	if cli.Scan.DryRun || cli.Sync.DryRun || cli.Run.DryRun {
		cfg.Runtime.DryRun = true
	}

	logger := newLogger(stderr, cfg.Runtime.LogLevel)
	states := fs.NewStateStore(cfg.Runtime.StateDir)
	artifacts := fs.NewArtifactWriter(cfg.Output)

	deps.Config = cfg
	deps.Logger = logger
	deps.States = states
	deps.Artifacts = artifacts

	// Wire command-specific dependencies based on command
	if cmd == "scan" || cmd == "changes" || cmd == "run" {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %s", ragsync.ErrorMessage(err))
		}

		scanner := &scan.Scanner{
			Config:    cfg,
			States:    states,
			Artifacts: artifacts,
			Logger:    logger,
		}

		// Change classification never converts, so the converter and
		// captioner stay unwired for the changes command.
		if cmd == "scan" || cmd == "run" {
			scanner.Converter = ragslog.NewLoggingConverter(docling.NewClient(cfg.Converter), logger)
			scanner.Extractor = trafilatura.NewExtractor()
			scanner.HTMLConverter = htmltomarkdown.NewConverter()

			if cfg.Captioning.Enabled() {
				captioner, err := newCaptioner(ctx, cfg.Captioning, stderr)
				if err != nil {
					return err
				}
				scanner.Captioner = captioner
			}
		}

		deps.Scanner = scanner
	}

	if cmd == "sync" || cmd == "run" {
		if err := cfg.ValidateIndex(); err != nil {
			return fmt.Errorf("invalid config: %s", ragsync.ErrorMessage(err))
		}

		deps.Reconciler = &reconcile.Reconciler{
			Config: cfg,
			Index:  ragslog.NewLoggingIndex(lightrag.NewClient(cfg.Index), logger),
			States: states,
			Logger: logger,
		}
	}

	return kongCtx.Run(deps)
}

// newCaptioner builds the vision captioner behind its circuit breaker. The
// API key comes from the config, falling back to GEMINI_API_KEY.
func newCaptioner(ctx context.Context, cfg ragsync.CaptioningConfig, stderr io.Writer) (ragsync.Captioner, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		fmt.Fprintln(stderr, "GEMINI_API_KEY environment variable not set. Get an API key at https://aistudio.google.com/apikey")
		return nil, fmt.Errorf("captioning.model is set but no API key is configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		fmt.Fprintln(stderr, "Hint: Check your GEMINI_API_KEY is valid")
		return nil, fmt.Errorf("failed to connect to Gemini API: %w", err)
	}

	return breaker.NewCaptioner(gemini.NewCaptioner(client, cfg)), nil
}

// newLogger builds the structured logger all services share. Logs go to
// stderr so stdout stays clean for command output.
func newLogger(w io.Writer, level string) *stdslog.Logger {
	var lvl stdslog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = stdslog.LevelDebug
	case "warn", "warning":
		lvl = stdslog.LevelWarn
	case "error":
		lvl = stdslog.LevelError
	default:
		lvl = stdslog.LevelInfo
	}
	return stdslog.New(stdslog.NewTextHandler(w, &stdslog.HandlerOptions{Level: lvl}))
}
