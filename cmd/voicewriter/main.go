// Command voicewriter is the entry point for the academic voice writer. The
// serve command runs the dictation server; search, format and improve give
// command-line access to the same citation and touch-up services.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voicewriter/internal/app"
	"github.com/MrWong99/voicewriter/internal/config"
	"github.com/MrWong99/voicewriter/internal/lookup"
	"github.com/MrWong99/voicewriter/internal/observe"
	"github.com/MrWong99/voicewriter/internal/touchup"
	"github.com/MrWong99/voicewriter/internal/touchup/llmtouchup"
	"github.com/MrWong99/voicewriter/pkg/citation"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "voicewriter: %v\n", err)
		os.Exit(1)
	}
}

// cli holds state shared by all subcommands.
type cli struct {
	configPath string
	cfg        *config.Config
	logFile    *os.File

	sampleRatio float64
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "voicewriter",
		Short: "Dictate academic prose with spoken citation lookup",
		Long: `voicewriter turns dictation into an academic manuscript.

Say "cite <keywords>" to search Crossref and Semantic Scholar, insert the
chosen work as an in-text citation and have the reference list kept in
order. Say "improve last paragraph" to touch up what you dictated.`,
		Version:            version,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  c.setup,
		PersistentPostRunE: c.teardown,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "config.yaml", "path to the YAML configuration file")

	root.AddCommand(
		c.serveCmd(),
		c.searchCmd(),
		c.formatCmd(),
		c.improveCmd(),
		c.providersCmd(),
	)
	return root
}

// setup loads .env and the config file, then installs the logger. A missing
// config file is fine unless --config was given explicitly.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}

	cfg, err := config.Load(c.configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg = config.Default()
	case err != nil:
		return err
	}
	c.cfg = cfg

	observe.LogLevel.Set(observe.ParseLevel(string(cfg.Server.LogLevel)))
	var file io.Writer
	if path := cfg.Server.LogFile; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		c.logFile = f
		file = f
	}
	slog.SetDefault(observe.NewLogger(observe.LogLevel, cmd.ErrOrStderr(), file))
	return nil
}

func (c *cli) teardown(*cobra.Command, []string) error {
	if c.logFile == nil {
		return nil
	}
	return c.logFile.Close()
}

// buildProviders instantiates the configured providers from the built-in
// registry.
func (c *cli) buildProviders(m *observe.Metrics) (*app.Providers, error) {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, version)
	return app.BuildProviders(c.cfg, reg, m)
}

// ── serve ─────────────────────────────────────────────────────────────────────

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dictation server",
		Args:  cobra.NoArgs,
		RunE:  c.runServe,
	}
	cmd.Flags().Float64Var(&c.sampleRatio, "trace-sample-ratio", 1, "fraction of requests traced (0 or 1 traces all)")
	return cmd
}

func (c *cli) runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voicewriter",
		ServiceVersion: version,
		SampleRatio:    c.sampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics := observe.DefaultMetrics()
	providers, err := c.buildProviders(metrics)
	if err != nil {
		return err
	}
	application, err := app.New(c.cfg, providers, app.WithMetrics(metrics), app.WithVersion(version))
	if err != nil {
		return err
	}

	// Hot reload only makes sense when the config came from a file.
	if _, err := os.Stat(c.configPath); err == nil {
		w, err := config.NewWatcher(c.configPath, func(old, new *config.Config) {
			application.Reload(config.Diff(old, new))
		})
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	printStartupSummary(cmd.OutOrStdout(), c.cfg)

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("shutdown signal received, stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("goodbye")

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func printStartupSummary(w io.Writer, cfg *config.Config) {
	bib := make([]string, 0, len(cfg.Providers.Bibliography))
	for _, e := range cfg.Providers.Bibliography {
		bib = append(bib, e.Name)
	}
	stt := cfg.Providers.STT.Name
	if stt == "" {
		stt = "browser"
	}
	mcp := "(disabled)"
	if cfg.MCP.IsEnabled() {
		mcp = cfg.MCP.Path
	}

	fmt.Fprintln(w, "╔═══════════════════════════════════════════╗")
	fmt.Fprintln(w, "║       voicewriter — startup summary       ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════════╣")
	printRow(w, "LLM", providerLabel(cfg.Providers.LLM.Name, cfg.Providers.LLM.Model))
	printRow(w, "STT", stt)
	printRow(w, "Bibliography", strings.Join(bib, " → "))
	printRow(w, "Style", cfg.Citation.DefaultStyle)
	printRow(w, "MCP", mcp)
	printRow(w, "Listen addr", cfg.Server.ListenAddr)
	fmt.Fprintln(w, "╚═══════════════════════════════════════════╝")
}

func providerLabel(name, model string) string {
	switch {
	case name == "":
		return "(rules only)"
	case model != "":
		return name + " / " + model
	}
	return name
}

func printRow(w io.Writer, key, value string) {
	if r := []rune(value); len(r) > 25 {
		value = string(r[:24]) + "…"
	}
	fmt.Fprintf(w, "║  %-12s : %-25s ║\n", key, value)
}

// ── search ────────────────────────────────────────────────────────────────────

func (c *cli) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>...",
		Short: "Search Crossref and Semantic Scholar for citations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			providers, err := c.buildProviders(nil)
			if err != nil {
				return err
			}
			client := lookup.New(providers.Bibliography,
				lookup.WithMaxResults(c.cfg.Citation.MaxResults),
				lookup.WithTimeout(c.cfg.Citation.LookupTimeout),
			)
			results := client.Search(cmd.Context(), strings.Join(args, " "))
			return writeJSON(cmd.OutOrStdout(), map[string]any{"results": results})
		},
	}
}

// ── format ────────────────────────────────────────────────────────────────────

func (c *cli) formatCmd() *cobra.Command {
	var style string
	cmd := &cobra.Command{
		Use:   "format",
		Short: "Format a citation record read as JSON from stdin",
		Long: `Format a citation record read as JSON from stdin, for example:

  echo '{"title":"On significance","authors":"Smith","year":2020}' | voicewriter format`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rec citation.Record
			if err := json.NewDecoder(cmd.InOrStdin()).Decode(&rec); err != nil {
				return fmt.Errorf("decode citation record: %w", err)
			}
			s := style
			if s == "" {
				s = c.cfg.Citation.DefaultStyle
			}
			return writeJSON(cmd.OutOrStdout(), citation.Format(rec, citation.ParseStyle(s)))
		},
	}
	cmd.Flags().StringVar(&style, "style", "", "citation style (default from config)")
	return cmd
}

// ── improve ───────────────────────────────────────────────────────────────────

func (c *cli) improveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "improve [text]...",
		Short: "Touch up a paragraph given as arguments or on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(b)
			}

			opts := []touchup.Option{
				touchup.WithTimeout(c.cfg.Touchup.Timeout),
				touchup.WithRules(c.cfg.Touchup.Rules()),
			}
			var backend touchup.Improver
			if c.cfg.Providers.LLM.Name != "" {
				providers, err := c.buildProviders(nil)
				if err != nil {
					return err
				}
				backend = llmtouchup.New(providers.LLM)
				opts = append(opts, touchup.WithName(c.cfg.Providers.LLM.Name))
			}
			improved := touchup.NewClient(backend, opts...).Improve(cmd.Context(), text)
			_, err := fmt.Fprintln(cmd.OutOrStdout(), improved)
			return err
		},
	}
}

// ── providers ─────────────────────────────────────────────────────────────────

func (c *cli) providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the built-in provider names per kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := config.NewRegistry()
			registerBuiltinProviders(reg, version)
			return writeJSON(cmd.OutOrStdout(), reg.Names())
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
