package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/linqlens"
	"github.com/jward/linqlens/internal/config"
	"github.com/jward/linqlens/internal/telemetry"
)

var (
	flagConfig      string
	flagFormat      string
	flagModels      string
	flagContextFile string
	flagContextType string
	flagNamespace   string
	flagStarter     bool
	flagTrace       bool
	flagVerbose     bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "linqlens",
	Short:         "Completions and hover for C# LINQ snippets",
	Long:          "LinqLens loads entity models and a DbContext, then answers completion and hover requests for query snippets written against them. All offsets are 0-based byte offsets into the snippet.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run: prints help by default.
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "path to a linqlens.yaml config file")
	pf.StringVar(&flagFormat, "format", "json", "output format: json|text")
	pf.StringVar(&flagModels, "models", "", "directory of model .cs files (one model per file)")
	pf.StringVar(&flagContextFile, "context-file", "", "path to the DbContext source")
	pf.StringVar(&flagContextType, "context-type", "", "name of the DbContext class")
	pf.StringVar(&flagNamespace, "namespace", "", "namespace snippets are wrapped in")
	pf.BoolVar(&flagStarter, "starter", false, "use the built-in Person/TestDbContext models")
	pf.BoolVar(&flagTrace, "trace", false, "export spans to stderr")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "log session activity to stderr")

	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(hoverCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(symbolDetailCmd)
}

// loadConfig reads --config and applies the command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagModels != "" {
		cfg.ModelsDir = flagModels
	}
	if flagContextFile != "" {
		cfg.ContextFile = flagContextFile
	}
	if flagContextType != "" {
		cfg.ContextType = flagContextType
	}
	if flagNamespace != "" {
		cfg.Namespace = flagNamespace
	}
	if flagTrace {
		cfg.Telemetry.Traces = true
	}
	return cfg, nil
}

// openSession builds and initializes a session from the configuration. The
// returned cleanup closes the session and flushes telemetry.
func openSession(ctx context.Context, stderr io.Writer) (*linqlens.Session, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	prov, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:   cfg.Telemetry.ServiceName,
		EnableTraces:  cfg.Telemetry.Traces,
		EnableMetrics: cfg.Telemetry.Metrics,
		Writer:        stderr,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("setting up telemetry: %w", err)
	}

	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	opts := []linqlens.Option{
		linqlens.WithLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))),
		linqlens.WithTelemetry(prov.TracerProvider(), prov.MeterProvider()),
	}
	if cfg.ResultType != "" {
		opts = append(opts, linqlens.WithResultType(cfg.ResultType))
	}

	s, err := newSession(ctx, cfg, opts)
	if err != nil {
		_ = prov.Shutdown(ctx)
		return nil, nil, err
	}
	cleanup := func() {
		s.Close()
		if err := prov.Shutdown(ctx); err != nil {
			fmt.Fprintf(stderr, "telemetry shutdown: %s\n", err)
		}
	}
	return s, cleanup, nil
}

func newSession(ctx context.Context, cfg *config.Config, opts []linqlens.Option) (*linqlens.Session, error) {
	if flagStarter || cfg.ContextFile == "" {
		return linqlens.NewStarterSession(ctx, opts...)
	}
	if strings.TrimSpace(cfg.ContextType) == "" {
		return nil, fmt.Errorf("--context-type is required with --context-file")
	}
	models, contextSource, err := cfg.Sources()
	if err != nil {
		return nil, err
	}
	s, err := linqlens.New(cfg.ContextType, cfg.Namespace, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Initialize(ctx, models, contextSource); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
