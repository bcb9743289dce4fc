// Package main provides the entry point for the mcp-ckan server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/txn2/mcp-ckan/internal/logger"
	mcpserver "github.com/txn2/mcp-ckan/internal/server"
	"github.com/txn2/mcp-ckan/pkg/health"
	"github.com/txn2/mcp-ckan/pkg/platform"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type serverOptions struct {
	configPath  string
	transport   string
	address     string
	logLevel    string
	showVersion bool
}

func newRootCmd() *cobra.Command {
	opts := &serverOptions{}

	cmd := &cobra.Command{
		Use:   "mcp-ckan",
		Short: "MCP server for CKAN open data portals",
		Long: `mcp-ckan exposes the CKAN Action API of any open data portal as MCP
tools, prompts and resources: dataset, organization, group and tag
search, DataStore queries and data.europa.eu MQA quality scores.

With stdio transport all logging goes to stderr.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flags.StringVar(&opts.transport, "transport", platform.DefaultTransport, "Transport type: stdio, http")
	flags.StringVar(&opts.address, "address", platform.DefaultAddress, "Listen address for the http transport")
	flags.StringVar(&opts.logLevel, "log-level", platform.DefaultLogLevel, "Log level: debug, info, warn, error")
	flags.BoolVar(&opts.showVersion, "version", false, "Show version and exit")

	return cmd
}

func run(cmd *cobra.Command, opts *serverOptions) error {
	if opts.showVersion {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "mcp-ckan version %s\n", mcpserver.Version)
		return nil
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg, opts)
	logger.Setup(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, p, err := mcpserver.New(cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			slog.Warn("closing platform", "error", err)
		}
	}()

	return startServer(ctx, p)
}

func loadConfig(path string) (*platform.Config, error) {
	if path == "" {
		return platform.DefaultConfig(), nil
	}
	cfg, err := platform.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// applyFlagOverrides lets explicitly set flags win over the config file.
func applyFlagOverrides(cmd *cobra.Command, cfg *platform.Config, opts *serverOptions) {
	flags := cmd.Flags()
	if flags.Changed("transport") {
		cfg.Server.Transport = opts.transport
	}
	if flags.Changed("address") {
		cfg.Server.Address = opts.address
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
}

func startServer(ctx context.Context, p *platform.Platform) error {
	cfg := p.Config()
	slog.Info("starting mcp-ckan",
		"version", cfg.Server.Version,
		"transport", cfg.Server.Transport,
		"toolkits", len(p.ToolkitRegistry().All()),
		"portals", p.Portals().Len(),
	)

	switch cfg.Server.Transport {
	case "stdio":
		return serveStdio(ctx, p)
	case "http":
		return serveHTTP(ctx, p)
	default:
		return fmt.Errorf("unknown transport: %s", cfg.Server.Transport)
	}
}

func serveStdio(ctx context.Context, p *platform.Platform) error {
	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("starting platform: %w", err)
	}
	defer stopPlatform(p)

	if err := p.MCPServer().Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serving stdio: %w", err)
	}
	return nil
}

func serveHTTP(ctx context.Context, p *platform.Platform) error {
	cfg := p.Config()
	checker := newChecker(p)
	p.Lifecycle().RegisterComponent("health", checker)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           newHTTPHandler(p, checker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("starting platform: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http transport listening", "address", cfg.Server.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		stopPlatform(p)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	// Flip readiness first so load balancers stop routing before the
	// listener closes.
	stopPlatform(p)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http: %w", err)
	}
	return nil
}

func stopPlatform(p *platform.Platform) {
	ctx, cancel := context.WithTimeout(context.Background(), p.Config().Server.ShutdownTimeout)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		slog.Warn("stopping platform", "error", err)
	}
}

// newChecker builds the readiness checker for the http transport.
func newChecker(p *platform.Platform) *health.Checker {
	checker := health.NewChecker()
	checker.AddCheck("toolkits", func(context.Context) error {
		if len(p.ToolkitRegistry().All()) == 0 {
			return errors.New("no toolkits registered")
		}
		return nil
	})
	return checker
}

// newHTTPHandler routes the streamable MCP endpoint, health probes and
// metrics.
func newHTTPHandler(p *platform.Platform, checker *health.Checker) http.Handler {
	cfg := p.Config()
	mux := http.NewServeMux()

	checker.Mount(mux)
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return p.MCPServer()
	}, nil)
	mux.Handle("/", mcpHandler)

	return mux
}
