package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/viant/mcp-sse-bridge/auth"
	"github.com/viant/mcp-sse-bridge/internal/logx"
	"github.com/viant/mcp-sse-bridge/internal/metrics"
)

// Run parses args (and MCP_* environment variables), then bridges stdin and
// stdout to the configured server. It returns nil on a normal shutdown.
func Run(args []string) error {
	return run(context.Background(), args, os.Stdin, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, in io.Reader, out, diagnostics io.Writer) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	logger := logx.New(diagnostics, options.LogLevel)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.New()
	if options.MetricsAddr != "" {
		server, err := serveMetrics(options.MetricsAddr, collector, logger)
		if err != nil {
			logger.Error().Err(err).Msg("failed to register metrics")
			return err
		}
		defer server.Close()
	}

	srv, err := New(ctx, options, WithLogger(logger), WithMetrics(collector))
	if err != nil {
		message := "failed to start bridge"
		if errors.Is(err, auth.ErrMissingToken) {
			message = "MCP_AUTH_TOKEN environment variable is required"
		}
		logger.Error().Err(err).Msg(message)
		return err
	}
	return srv.Serve(ctx, in, out)
}

func serveMetrics(addr string, collector *metrics.Metrics, logger zerolog.Logger) (*http.Server, error) {
	registry := prometheus.NewRegistry()
	if err := collector.Register(registry); err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")
	return server, nil
}

// ExitCode maps the result of Run to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
