package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"mercator-hq/storagerpc/pkg/cli"
	"mercator-hq/storagerpc/pkg/config"

	"github.com/spf13/cobra"
)

// shutdownTimeout bounds the metrics server's graceful shutdown.
const shutdownTimeout = 5 * time.Second

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Keep policies loaded and reload them on change",
	Long: `Load the configured policy modules, then keep them current until SIGINT or
SIGTERM:

  - policy.watch.enabled reloads a module when its policy file changes
  - policy.refresh.schedule reloads every module on a cron schedule
  - telemetry.metrics.listen_address serves Prometheus metrics

Examples:
  # Start with a config file
  storagerpc run --config /etc/storagerpc/config.yaml

  # Serve metrics on another address
  storagerpc run --config storagerpc.yaml --listen 127.0.0.1:9102

  # Validate config without starting
  storagerpc run --config storagerpc.yaml --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override metrics listen address (enables metrics)")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate configuration and exit")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Telemetry.Metrics.Enabled = true
		cfg.Telemetry.Metrics.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	w := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(w, "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	return serve(ctx, cfg, w, cmd.ErrOrStderr())
}

// serve runs until ctx is canceled or a background component fails.
func serve(ctx context.Context, cfg *config.Config, w, logOut io.Writer) error {
	s, err := newStack(cfg, logOut)
	if err != nil {
		return err
	}
	slog.SetDefault(s.logger)
	defer s.manager.Close()

	s.manager.LoadPolicies()
	fmt.Fprintf(w, "✓ Policies loaded (%d of %d modules, version %s)\n",
		s.cache.Count(), len(cfg.Policy.Modules), s.cache.Version())

	errCh := make(chan error, 2)

	var srv *http.Server
	if m := cfg.Telemetry.Metrics; m.Enabled && m.ListenAddress != "" {
		ln, err := net.Listen("tcp", m.ListenAddress)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("metrics listener: %w", err))
		}
		srv = s.collector.NewServer(m.ListenAddress, m.Path)
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
		fmt.Fprintf(w, "✓ Metrics endpoint: http://%s%s\n", ln.Addr(), m.Path)
	}

	if cfg.Policy.Watch.Enabled {
		go func() {
			if err := s.manager.Watch(ctx); err != nil {
				errCh <- fmt.Errorf("policy watcher: %w", err)
			}
		}()
		fmt.Fprintln(w, "✓ Watching policy files")
	}

	if err := s.manager.StartRefresh(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	if cfg.Policy.Refresh.Schedule != "" {
		fmt.Fprintf(w, "✓ Refresh scheduled (%s)\n", cfg.Policy.Refresh.Schedule)
	}

	fmt.Fprintln(w, "\nPress Ctrl+C to stop")

	var runErr error
	select {
	case <-ctx.Done():
		fmt.Fprintln(w, "\nShutting down...")
	case err := <-errCh:
		runErr = cli.NewCommandError("run", err)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Metrics server shutdown failed", "error", err)
		}
	}

	if runErr == nil {
		fmt.Fprintln(w, "✓ Stopped")
	}
	return runErr
}
