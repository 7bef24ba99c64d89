package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mahd-dev/riwaq/internal/watch"
	"github.com/mahd-dev/riwaq/pkg/tenanthost"
)

var cfgFile string

// NewRootCommand builds the riwaqd command tree: `serve` runs the host
// until interrupted, `reload` loads a single tenant once in a fresh,
// short-lived host of its own (compiling its modules and running its
// migrations) and exits; it does not reach a running `serve` process.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "riwaqd",
		Short:         "riwaqd runs the multi-tenant Wasm application host",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (yaml)")

	root.AddCommand(newServeCommand())
	root.AddCommand(newReloadCommand())
	return root
}

func newServeCommand() *cobra.Command {
	var tenants []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the host and watch for tenant changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			logger, err := NewLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, err := NewBlobStore(cfg)
			if err != nil {
				return err
			}
			dialer := NewDialer(logger)

			host := tenanthost.NewHost(cfg, store, dialer, logger)

			for _, id := range tenants {
				if err := host.Reload(cmd.Context(), id); err != nil {
					logger.Error("initial reload failed", zap.String("tenant", id), zap.Error(err))
				}
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			debounce, err := time.ParseDuration(cfg.ReloadDebounce)
			if err != nil {
				return fmt.Errorf("riwaqd: parsing reload_debounce: %w", err)
			}

			var runErr error
			if cfg.StorageKind == tenanthost.StorageFS {
				w, err := watch.New(cfg.StorageRoot, debounce, host, logger)
				if err != nil {
					return fmt.Errorf("riwaqd: starting watcher: %w", err)
				}
				go func() {
					if err := w.Run(ctx); err != nil && ctx.Err() == nil {
						logger.Error("watcher stopped", zap.Error(err))
					}
				}()
			} else {
				logger.Info("hot-reload watcher only supports local fs storage; tenants are loaded only at startup",
					zap.String("storage_kind", string(cfg.StorageKind)))
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			select {
			case sig := <-sigCh:
				logger.Info("shutting down", zap.String("signal", sig.String()))
			case <-ctx.Done():
			}
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := host.Close(shutdownCtx); err != nil {
				logger.Error("error during shutdown", zap.Error(err))
				runErr = err
			}
			return runErr
		},
	}
	cmd.Flags().StringSliceVar(&tenants, "tenant", nil, "tenant id(s) to load at startup (repeatable)")
	return cmd
}

func newReloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reload <tenant-id>",
		Short: "reload one tenant's schema and handlers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			logger, err := NewLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, err := NewBlobStore(cfg)
			if err != nil {
				return err
			}
			dialer := NewDialer(logger)

			host := tenanthost.NewHost(cfg, store, dialer, logger)
			return host.Reload(cmd.Context(), args[0])
		},
	}
}
