package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/mariasu11/grepstream/internal/api"
	"github.com/mariasu11/grepstream/internal/config"
)

var (
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the grepstream API server",
		Long:  `Start the grepstream API server to filter log streams posted over HTTP with the configs of the filter set.`,
		RunE:  runServe,
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	// Serve command flags
	serveCmd.Flags().StringP("host", "H", "0.0.0.0", "Host to bind the server to")
	serveCmd.Flags().IntP("port", "P", 8000, "Port to listen on")
	serveCmd.Flags().Duration("timeout", 60*time.Second, "Request timeout")
	serveCmd.Flags().Bool("watch", false, "Reload the filter set when its file changes")

	// Bind flags to viper
	viper.BindPFlag("api.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("api.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("api.timeout", serveCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("filters.watch", serveCmd.Flags().Lookup("watch"))
}

func runServe(cmd *cobra.Command, args []string) error {
	// Cancel on SIGINT / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	loc, err := cfg.Filter.TimeLocation()
	if err != nil {
		return err
	}

	store, err := loadStore(cfg)
	if err != nil {
		return err
	}

	// Pick up log level changes without a restart
	if viper.ConfigFileUsed() != "" {
		viper.OnConfigChange(func(e fsnotify.Event) {
			level := hclog.LevelFromString(viper.GetString("log.level"))
			if level == hclog.NoLevel {
				return
			}
			logger.SetLevel(level)
			logger.Info("Config file changed", "path", e.Name, "level", level.String())
		})
		viper.WatchConfig()
	}

	// Create and configure the API server
	server := api.NewServer(cfg.API, store, logger, api.WithLocation(loc))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start()
	})

	if cfg.Filters.Watch && cfg.Filters.Path != "" {
		g.Go(func() error {
			return store.Watch(ctx, func(set *config.FilterSet) {
				logger.Info("Filter set reloaded", "configs", len(set.IDs()))
			})
		})
	}

	g.Go(func() error {
		// Wait for context cancellation (signal or a failed goroutine)
		<-ctx.Done()

		// Graceful shutdown
		logger.Info("Shutting down API server...")

		// Allow up to 10 seconds for graceful shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		return server.Stop(shutdownCtx)
	})

	logger.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}

	logger.Info("grepstream API server shutdown complete")
	return nil
}
