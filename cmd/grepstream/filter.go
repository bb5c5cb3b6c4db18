package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mariasu11/grepstream/internal/collector"
	"github.com/mariasu11/grepstream/internal/config"
	"github.com/mariasu11/grepstream/internal/metrics"
	"github.com/mariasu11/grepstream/internal/pipeline"
	"github.com/mariasu11/grepstream/pkg/dateformat"
	"github.com/mariasu11/grepstream/pkg/timebound"
)

var (
	filterCmd = &cobra.Command{
		Use:   "filter [file|url|-]...",
		Short: "Filter log files, URLs or standard input",
		Long: `Filter reads each source line by line, groups the lines into entries,
keeps the entries matching the pattern and within the time window, and
prints them. Without sources it reads standard input.

Patterns join fragments with %and% and %or%:

  grepstream filter -e 'ERROR%and%timeout%or%FATAL' app.log

Bounds accept "now", durations ("-2h", "15m" meaning 15 minutes ago) and
absolute times:

  grepstream filter -c app --from 1h app.log`,
		RunE: runFilter,
	}
)

func init() {
	rootCmd.AddCommand(filterCmd)

	// Filter command flags
	filterCmd.Flags().StringP("config-id", "c", "", "Config id in the filter set")
	filterCmd.Flags().StringP("pattern", "e", "", "Compound pattern, fragments joined with %and% / %or%")
	filterCmd.Flags().String("entry-pattern", "", "Regex matching the first line of an entry")
	filterCmd.Flags().String("date-regex", "", "Regex capturing the timestamp of an entry")
	filterCmd.Flags().String("date-format", "", "Format of the captured timestamp (yyyy-MM-dd HH:mm:ss, or go:<Go layout>)")
	filterCmd.Flags().String("from", "", "Lower bound of the time window")
	filterCmd.Flags().String("to", "", "Upper bound of the time window")
	filterCmd.Flags().Bool("stateless", false, "Check the lower bound on every entry instead of once")
	filterCmd.Flags().String("location", "Local", "Time zone of timestamps without zone")
	filterCmd.Flags().IntP("workers", "w", 1, "Number of sources processed at once; above 1 the output order is nondeterministic")
	filterCmd.Flags().BoolP("with-filename", "H", false, "Prefix each entry with its source name")
	filterCmd.Flags().Bool("watch", false, "Rebind the config id when the filter set file changes")

	// Bind flags to viper
	viper.BindPFlag("filter.config-id", filterCmd.Flags().Lookup("config-id"))
	viper.BindPFlag("filter.pattern", filterCmd.Flags().Lookup("pattern"))
	viper.BindPFlag("filter.entry-pattern", filterCmd.Flags().Lookup("entry-pattern"))
	viper.BindPFlag("filter.date-regex", filterCmd.Flags().Lookup("date-regex"))
	viper.BindPFlag("filter.date-format", filterCmd.Flags().Lookup("date-format"))
	viper.BindPFlag("filter.from", filterCmd.Flags().Lookup("from"))
	viper.BindPFlag("filter.to", filterCmd.Flags().Lookup("to"))
	viper.BindPFlag("filter.stateless", filterCmd.Flags().Lookup("stateless"))
	viper.BindPFlag("filter.location", filterCmd.Flags().Lookup("location"))
	viper.BindPFlag("filter.workers", filterCmd.Flags().Lookup("workers"))
	viper.BindPFlag("filter.with-filename", filterCmd.Flags().Lookup("with-filename"))
	viper.BindPFlag("filter.watch", filterCmd.Flags().Lookup("watch"))
}

func runFilter(cmd *cobra.Command, args []string) error {
	// Stop reading on SIGINT / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	opts, err := pipelineOptions(cfg.Filter)
	if err != nil {
		return err
	}

	store, err := loadStore(cfg)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		args = []string{"-"}
	}
	sources := make([]collector.Collector, 0, len(args))
	for _, arg := range args {
		src, err := collector.NewCollector(arg)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	builder := pipeline.NewBuilder(store.Get(), logger, metrics.GetMetrics())
	runner := pipeline.NewRunner(builder, opts, logger,
		pipeline.WithWorkers(cfg.Filter.Workers),
		pipeline.WithFilename(cfg.Filter.WithFilename),
	)

	// Long-running streams (stdin, slow URLs) follow edits of the filter set
	if cfg.Filter.Watch && opts.ConfigID != "" && store.Path() != "" {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := store.Watch(watchCtx, func(set *config.FilterSet) {
				logger.Info("Filter set reloaded", "config_id", opts.ConfigID)
				runner.Reload(set)
			}); err != nil {
				logger.Warn("Filter set watcher stopped", "error", err)
			}
		}()
	}

	report, err := runner.Run(ctx, sources, cmd.OutOrStdout())
	logger.Debug("Filter finished", "sources", len(report.Sources), "entries", report.Entries())
	return err
}

// pipelineOptions resolves the filter configuration into pipeline options
func pipelineOptions(cfg config.FilterConfig) (pipeline.Options, error) {
	loc, err := cfg.TimeLocation()
	if err != nil {
		return pipeline.Options{}, err
	}

	popts := []timebound.Option{timebound.WithLocation(loc)}
	if cfg.DateFormat != "" {
		f, err := dateformat.Compile(cfg.DateFormat, loc)
		if err != nil {
			return pipeline.Options{}, fmt.Errorf("invalid date format: %w", err)
		}
		popts = append(popts, timebound.WithFormat(f))
	}

	from, to, err := timebound.NewParser(popts...).Window(cfg.From, cfg.To)
	if err != nil {
		return pipeline.Options{}, err
	}

	return pipeline.Options{
		ConfigID:     cfg.ConfigID,
		EntryPattern: cfg.EntryPattern,
		Pattern:      cfg.Pattern,
		DateRegex:    cfg.DateRegex,
		DateFormat:   cfg.DateFormat,
		From:         from,
		To:           to,
		Stateless:    cfg.Stateless,
		Location:     loc,
	}, nil
}
