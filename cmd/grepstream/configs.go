package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mariasu11/grepstream/internal/config"
	"github.com/mariasu11/grepstream/internal/metrics"
	"github.com/mariasu11/grepstream/internal/pipeline"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Inspect the filter set",
	}

	configListCmd = &cobra.Command{
		Use:   "list",
		Short: "List the config ids of the filter set",
		Args:  cobra.NoArgs,
		RunE:  runConfigList,
	}

	configExportCmd = &cobra.Command{
		Use:   "export <config-id>",
		Short: "Print the filter set entries of one config id as YAML",
		Long: `Export binds a filter of each kind to the config id and prints what the
filters export: the saved config, the log date format and the filter alias.`,
		Args: cobra.ExactArgs(1),
		RunE: runConfigExport,
	}
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configExportCmd)
}

func runConfigList(cmd *cobra.Command, args []string) error {
	store, err := loadConfiguredStore()
	if err != nil {
		return err
	}

	for _, id := range store.Get().IDs() {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

func runConfigExport(cmd *cobra.Command, args []string) error {
	store, err := loadConfiguredStore()
	if err != nil {
		return err
	}

	fs, err := pipeline.NewBuilder(store.Get(), logger, metrics.GetMetrics()).Export(args[0])
	if err != nil {
		return err
	}

	data, err := fs.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func loadConfiguredStore() (*config.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Filters.Path == "" {
		return nil, fmt.Errorf("no filter set file configured (use --filters)")
	}
	return loadStore(cfg)
}
