package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mariasu11/grepstream/internal/config"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "grepstream",
		Short: "grepstream - a streaming log filter",
		Long: `grepstream filters log streams entry by entry. It joins the lines of
multi-line entries, keeps the entries matching a compound pattern and cuts
the stream down to a time window, stopping as soon as the window is over.

Patterns, entry boundaries and date formats can be named in a filter set
file and selected by config id.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger = newLogger(cfg.Log)
			if used := viper.ConfigFileUsed(); used != "" {
				logger.Debug("Using config file", "path", used)
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			// If no subcommand is provided, print help
			cmd.Help()
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.grepstream.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, text)")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to a rotated file instead of stderr")
	rootCmd.PersistentFlags().StringP("filters", "f", "", "Filter set file with saved configs, date formats and aliases")

	// Bind flags to viper
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("filters.path", rootCmd.PersistentFlags().Lookup("filters"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Search config in home directory with name ".grepstream" (without extension)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".grepstream")
	}

	// Read environment variables prefixed with GREPSTREAM_
	viper.SetEnvPrefix("GREPSTREAM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "Failed to read config file:", err)
		}
	}
}

// loadStore loads the filter set named by the configuration
func loadStore(cfg *config.Config) (*config.Store, error) {
	store := config.NewStore(cfg.Filters.Path, logger)
	if err := store.Reload(); err != nil {
		return nil, err
	}
	return store, nil
}
