// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vgrid/internal/config"
	"github.com/xkilldash9x/vgrid/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

var cfgFile string

// flagBindings maps persistent flags onto configuration keys so that a flag
// overrides the config file and environment.
var flagBindings = map[string]string{
	"log-level":    "logger.level",
	"log-format":   "logger.format",
	"height":       "grid.height",
	"width":        "grid.width",
	"row-height":   "grid.row_height",
	"overscan":     "grid.overscan",
	"id-column":    "source.id_column",
	"table":        "source.table",
	"limit":        "source.limit",
	"prune-hidden": "grid.prune_selection_on_filter",
}

// NewRootCommand builds a fresh command tree. Each call returns independent
// flag state, which keeps tests isolated.
func NewRootCommand() *cobra.Command {
	return newRootCmd(NewDatasetProvider())
}

func newRootCmd(provider datasetProvider) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vgrid",
		Short:         "vgrid renders virtualized windows over large tabular datasets.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "vgrid"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting vgrid", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./vgrid.yaml)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (console or json)")
	pf.Float64("height", 0, "viewport height in pixels")
	pf.Float64("width", 0, "viewport width in pixels")
	pf.Float64("row-height", 0, "fixed row height in pixels")
	pf.Int("overscan", 0, "extra rows rendered above and below the window")
	pf.String("id-column", "", "field holding each row's identity")
	pf.String("table", "", "load rows from this PostgreSQL table instead of a file")
	pf.Int("limit", 0, "maximum number of rows to load")
	pf.Bool("prune-hidden", false, "drop selected rows hidden by a filter")

	rootCmd.SetVersionTemplate("{{.Name}} version {{.Version}}\n")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newRenderCmd(provider))
	rootCmd.AddCommand(newReplayCmd(provider))
	rootCmd.AddCommand(newFollowCmd())
	return rootCmd
}

// Execute runs the command tree with ctx and reports failures on stderr.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	observability.Sync()
	return err
}

// initializeConfig reads the config file, then lets explicitly set flags
// override it. Environment variables are bound by config.NewConfigFromViper.
func initializeConfig(cmd *cobra.Command, v *viper.Viper) error {
	if cfgFile != "" {
		path, err := config.ExpandPath(cfgFile)
		if err != nil {
			return err
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/vgrid")
		v.SetConfigName("vgrid")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	for name, key := range flagBindings {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

// getConfigFromContext returns the configuration stored by PersistentPreRunE.
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not found in command context")
	}
	return cfg, nil
}
