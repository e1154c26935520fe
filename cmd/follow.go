package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vgrid/internal/config"
	"github.com/xkilldash9x/vgrid/internal/engine"
	"github.com/xkilldash9x/vgrid/internal/observability"
	"github.com/xkilldash9x/vgrid/internal/source"
)

type followFlags struct {
	view       viewFlags
	poll       bool
	fromEnd    bool
	maxUpdates int
}

func newFollowCmd() *cobra.Command {
	var flags followFlags

	followCmd := &cobra.Command{
		Use:   "follow <dataset.ndjson>",
		Short: "Tail an NDJSON file and re-render the window as rows arrive",
		Long: `Follows an NDJSON file like tail -f. Every batch of appended lines replaces the
grid's data; a line repeating an existing id updates that row in place. The
selection, filters and sort survive each replacement.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runFollow(ctx, cmd.OutOrStdout(), cfg, args[0], &flags, observability.Named("follow"))
		},
	}

	flags.view.register(followCmd)
	followCmd.Flags().BoolVar(&flags.poll, "poll", false, "poll the file instead of using filesystem notifications")
	followCmd.Flags().BoolVar(&flags.fromEnd, "from-end", false, "ignore rows already in the file")
	followCmd.Flags().IntVar(&flags.maxUpdates, "max-updates", 0, "exit after this many updates (0 runs until interrupted)")
	return followCmd
}

func runFollow(ctx context.Context, out io.Writer, cfg config.Interface, path string, flags *followFlags, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, err := source.Follow(ctx, path, source.FollowOptions{
		Options: source.Options{IDColumn: cfg.Source().IDColumn, Limit: cfg.Source().Limit},
		Poll:    flags.poll,
		FromEnd: flags.fromEnd,
	}, logger)
	if err != nil {
		return err
	}

	var g *engine.Grid[source.Record, string]
	defer func() {
		if g != nil {
			g.Close()
		}
		// Drain so the follower can observe cancellation and exit.
		cancel()
		for range updates {
		}
	}()

	count := 0
	for u := range updates {
		if g == nil {
			if g, err = newGrid(cfg, u.Dataset, engine.Hooks[source.Record]{}, logger); err != nil {
				return err
			}
			if err := flags.view.applyQuery(ctx, g); err != nil {
				return err
			}
			if err := flags.view.applyPosition(g, time.Now()); err != nil {
				return err
			}
		} else {
			if err := g.SetData(u.Dataset.Records); err != nil {
				return err
			}
			if err := g.Settle(ctx); err != nil {
				return err
			}
			g.Frame(time.Now())
		}

		count++
		logger.Debug("Source updated.",
			zap.Int("update", count),
			zap.Int("appended", u.Appended),
			zap.Int("replaced", u.Replaced),
			zap.Int("skipped", u.Skipped),
			zap.Int("rows", len(u.Dataset.Records)))

		if flags.view.format == "" || flags.view.format == "text" {
			fmt.Fprintf(out, "== update %d: +%d ~%d\n", count, u.Appended, u.Replaced)
		}
		if err := flags.view.write(out, g); err != nil {
			return err
		}
		if flags.maxUpdates > 0 && count >= flags.maxUpdates {
			return nil
		}
	}
	return ctx.Err()
}
