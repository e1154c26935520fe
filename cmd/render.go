package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vgrid/internal/config"
	"github.com/xkilldash9x/vgrid/internal/engine"
	"github.com/xkilldash9x/vgrid/internal/observability"
	"github.com/xkilldash9x/vgrid/internal/pipeline"
	"github.com/xkilldash9x/vgrid/internal/render"
	"github.com/xkilldash9x/vgrid/internal/source"
)

// viewFlags is the view state shared by render and follow.
type viewFlags struct {
	sort       string
	filters    []string
	selectIDs  []string
	selectAll  bool
	order      []string
	scrollTop  float64
	scrollLeft float64
	scrollTo   int
	format     string
	footer     bool
	cellPixels float64
}

func (f *viewFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.sort, "sort", "", "sort keys, e.g. name:asc,age:desc")
	fl.StringArrayVar(&f.filters, "filter", nil, "column filter col=text (repeatable); =v matches exactly, a..b is a range")
	fl.StringSliceVar(&f.selectIDs, "select", nil, "row ids to select")
	fl.BoolVar(&f.selectAll, "select-all", false, "select every row in the view")
	fl.StringSliceVar(&f.order, "columns", nil, "leading column order")
	fl.Float64Var(&f.scrollTop, "scroll-top", 0, "vertical scroll offset in pixels")
	fl.Float64Var(&f.scrollLeft, "scroll-left", 0, "horizontal scroll offset in pixels")
	fl.IntVar(&f.scrollTo, "scroll-to", -1, "scroll the given view row into view")
	fl.StringVarP(&f.format, "format", "f", "text", "output format (text or json)")
	fl.BoolVar(&f.footer, "footer", true, "print a status line under text output")
	fl.Float64Var(&f.cellPixels, "cell-pixels", 8, "pixels per terminal cell for text output")
}

// parseFilters turns col=expr arguments into a filter state.
func parseFilters(args []string) (pipeline.FilterState, error) {
	fs := pipeline.FilterState{}
	for _, arg := range args {
		key, expr, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q (want column=text)", arg)
		}
		fs = fs.With(key, pipeline.ParseFilter(expr))
	}
	return fs, nil
}

// applyQuery sets order, filters and sort on g and waits for the view.
func (f *viewFlags) applyQuery(ctx context.Context, g *engine.Grid[source.Record, string]) error {
	for i, key := range f.order {
		if err := g.MoveColumn(strings.TrimSpace(key), i); err != nil {
			return err
		}
	}
	fs, err := parseFilters(f.filters)
	if err != nil {
		return err
	}
	if !fs.IsEmpty() {
		if err := g.ApplyFilters(fs); err != nil {
			return err
		}
	}
	if f.sort != "" {
		state, err := pipeline.ParseSortState(f.sort)
		if err != nil {
			return err
		}
		if err := g.SetSort(state); err != nil {
			return err
		}
	}
	return g.Settle(ctx)
}

// applyPosition selects rows and scrolls, then runs a frame.
func (f *viewFlags) applyPosition(g *engine.Grid[source.Record, string], now time.Time) error {
	if f.selectAll {
		g.SelectAll()
	}
	for _, id := range f.selectIDs {
		if g.IsSelected(id) {
			continue
		}
		if _, err := g.ToggleSelect(strings.TrimSpace(id)); err != nil {
			return fmt.Errorf("select %q: %w", id, err)
		}
	}
	g.ScrollTo(f.scrollTop, f.scrollLeft)
	if f.scrollTo >= 0 {
		g.ScrollToIndex(f.scrollTo)
	}
	g.Frame(now)
	return nil
}

func (f *viewFlags) write(out io.Writer, g *engine.Grid[source.Record, string]) error {
	format, err := render.ParseFormat(f.format)
	if err != nil {
		return err
	}
	snap := engine.Snapshot(g.Window(), identity)
	return render.Write(out, snap, format, render.Options{PixelsPerCell: f.cellPixels, Footer: f.footer})
}

func newRenderCmd(provider datasetProvider) *cobra.Command {
	var flags viewFlags

	renderCmd := &cobra.Command{
		Use:   "render [dataset]",
		Short: "Render one window of a dataset",
		Long: `Loads a CSV, TSV, JSON or NDJSON file (or a PostgreSQL table with --table),
applies filters, sort, selection and scroll position, and prints the rows
that fall inside the viewport.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return runRender(ctx, cmd.OutOrStdout(), cfg, provider, path, &flags, observability.Named("render"))
		},
	}
	flags.register(renderCmd)
	return renderCmd
}

func runRender(ctx context.Context, out io.Writer, cfg config.Interface, provider datasetProvider, path string, flags *viewFlags, logger *zap.Logger) error {
	ds, err := provider.Load(ctx, cfg, path, logger)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	g, err := newGrid(cfg, ds, engine.Hooks[source.Record]{}, logger)
	if err != nil {
		return err
	}
	defer g.Close()

	if err := flags.applyQuery(ctx, g); err != nil {
		return err
	}
	if err := flags.applyPosition(g, time.Now()); err != nil {
		return err
	}
	logger.Debug("Rendering window.",
		zap.Int("rows", len(ds.Records)),
		zap.Int("view_rows", g.View().Len()),
		zap.Stringer("sort", g.Sort()))
	return flags.write(out, g)
}
