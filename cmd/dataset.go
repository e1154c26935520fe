package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vgrid/internal/columns"
	"github.com/xkilldash9x/vgrid/internal/config"
	"github.com/xkilldash9x/vgrid/internal/engine"
	"github.com/xkilldash9x/vgrid/internal/source"
	"github.com/xkilldash9x/vgrid/internal/store"
)

// defaultColumnWidth is the pixel width given to columns derived from a dataset.
const defaultColumnWidth = 120

// datasetProvider loads the rows a command works on. Tests inject an
// in-memory implementation in place of files and PostgreSQL.
type datasetProvider interface {
	Load(ctx context.Context, cfg config.Interface, path string, logger *zap.Logger) (*source.Dataset, error)
}

type defaultDatasetProvider struct{}

// NewDatasetProvider returns the provider that reads files, or a PostgreSQL
// table when source.table is configured.
func NewDatasetProvider() datasetProvider {
	return &defaultDatasetProvider{}
}

func (p *defaultDatasetProvider) Load(ctx context.Context, cfg config.Interface, path string, logger *zap.Logger) (*source.Dataset, error) {
	opts := source.Options{IDColumn: cfg.Source().IDColumn, Limit: cfg.Source().Limit}
	if table := cfg.Source().Table; table != "" {
		return loadTable(ctx, cfg.Source().DatabaseURL, table, opts, logger)
	}
	if path == "" {
		return nil, fmt.Errorf("a dataset path or --table is required")
	}
	return source.Load(ctx, path, opts)
}

func loadTable(ctx context.Context, url, table string, opts source.Options, logger *zap.Logger) (*source.Dataset, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is not configured (VGRID_DATABASE_URL)")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}()

	st, err := store.New(ctx, pool, logger)
	if err != nil {
		return nil, err
	}
	return st.Load(ctx, table, opts)
}

// gridOptions maps the grid configuration onto engine options for a dataset.
func gridOptions(cfg config.Interface, ds *source.Dataset, logger *zap.Logger) engine.Options[source.Record, string] {
	g := cfg.Grid()
	return engine.Options[source.Record, string]{
		Data:                ds.Records,
		Columns:             ds.Columns(defaultColumnWidth),
		Key:                 source.Key,
		Height:              g.Height,
		Width:               g.Width,
		RowHeight:           g.RowHeight,
		Overscan:            g.Overscan,
		FilterDebounce:      g.FilterDebounce,
		BackgroundThreshold: g.BackgroundThreshold,
		ParallelChunk:       g.ParallelChunk,
		PruneOnFilter:       g.PruneSelectionOnFilter,
		Logger:              logger,
	}
}

// newGrid builds a grid over ds. Datasets without fields get a single
// identity column so the window still has something to show.
func newGrid(cfg config.Interface, ds *source.Dataset, hooks engine.Hooks[source.Record], logger *zap.Logger) (*engine.Grid[source.Record, string], error) {
	opts := gridOptions(cfg, ds, logger)
	if len(opts.Columns) == 0 {
		opts.Columns = []columns.Column[source.Record]{{
			Key:      "_id",
			Title:    "id",
			Width:    defaultColumnWidth,
			Sortable: true,
			Accessor: func(r source.Record) any { return r.ID },
		}}
	}
	opts.Hooks = hooks
	return engine.New(opts)
}

func identity(s string) string { return s }

func parseID(s string) (string, error) { return s, nil }
