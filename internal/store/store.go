// Package store loads grid rows from a PostgreSQL table.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vgrid/internal/source"
)

// ErrInvalidTable is returned for empty or malformed table names.
var ErrInvalidTable = errors.New("invalid table name")

// DBPool abstracts pgxpool.Pool so the store can be exercised with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store reads datasets from PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// SelectSQL builds the query for table. A schema-qualified name such as
// "public.people" is quoted part by part.
func SelectSQL(table string, limit int) (string, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return "", ErrInvalidTable
	}
	parts := strings.Split(table, ".")
	for _, p := range parts {
		if p == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidTable, table)
		}
	}
	sql := "SELECT * FROM " + pgx.Identifier(parts).Sanitize()
	if limit > 0 {
		sql += " LIMIT $1"
	}
	return sql, nil
}

// Load reads every row of table into a dataset. Column order follows the
// table definition and row identities follow the same rules as file sources.
func (s *Store) Load(ctx context.Context, table string, opts source.Options) (*source.Dataset, error) {
	sql, err := SelectSQL(table, opts.Limit)
	if err != nil {
		return nil, err
	}
	var args []any
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
	}

	start := time.Now()
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}

	b := source.NewBuilder(opts)
	for rows.Next() {
		raw, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row from %s: %w", table, err)
		}
		values := make(map[string]any, len(names))
		for i, name := range names {
			if i < len(raw) {
				values[name] = Normalize(raw[i])
			}
		}
		if err := b.Add(names, values); err != nil {
			return nil, fmt.Errorf("table %s: %w", table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	ds := b.Dataset()
	s.log.Debug("Loaded table.",
		zap.String("table", table),
		zap.Int("rows", len(ds.Records)),
		zap.Int("columns", len(ds.Fields)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ds, nil
}

// Normalize converts driver values to the scalar kinds the grid compares:
// int64, float64, bool, string and time.Time. Other values pass through.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	case [16]byte:
		return uuid.UUID(x).String()
	case pgtype.Numeric:
		return numericValue(x)
	case time.Time:
		return x.UTC()
	}
	return v
}

func numericValue(n pgtype.Numeric) any {
	if !n.Valid || n.NaN || n.Int == nil {
		return nil
	}
	if n.Exp == 0 && n.Int.IsInt64() {
		return n.Int.Int64()
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return nil
	}
	return f.Float64
}
