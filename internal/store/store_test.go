package store

import (
	"context"
	"errors"
	"math/big"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/vgrid/internal/source"
)

func newMockStore(t *testing.T, logger *zap.Logger) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	s, err := New(context.Background(), mockPool, logger)
	require.NoError(t, err)
	return s, mockPool
}

// -- Test Cases --

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSelectSQL(t *testing.T) {
	sql, err := SelectSQL("people", 0)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "people"`, sql)

	sql, err = SelectSQL("public.people", 50)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "public"."people" LIMIT $1`, sql)

	sql, err = SelectSQL(`odd"name`, 0)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "odd""name"`, sql, "quotes are escaped")

	for _, bad := range []string{"", "  ", "public.", ".people"} {
		_, err := SelectSQL(bad, 0)
		assert.ErrorIs(t, err, ErrInvalidTable, bad)
	}
}

func TestLoad(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s, mockPool := newMockStore(t, zap.New(core))

	joined := time.Date(2024, 2, 3, 4, 5, 6, 0, time.FixedZone("X", 3600))
	rows := pgxmock.NewRows([]string{"id", "name", "age", "joined"}).
		AddRow(int32(1), "ann", int16(30), joined).
		AddRow(int32(2), "bob", nil, joined)
	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "people" LIMIT $1`)).
		WithArgs(10).
		WillReturnRows(rows)

	ds, err := s.Load(context.Background(), "people", source.Options{IDColumn: "id", Limit: 10})
	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())

	assert.Equal(t, []string{"id", "name", "age", "joined"}, ds.Fields)
	require.Len(t, ds.Records, 2)
	assert.Equal(t, "1", ds.Records[0].ID)
	assert.Equal(t, int64(30), ds.Records[0].Get("age"))
	assert.Nil(t, ds.Records[1].Get("age"))
	assert.Equal(t, joined.UTC(), ds.Records[0].Get("joined"))

	entries := logs.FilterMessage("Loaded table.").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].ContextMap()["rows"])
}

func TestLoad_Errors(t *testing.T) {
	t.Run("query failure", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		queryErr := errors.New("relation does not exist")
		mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "ghost"`)).WillReturnError(queryErr)

		_, err := s.Load(context.Background(), "ghost", source.Options{})
		assert.ErrorIs(t, err, queryErr)
	})

	t.Run("duplicate ids", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		rows := pgxmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(1))
		mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "dupes"`)).WillReturnRows(rows)

		_, err := s.Load(context.Background(), "dupes", source.Options{IDColumn: "id"})
		assert.ErrorIs(t, err, source.ErrDuplicateID)
	})

	t.Run("row iteration failure", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		rowErr := errors.New("connection reset")
		rows := pgxmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)).RowError(1, rowErr)
		mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "flaky"`)).WillReturnRows(rows)

		_, err := s.Load(context.Background(), "flaky", source.Options{IDColumn: "id"})
		assert.Error(t, err)
	})

	t.Run("invalid table", func(t *testing.T) {
		s, _ := newMockStore(t, zap.NewNop())
		_, err := s.Load(context.Background(), "", source.Options{})
		assert.ErrorIs(t, err, ErrInvalidTable)
	})
}

func TestNormalize(t *testing.T) {
	id := uuid.MustParse("0b6f2a58-6a0e-4a8d-9c1b-2a1f3e4d5c6b")

	assert.Equal(t, int64(7), Normalize(int32(7)))
	assert.Equal(t, 1.5, Normalize(float32(1.5)))
	assert.Equal(t, "raw", Normalize([]byte("raw")))
	assert.Equal(t, id.String(), Normalize([16]byte(id)))
	assert.Equal(t, "keep", Normalize("keep"))
	assert.Nil(t, Normalize(nil))

	assert.Equal(t, int64(42), Normalize(pgtype.Numeric{Int: big.NewInt(42), Valid: true}))
	assert.Equal(t, 4.25, Normalize(pgtype.Numeric{Int: big.NewInt(425), Exp: -2, Valid: true}))
	assert.Nil(t, Normalize(pgtype.Numeric{}))
}
