package adapter

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/quantdb/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainTypes struct{}

func (plainTypes) ColumnType(t frame.DataType) string {
	if t == frame.Int64 {
		return "BIGINT"
	}
	return "TEXT"
}

func (plainTypes) Value(_ frame.DataType, v any) any { return v }

func TestBaseSQLAdapter_Close(t *testing.T) {
	tests := []struct {
		name    string
		setupDB bool
	}{
		{name: "close with nil DB", setupDB: false},
		{name: "close with open DB", setupDB: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				mock.ExpectClose()
				base.DB = db
			}

			assert.NoError(t, base.Close())
		})
	}
}

func TestBaseSQLAdapter_Exec(t *testing.T) {
	tests := []struct {
		name      string
		setupDB   bool
		setupMock func(mock sqlmock.Sqlmock)
		sql       string
		expectErr bool
		errMsg    string
	}{
		{
			name:      "exec without connection",
			setupDB:   false,
			sql:       "SELECT 1",
			expectErr: true,
			errMsg:    "database connection not established",
		},
		{
			name:    "exec success",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE TABLE users").WillReturnResult(sqlmock.NewResult(0, 0))
			},
			sql: "CREATE TABLE users (id INT)",
		},
		{
			name:    "exec with error",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INVALID SQL").WillReturnError(assert.AnError)
			},
			sql:       "INVALID SQL",
			expectErr: true,
			errMsg:    "failed to execute SQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			base := &BaseSQLAdapter{}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				defer func() { _ = db.Close() }()

				if tt.setupMock != nil {
					tt.setupMock(mock)
				}
				base.DB = db
			}

			err := base.Exec(ctx, tt.sql)
			if tt.expectErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBaseSQLAdapter_QueryFrame(t *testing.T) {
	tests := []struct {
		name      string
		setupDB   bool
		setupMock func(mock sqlmock.Sqlmock)
		sql       string
		wantNames []string
		wantRows  [][]any
		wantNil   bool
		errMsg    string
	}{
		{
			name:    "query without connection",
			setupDB: false,
			sql:     "SELECT 1",
			errMsg:  "database connection not established",
		},
		{
			name:    "query success",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "name"}).
					AddRow(1, "alice").
					AddRow(2, []byte("bob"))
				mock.ExpectQuery("SELECT").WillReturnRows(rows)
			},
			sql:       "SELECT id, name FROM users",
			wantNames: []string{"id", "name"},
			wantRows:  [][]any{{int64(1), "alice"}, {int64(2), "bob"}},
		},
		{
			name:    "query with error",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT nope").WillReturnError(assert.AnError)
			},
			sql:    "SELECT nope",
			errMsg: "failed to execute query",
		},
		{
			name:    "non-query statement runs as exec",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE TABLE t").WillReturnResult(sqlmock.NewResult(0, 0))
			},
			sql:     "CREATE TABLE t (a INT)",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			base := &BaseSQLAdapter{}

			var mock sqlmock.Sqlmock
			if tt.setupDB {
				db, m, err := sqlmock.New()
				require.NoError(t, err)
				defer func() { _ = db.Close() }()
				mock = m

				if tt.setupMock != nil {
					tt.setupMock(mock)
				}
				base.DB = db
			}

			f, err := base.QueryFrame(ctx, tt.sql)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Nil(t, f)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			require.NoError(t, mock.ExpectationsWereMet())
			if tt.wantNil {
				assert.Nil(t, f)
				return
			}
			assert.Equal(t, tt.wantNames, f.Names())
			assert.Equal(t, tt.wantRows, f.Rows())
		})
	}
}

func TestBaseSQLAdapter_LoadFrame(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	f := frame.MustNew(
		frame.NewColumn("a", int64(1), int64(2)),
		frame.NewColumn("b", "x", "y"),
	)

	mock.ExpectBegin()
	mock.ExpectExec(`DROP TABLE IF EXISTS "plx"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE "plx" \("a" BIGINT, "b" TEXT\)`).WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(`INSERT INTO "plx" VALUES \(\?, \?\)`)
	prep.ExpectExec().WithArgs(int64(1), "x").WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs(int64(2), "y").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	base := &BaseSQLAdapter{DB: db}
	require.NoError(t, base.LoadFrame(context.Background(), "plx", f, plainTypes{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_LoadFrameRollback(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	base := &BaseSQLAdapter{DB: db}
	err = base.LoadFrame(context.Background(), "t", frame.MustNew(frame.NewColumn("a", 1)), plainTypes{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to drop table")
	assert.NoError(t, mock.ExpectationsWereMet())

	err = base.LoadFrame(context.Background(), "t", frame.Empty(), plainTypes{})
	assert.Error(t, err)
}

func TestIsQuery(t *testing.T) {
	assert.True(t, IsQuery("  select 1"))
	assert.True(t, IsQuery("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.True(t, IsQuery("show tables"))
	assert.False(t, IsQuery("CREATE TABLE t (a INT)"))
	assert.False(t, IsQuery("insert into t values (1)"))
}

func TestDataTypeFor(t *testing.T) {
	tests := []struct {
		in   string
		want frame.DataType
		ok   bool
	}{
		{"INTEGER", frame.Int64, true},
		{"BIGINT", frame.Int64, true},
		{"DOUBLE", frame.Float64, true},
		{"DECIMAL(18,3)", frame.Float64, true},
		{"VARCHAR", frame.String, true},
		{"BOOLEAN", frame.Bool, true},
		{"DATE", frame.Date, true},
		{"TIMESTAMP WITH TIME ZONE", frame.Datetime, true},
		{"TIME", frame.Time, true},
		{"INTEGER[]", frame.List, true},
		{"INTERVAL", frame.Object, true},
		{"", frame.Null, false},
		{"GEOMETRY", frame.Null, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := DataTypeFor(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"plx"`, QuoteIdent("plx"))
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
}
