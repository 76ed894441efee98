package mysql

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-mysql-org/go-mysql/client"
	gomysql "github.com/go-mysql-org/go-mysql/mysql"
	"github.com/leapstack-labs/quantdb/internal/testutil"
	"github.com/leapstack-labs/quantdb/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	mu      sync.Mutex
	queries []string
}

func (p *fakeProcessor) Query(_ context.Context, command string) (*frame.Frame, error) {
	p.mu.Lock()
	p.queries = append(p.queries, command)
	p.mu.Unlock()

	switch {
	case strings.HasPrefix(command, "bad"):
		return nil, errors.New("unrecognized command")
	case strings.HasPrefix(command, "py>None"):
		return frame.Empty("None"), nil
	}
	return frame.MustNew(
		frame.NewColumn("a", int64(1), int64(2)),
		frame.NewColumn("b", 33.5, nil),
		frame.NewColumn("ok", true, false),
	), nil
}

func newHandler(t *testing.T) (*Handler, *fakeProcessor) {
	t.Helper()
	proc := &fakeProcessor{}
	logger := testutil.NewTestLogger(t)
	return NewHandler(context.Background(), NewSession(proc, logger), logger), proc
}

// decoded parses the text rows of res the way a client does, so that the
// resultset getters can read them.
func decoded(t *testing.T, res *gomysql.Result) *gomysql.Result {
	t.Helper()
	require.NotNil(t, res)
	require.NotNil(t, res.Resultset)
	rs := res.Resultset
	rs.Values = make([][]gomysql.FieldValue, 0, len(rs.RowDatas))
	for _, rd := range rs.RowDatas {
		vals, err := rd.Parse(rs.Fields, false, nil)
		require.NoError(t, err)
		rs.Values = append(rs.Values, vals)
	}
	return res
}

func TestSession_Query(t *testing.T) {
	s := NewSession(&fakeProcessor{}, nil)
	rows, cols, err := s.Query(context.Background(), "dk>select 1", "dk>select 1", map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "ok"}, cols)
	assert.Equal(t, []any{int64(1), 33.5, true}, rows[0])

	_, _, err = s.Query(context.Background(), "bad", "bad", nil)
	assert.Error(t, err)

	assert.Equal(t, map[string]string{"col1": "TEXT", "col2": "INT"}, s.Schema()["table"])
}

func TestHandler_HandleQuery(t *testing.T) {
	h, proc := newHandler(t)

	res, err := h.HandleQuery("dk>select * from plx")
	require.NoError(t, err)
	res = decoded(t, res)
	assert.Equal(t, 2, res.RowNumber())
	assert.Equal(t, 3, res.ColumnNumber())

	a, err := res.GetInt(1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), a)

	// A column with a null is sent as text.
	b, err := res.GetString(1, 1)
	require.NoError(t, err)
	assert.Equal(t, "null", b)

	ok, err := res.GetInt(0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ok)

	assert.Equal(t, []string{"dk>select * from plx"}, proc.queries)
}

func TestHandler_HandleQueryErrors(t *testing.T) {
	h, _ := newHandler(t)
	_, err := h.HandleQuery("bad>x")
	assert.Error(t, err)

	res, err := h.HandleQuery("py>None")
	require.NoError(t, err)
	assert.Equal(t, 0, res.RowNumber())
}

func TestHandler_LocalStatements(t *testing.T) {
	h, proc := newHandler(t)

	res, err := h.HandleQuery("SET NAMES utf8mb4")
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = h.HandleQuery("select @@version_comment limit 1")
	require.NoError(t, err)
	res = decoded(t, res)
	v, err := res.GetString(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "quantdb", v)

	res, err = h.HandleQuery("SELECT @@session.auto_increment_increment AS inc, @@unknown")
	require.NoError(t, err)
	res = decoded(t, res)
	assert.Equal(t, 2, res.ColumnNumber())
	inc, err := res.GetIntByName(0, "inc")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inc)

	res, err = h.HandleQuery("SHOW DATABASES;")
	require.NoError(t, err)
	res = decoded(t, res)
	db, err := res.GetString(0, 0)
	require.NoError(t, err)
	assert.Equal(t, DatabaseName, db)

	require.NoError(t, h.UseDB("other"))
	res, err = h.HandleQuery("show tables")
	require.NoError(t, err)
	res = decoded(t, res)
	tbl, err := res.GetStringByName(0, "Tables_in_other")
	require.NoError(t, err)
	assert.Equal(t, "table", tbl)

	assert.Empty(t, proc.queries)
}

func TestHandler_HandleFieldList(t *testing.T) {
	h, _ := newHandler(t)

	fields, err := h.HandleFieldList("table", "")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "col1", string(fields[0].Name))
	assert.Equal(t, uint8(gomysql.MYSQL_TYPE_VAR_STRING), fields[0].Type)
	assert.Equal(t, uint8(gomysql.MYSQL_TYPE_LONGLONG), fields[1].Type)

	_, err = h.HandleFieldList("missing", "")
	var myErr *gomysql.MyError
	require.ErrorAs(t, err, &myErr)
	assert.Equal(t, uint16(gomysql.ER_NO_SUCH_TABLE), myErr.Code)
}

func TestServer_ClientRoundTrip(t *testing.T) {
	proc := &fakeProcessor{}
	s := NewServer(Config{Processor: proc, Password: "secret", Logger: testutil.NewTestLogger(t)})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	conn, err := client.Connect(ln.Addr().String(), "root", "secret", DatabaseName)
	require.NoError(t, err)

	res, err := conn.Execute("pl>SELECT * FROM plx")
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowNumber())
	a, err := res.GetIntByName(0, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), a)

	_, err = conn.Execute("bad")
	assert.Error(t, err)

	// The connection survives a failed command.
	res, err = conn.Execute("select @@version_comment")
	require.NoError(t, err)
	v, err := res.GetString(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "quantdb", v)

	require.NoError(t, conn.Close())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_RejectsBadPassword(t *testing.T) {
	s := NewServer(Config{Processor: &fakeProcessor{}, Password: "secret"})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.ServeListener(ctx, ln) }()

	_, err = client.Connect(ln.Addr().String(), "root", "wrong", DatabaseName)
	assert.Error(t, err)
}
