package journal

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Recorder = (*Store)(nil)
	_ Recorder = Noop{}
)

func TestNoopDiscards(t *testing.T) {
	var rec Recorder = Noop{}
	assert.False(t, rec.Enabled())
	require.NoError(t, rec.Record(context.Background(), Entry{GroupID: 1}))

	entries, err := rec.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInsertBindsEveryColumn(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := Entry{
		ID:         "id-1",
		OperatorID: 7,
		GroupID:    -100,
		ThreadID:   3,
		MediaKind:  "photo",
		Status:     StatusFailed,
		Error:      "boom",
		CreatedAt:  at,
	}

	query, args, err := sqlx.Named(insertEntry, e)
	require.NoError(t, err)
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	assert.Contains(t, query, "VALUES ($1, $2, $3, $4, $5, $6, $7, $8)")
	assert.Equal(t, []any{"id-1", int64(7), int64(-100), 3, "photo", StatusFailed, "boom", at}, args)
}

// recordingConn is a database/sql driver connection that records statements
// and serves canned rows for queries.
type recordingConn struct {
	mu      sync.Mutex
	execs   []stmtCall
	queries []stmtCall
	columns []string
	rows    [][]driver.Value
	err     error
}

type stmtCall struct {
	query string
	args  []driver.Value
}

func (c *recordingConn) Connect(context.Context) (driver.Conn, error) { return c, nil }
func (c *recordingConn) Driver() driver.Driver                        { return recordingDriver{c} }
func (c *recordingConn) Prepare(query string) (driver.Stmt, error) {
	return &recordingStmt{conn: c, query: query}, nil
}
func (c *recordingConn) Close() error              { return nil }
func (c *recordingConn) Begin() (driver.Tx, error) { return nil, errors.New("no transactions") }

type recordingDriver struct{ conn *recordingConn }

func (d recordingDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

type recordingStmt struct {
	conn  *recordingConn
	query string
}

func (s *recordingStmt) Close() error  { return nil }
func (s *recordingStmt) NumInput() int { return -1 }

func (s *recordingStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	s.conn.execs = append(s.conn.execs, stmtCall{query: s.query, args: args})
	if s.conn.err != nil {
		return nil, s.conn.err
	}
	return driver.RowsAffected(1), nil
}

func (s *recordingStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	s.conn.queries = append(s.conn.queries, stmtCall{query: s.query, args: args})
	if s.conn.err != nil {
		return nil, s.conn.err
	}
	return &cannedRows{columns: s.conn.columns, rows: s.conn.rows}, nil
}

type cannedRows struct {
	columns []string
	rows    [][]driver.Value
}

func (r *cannedRows) Columns() []string { return r.columns }
func (r *cannedRows) Close() error      { return nil }

func (r *cannedRows) Next(dest []driver.Value) error {
	if len(r.rows) == 0 {
		return io.EOF
	}
	copy(dest, r.rows[0])
	r.rows = r.rows[1:]
	return nil
}

func newTestStore(t *testing.T, conn *recordingConn) *Store {
	t.Helper()
	db := sqlx.NewDb(sql.OpenDB(conn), "postgres")
	t.Cleanup(func() { _ = db.Close() })
	s := NewStore(db)
	s.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("X", 3600)) }
	return s
}

func TestStoreRecordFillsIDAndTime(t *testing.T) {
	conn := &recordingConn{}
	s := newTestStore(t, conn)

	require.NoError(t, s.Record(context.Background(), Entry{OperatorID: 7, GroupID: -100, ThreadID: 3, Status: StatusSent}))

	require.Len(t, conn.execs, 1)
	call := conn.execs[0]
	assert.Contains(t, call.query, "INSERT INTO post_journal")
	require.Len(t, call.args, 8)
	id, ok := call.args[0].(string)
	require.True(t, ok)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), call.args[1])
	assert.Equal(t, int64(-100), call.args[2])
	assert.Equal(t, int64(3), call.args[3])
	assert.Equal(t, StatusSent, call.args[5])
	assert.Equal(t, time.Date(2026, 3, 4, 4, 6, 7, 0, time.UTC), call.args[7])
}

func TestStoreRecordWrapsErrors(t *testing.T) {
	conn := &recordingConn{err: errors.New("connection reset")}
	s := newTestStore(t, conn)

	err := s.Record(context.Background(), Entry{ID: "fixed", GroupID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal: insert")
	require.Len(t, conn.execs, 1)
	assert.Equal(t, "fixed", conn.execs[0].args[0])
}

func TestStoreRecent(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	conn := &recordingConn{
		columns: []string{"id", "operator_id", "group_id", "thread_id", "media_kind", "status", "error", "created_at"},
		rows: [][]driver.Value{
			{"b", int64(7), int64(-100), int64(3), "photo", StatusSent, "", at},
			{"a", int64(7), int64(-100), int64(0), "", StatusFailed, "boom", at.Add(-time.Minute)},
		},
	}
	s := newTestStore(t, conn)

	entries, err := s.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, conn.queries, 1)
	assert.Equal(t, []driver.Value{int64(10)}, conn.queries[0].args)
	assert.Contains(t, conn.queries[0].query, "ORDER BY created_at DESC")

	require.Len(t, entries, 2)
	assert.Equal(t, Entry{ID: "b", OperatorID: 7, GroupID: -100, ThreadID: 3, MediaKind: "photo", Status: StatusSent, CreatedAt: at}, entries[0])
	assert.Equal(t, "boom", entries[1].Error)
	assert.True(t, s.Enabled())
}
