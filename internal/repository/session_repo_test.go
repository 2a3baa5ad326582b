package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendbot/internal/models"
)

// sessionTable stands in for the attendance_sessions table behind a
// database/sql driver, so the repository's real queries, conflict
// classification and scan code run unchanged. The insert honors the
// unique key the way ON CONFLICT DO NOTHING does: a duplicate returns
// no rows instead of an error.
type sessionTable struct {
	mu        sync.Mutex
	rows      map[string]*tableRow
	insertErr error
}

type tableRow struct {
	id            string
	userID        int64
	date          time.Time
	status        string
	checkInAt     time.Time
	checkInLat    float64
	checkInLon    float64
	checkInStatus string
	lateMinutes   int64
	checkOutAt    *time.Time
	checkOutLat   *float64
	checkOutLon   *float64
	totalHours    *float64
	createdAt     time.Time
	updatedAt     time.Time
}

func newSessionTable() *sessionTable {
	return &sessionTable{rows: make(map[string]*tableRow)}
}

func tableKey(userID int64, date time.Time) string {
	return fmt.Sprintf("%d|%s", userID, date.Format("2006-01-02"))
}

func (t *sessionTable) query(query string, args []driver.NamedValue) (driver.Rows, error) {
	switch {
	case strings.Contains(query, "INSERT INTO attendance_sessions"):
		return t.insert(args)
	case strings.Contains(query, "FROM attendance_sessions"):
		return t.selectOne(args)
	default:
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
}

func (t *sessionTable) insert(args []driver.NamedValue) (driver.Rows, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.insertErr != nil {
		return nil, t.insertErr
	}

	userID := args[1].Value.(int64)
	date := args[2].Value.(time.Time)
	key := tableKey(userID, date)
	if _, exists := t.rows[key]; exists {
		// Conflicting key: DO NOTHING yields no RETURNING row.
		return &valueRows{columns: []string{"id"}}, nil
	}

	now := time.Now().UTC()
	row := &tableRow{
		id:            args[0].Value.(string),
		userID:        userID,
		date:          date,
		status:        args[3].Value.(string),
		checkInAt:     args[4].Value.(time.Time),
		checkInLat:    args[5].Value.(float64),
		checkInLon:    args[6].Value.(float64),
		checkInStatus: args[7].Value.(string),
		lateMinutes:   args[8].Value.(int64),
		createdAt:     now,
		updatedAt:     now,
	}
	t.rows[key] = row
	return &valueRows{
		columns: []string{"id"},
		values:  [][]driver.Value{{row.id}},
	}, nil
}

func (t *sessionTable) selectOne(args []driver.NamedValue) (driver.Rows, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows := &valueRows{columns: make([]string, 15)}
	row, ok := t.rows[tableKey(args[0].Value.(int64), args[1].Value.(time.Time))]
	if !ok {
		return rows, nil
	}
	rows.values = [][]driver.Value{{
		row.id, row.userID, row.date, row.status,
		row.checkInAt, row.checkInLat, row.checkInLon, row.checkInStatus, row.lateMinutes,
		optTime(row.checkOutAt), optFloat(row.checkOutLat), optFloat(row.checkOutLon),
		optFloat(row.totalHours),
		row.createdAt, row.updatedAt,
	}}
	return rows, nil
}

func (t *sessionTable) exec(query string, args []driver.NamedValue) (driver.Result, error) {
	if !strings.Contains(query, "UPDATE attendance_sessions") {
		return nil, fmt.Errorf("unexpected exec: %s", query)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	at := args[2].Value.(time.Time)
	row, ok := t.rows[tableKey(args[0].Value.(int64), args[1].Value.(time.Time))]
	if !ok || row.status != args[6].Value.(string) || row.checkInAt.After(at) {
		return driver.RowsAffected(0), nil
	}

	lat := args[3].Value.(float64)
	lon := args[4].Value.(float64)
	hours := at.Sub(row.checkInAt).Hours()
	row.status = args[5].Value.(string)
	row.checkOutAt = &at
	row.checkOutLat = &lat
	row.checkOutLon = &lon
	row.totalHours = &hours
	row.updatedAt = time.Now().UTC()
	return driver.RowsAffected(1), nil
}

func optTime(p *time.Time) driver.Value {
	if p == nil {
		return nil
	}
	return *p
}

func optFloat(p *float64) driver.Value {
	if p == nil {
		return nil
	}
	return *p
}

// database/sql plumbing.

type tableConnector struct{ table *sessionTable }

func (c tableConnector) Connect(context.Context) (driver.Conn, error) {
	return tableConn{table: c.table}, nil
}

func (c tableConnector) Driver() driver.Driver { return tableDriver{} }

type tableDriver struct{}

func (tableDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("open via connector")
}

type tableConn struct{ table *sessionTable }

var (
	_ driver.QueryerContext = tableConn{}
	_ driver.ExecerContext  = tableConn{}
)

func (tableConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements not supported")
}

func (tableConn) Close() error { return nil }

func (tableConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c tableConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return c.table.query(query, args)
}

func (c tableConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	return c.table.exec(query, args)
}

type valueRows struct {
	columns []string
	values  [][]driver.Value
	idx     int
}

func (r *valueRows) Columns() []string { return r.columns }
func (r *valueRows) Close() error      { return nil }

func (r *valueRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}

func newSessionRepo() (*SessionRepository, *sessionTable) {
	table := newSessionTable()
	return NewSessionRepository(sql.OpenDB(tableConnector{table: table})), table
}

var testDay = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func openParams(userID int64, at time.Time) OpenSessionParams {
	return OpenSessionParams{
		UserID:        userID,
		Date:          testDay,
		At:            at,
		Latitude:      41.2995,
		Longitude:     69.2401,
		CheckInStatus: models.CheckInOnTime,
	}
}

func closeParams(userID int64, at time.Time) CloseSessionParams {
	return CloseSessionParams{
		UserID:    userID,
		Date:      testDay,
		At:        at,
		Latitude:  41.2995,
		Longitude: 69.2401,
	}
}

func TestOpenSessionCreatesRow(t *testing.T) {
	repo, _ := newSessionRepo()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 3, 5, 0, 0, time.UTC)

	id, err := repo.OpenSession(ctx, openParams(42, at))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	session, err := repo.GetSession(ctx, 42, testDay)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, id, session.ID)
	assert.Equal(t, models.SessionStatusOpen, session.Status)
	assert.Equal(t, models.CheckInOnTime, session.CheckInStatus)
	assert.False(t, session.CheckOutAt.Valid)
	assert.False(t, session.TotalHours.Valid)
}

func TestOpenSessionConflictAlreadyOpen(t *testing.T) {
	repo, _ := newSessionRepo()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)

	_, err := repo.OpenSession(ctx, openParams(42, at))
	require.NoError(t, err)

	// The duplicate insert hits the unique key, gets no row back and
	// classifies against the committed state.
	_, err = repo.OpenSession(ctx, openParams(42, at.Add(time.Hour)))
	assert.ErrorIs(t, err, ErrAlreadyOpen)
}

func TestOpenSessionConflictAlreadyClosed(t *testing.T) {
	repo, _ := newSessionRepo()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)

	_, err := repo.OpenSession(ctx, openParams(42, at))
	require.NoError(t, err)
	require.NoError(t, repo.CloseSession(ctx, closeParams(42, at.Add(9*time.Hour))))

	_, err = repo.OpenSession(ctx, openParams(42, at.Add(10*time.Hour)))
	assert.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestOpenSessionUniqueViolationClassified(t *testing.T) {
	repo, table := newSessionRepo()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)

	_, err := repo.OpenSession(ctx, openParams(42, at))
	require.NoError(t, err)

	// Some race windows surface as a 23505 error instead of a silent
	// no-row insert; the classification must be the same.
	table.insertErr = &pgconn.PgError{Code: "23505"}
	_, err = repo.OpenSession(ctx, openParams(42, at.Add(time.Hour)))
	assert.ErrorIs(t, err, ErrAlreadyOpen)

	require.NoError(t, repo.CloseSession(ctx, closeParams(42, at.Add(9*time.Hour))))
	_, err = repo.OpenSession(ctx, openParams(42, at.Add(10*time.Hour)))
	assert.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestOpenSessionOtherErrorsPropagate(t *testing.T) {
	repo, table := newSessionRepo()
	table.insertErr = errors.New("connection refused")

	_, err := repo.OpenSession(context.Background(),
		openParams(42, time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyOpen)
	assert.NotErrorIs(t, err, ErrAlreadyClosed)
}

func TestOpenSessionConcurrentWritersOneWins(t *testing.T) {
	repo, table := newSessionRepo()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)

	const writers = 16
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.OpenSession(ctx, openParams(42, at))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var opened, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			opened++
		case errors.Is(err, ErrAlreadyOpen):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, opened, "exactly one writer may create the row")
	assert.Equal(t, writers-1, conflicts)
	assert.Len(t, table.rows, 1)
}

func TestCloseSessionComputesTotals(t *testing.T) {
	repo, _ := newSessionRepo()
	ctx := context.Background()
	checkIn := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)

	_, err := repo.OpenSession(ctx, openParams(42, checkIn))
	require.NoError(t, err)
	require.NoError(t, repo.CloseSession(ctx, closeParams(42, checkIn.Add(9*time.Hour))))

	session, err := repo.GetSession(ctx, 42, testDay)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, models.SessionStatusClosed, session.Status)
	require.True(t, session.CheckOutAt.Valid)
	require.True(t, session.TotalHours.Valid)
	assert.InDelta(t, 9.0, session.TotalHours.Float64, 1e-9)
}

func TestCloseSessionNoOpenSession(t *testing.T) {
	repo, _ := newSessionRepo()

	err := repo.CloseSession(context.Background(),
		closeParams(42, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)))
	assert.ErrorIs(t, err, ErrNoOpenSession)
}

func TestCloseSessionAlreadyClosed(t *testing.T) {
	repo, _ := newSessionRepo()
	ctx := context.Background()
	checkIn := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)

	_, err := repo.OpenSession(ctx, openParams(42, checkIn))
	require.NoError(t, err)
	require.NoError(t, repo.CloseSession(ctx, closeParams(42, checkIn.Add(9*time.Hour))))

	err = repo.CloseSession(ctx, closeParams(42, checkIn.Add(10*time.Hour)))
	assert.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestCloseSessionBeforeCheckIn(t *testing.T) {
	repo, _ := newSessionRepo()
	ctx := context.Background()
	checkIn := time.Date(2024, 1, 1, 4, 0, 0, 0, time.UTC)

	_, err := repo.OpenSession(ctx, openParams(42, checkIn))
	require.NoError(t, err)

	err = repo.CloseSession(ctx, closeParams(42, checkIn.Add(-time.Hour)))
	assert.ErrorIs(t, err, ErrCheckOutBeforeCheckIn)

	// The guarded update must not have touched the row.
	session, err := repo.GetSession(ctx, 42, testDay)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, models.SessionStatusOpen, session.Status)
}

func TestGetSessionAbsent(t *testing.T) {
	repo, _ := newSessionRepo()

	session, err := repo.GetSession(context.Background(), 42, testDay)
	require.NoError(t, err)
	assert.Nil(t, session)
}
