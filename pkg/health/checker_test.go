package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(ctx context.Context) error {
	return f.err
}

func TestPoolChecker(t *testing.T) {
	assert.NoError(t, PoolChecker(fakePinger{})())
	assert.EqualError(t, PoolChecker(fakePinger{err: errors.New("down")})(), "down")
	assert.EqualError(t, PoolChecker(nil)(), "database pool is nil")
}

func TestDatabaseChecker(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	assert.NoError(t, DatabaseChecker(db)())

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.EqualError(t, DatabaseChecker(db)(), "connection refused")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseChecker_NilDB(t *testing.T) {
	assert.EqualError(t, DatabaseChecker(nil)(), "database connection is nil")
}

func TestRedisChecker(t *testing.T) {
	client, mock := redismock.NewClientMock()

	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, RedisChecker(client)())

	mock.ExpectPing().SetErr(errors.New("redis down"))
	assert.EqualError(t, RedisChecker(client)(), "redis down")

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Error(t, RedisChecker(nil)())
}

func TestFlagChecker(t *testing.T) {
	assert.NoError(t, FlagChecker("nats", func() bool { return true })())
	assert.EqualError(t, FlagChecker("nats", func() bool { return false })(), "nats not connected")
}

func TestHTTPEndpointChecker(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	check := HTTPEndpointChecker(server.URL)
	assert.NoError(t, check())

	status = http.StatusNotFound
	assert.NoError(t, check())

	status = http.StatusBadGateway
	assert.Error(t, check())
}

func TestHTTPEndpointChecker_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	assert.Error(t, HTTPEndpointChecker(url)())
}
