package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTimeout = 2 * time.Second

// Pinger is anything that can be pinged with a context, such as *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolChecker returns a health check function for a pgx pool
func PoolChecker(pool Pinger) func() error {
	return func() error {
		if pool == nil {
			return errors.New("database pool is nil")
		}
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()
		return pool.Ping(ctx)
	}
}

// DatabaseChecker returns a health check function for PostgreSQL database
func DatabaseChecker(db *sql.DB) func() error {
	return func() error {
		if db == nil {
			return errors.New("database connection is nil")
		}
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()
		return db.PingContext(ctx)
	}
}

// RedisChecker returns a health check function for Redis
func RedisChecker(client *redis.Client) func() error {
	return func() error {
		if client == nil {
			return errors.New("redis client is nil")
		}
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()
		return client.Ping(ctx).Err()
	}
}

// FlagChecker adapts a boolean probe, such as an event bus connection state.
func FlagChecker(name string, healthy func() bool) func() error {
	return func() error {
		if !healthy() {
			return fmt.Errorf("%s not connected", name)
		}
		return nil
	}
}

// HTTPEndpointChecker returns a health check function for HTTP endpoints.
// Any status below 500 counts as reachable.
func HTTPEndpointChecker(url string) func() error {
	client := &http.Client{Timeout: defaultTimeout}
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return nil
	}
}
