// pkg/db/db.go
package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MustConnect opens the Postgres pool backing the credential store. Fatal on
// failure: a service configured for the postgres backend cannot run without
// it.
func MustConnect(databaseURL string, log *zap.SugaredLogger) *pgxpool.Pool {
	if databaseURL == "" {
		log.Fatalw("postgres backend selected but DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		log.Fatalw("pg connect", "err", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatalw("pg ping", "err", err)
	}
	log.Infow("postgres ready", "dsn", redactDSN(databaseURL))
	return pool
}

// MustRedis opens the Redis client backing the credential store.
func MustRedis(redisURL string, log *zap.SugaredLogger) *redis.Client {
	if redisURL == "" {
		log.Fatalw("redis backend selected but REDIS_URL not set")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalw("redis parse", "err", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(context.Background()).Err(); err != nil {
		log.Fatalw("redis ping", "err", err)
	}
	log.Infow("redis ready", "addr", opts.Addr)
	return cli
}

func redactDSN(dsn string) string {
	if i := strings.Index(dsn, "@"); i > 0 {
		return "***@" + dsn[i+1:]
	}
	return dsn
}
