package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lucaswhitaker22/specracer-engine-go/log"
)

type PoolConfigOption func(cfg *pgxpool.Config)

// WithQueryTracer logs every statement on debug level.
func WithQueryTracer(logger *log.Logger) PoolConfigOption {
	return func(cfg *pgxpool.Config) {
		cfg.ConnConfig.Tracer = &queryTracer{log: logger}
	}
}

// InitWithURL creates and pings a connection pool for the given url.
func InitWithURL(url string, opts ...PoolConfigOption) (*pgxpool.Pool, error) {
	dbConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	for _, opt := range opts {
		opt(dbConfig)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), dbConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create the database pool: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to get a valid database connection: %w", err)
	}
	return pool, nil
}

type queryTracer struct {
	log *log.Logger
}

//nolint:whitespace // can't make both editor and linter happy
func (tracer *queryTracer) TraceQueryStart(
	ctx context.Context,
	_ *pgx.Conn,
	data pgx.TraceQueryStartData,
) context.Context {
	tracer.log.Debug("executing",
		log.String("sql", data.SQL),
		log.Any("args", data.Args))
	return ctx
}

//nolint:whitespace // can't make both editor and linter happy
func (tracer *queryTracer) TraceQueryEnd(
	_ context.Context,
	_ *pgx.Conn,
	_ pgx.TraceQueryEndData,
) {
}
