// Copyright 2025 Kestrel Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Backend wraps a pgx connection pool with pgvector support registered on
// every connection.
type Backend struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// BackendOption configures a Backend.
type BackendOption func(*backendOptions)

type backendOptions struct {
	logger       *slog.Logger
	maxConns     int32
	connLifetime time.Duration
}

// WithLogger sets the logger for backend operations.
func WithLogger(logger *slog.Logger) BackendOption {
	return func(o *backendOptions) {
		o.logger = logger
	}
}

// WithMaxConns sets the maximum pool size.
func WithMaxConns(n int32) BackendOption {
	return func(o *backendOptions) {
		o.maxConns = n
	}
}

// OpenBackend connects to PostgreSQL, ensures the vector extension exists
// and applies the schema migration. The returned backend owns the pool and
// must be closed by the caller.
func OpenBackend(ctx context.Context, databaseURL string, opts ...BackendOption) (*Backend, error) {
	options := backendOptions{
		logger:       slog.Default(),
		maxConns:     10,
		connLifetime: time.Hour,
	}
	for _, opt := range opts {
		opt(&options)
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	cfg.MaxConns = options.maxConns
	cfg.MaxConnLifetime = options.connLifetime
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("enabling vector extension: %w", err)
	}

	b := &Backend{
		pool:   pool,
		logger: options.logger.With(slog.String("component", "postgres")),
	}
	if err := b.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	b.logger.Info("database backend ready", slog.Int("max_conns", int(options.maxConns)))
	return b, nil
}

// Pool exposes the underlying connection pool.
func (b *Backend) Pool() *pgxpool.Pool {
	return b.pool
}

// Close closes the connection pool.
func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}
