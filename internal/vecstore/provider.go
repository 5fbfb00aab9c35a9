package vecstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/kbase/db"
	"github.com/koopa0/kbase/internal/config"
)

// Provider lazily constructs and memoizes the process-wide connection
// pool. The first caller to need the store pays for migrations and the
// connection handshake; every later caller reuses the same handle. There
// is no teardown beyond Close at process exit.
type Provider struct {
	cfg    *config.Config
	logger *slog.Logger

	once sync.Once
	pool *pgxpool.Pool
	err  error
}

// NewProvider creates a Provider. Nothing connects until Pool is called.
func NewProvider(cfg *config.Config, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{cfg: cfg, logger: logger}
}

// Pool returns the shared connection pool, constructing it on first use.
// Construction failures are memoized: a misconfigured process fails every
// call fast instead of re-dialing.
func (p *Provider) Pool(ctx context.Context) (*pgxpool.Pool, error) {
	p.once.Do(func() {
		p.pool, p.err = p.connect(ctx)
	})
	return p.pool, p.err
}

// Store returns a Store over the shared pool, constructing the pool if
// needed.
func (p *Provider) Store(ctx context.Context) (*Store, error) {
	pool, err := p.Pool(ctx)
	if err != nil {
		return nil, err
	}
	return New(NewPgxQuerier(pool), p.cfg.VectorMinSimilarity, p.logger), nil
}

// Close releases the pool if it was ever constructed.
func (p *Provider) Close() {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("database pool closed")
	}
}

// connect validates connection settings, runs migrations, and builds the
// pool. Missing required settings fail immediately rather than hanging in
// a dial loop.
func (p *Provider) connect(ctx context.Context) (*pgxpool.Pool, error) {
	switch {
	case p.cfg.PostgresHost == "":
		return nil, fmt.Errorf("%w: host cannot be empty", config.ErrInvalidPostgresHost)
	case p.cfg.PostgresDBName == "":
		return nil, fmt.Errorf("%w: database name cannot be empty", config.ErrInvalidPostgresDBName)
	case p.cfg.PostgresPort < 1 || p.cfg.PostgresPort > 65535:
		return nil, fmt.Errorf("%w: got %d", config.ErrInvalidPostgresPort, p.cfg.PostgresPort)
	}

	if err := db.Migrate(p.cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(p.cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	p.logger.Debug("database pool ready",
		"host", p.cfg.PostgresHost,
		"database", p.cfg.PostgresDBName)
	return pool, nil
}
