package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"good-food/internal/common/retry"
	"good-food/internal/config"
)

func ConnectDB(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	const (
		maxRetries = 10
		retryDelay = 2 * time.Second
		pingTTL    = 5 * time.Second
	)

	var pool *pgxpool.Pool
	err = retry.Connect(ctx, maxRetries, retryDelay, func() error {
		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return err
		}
		pctx, cancel := context.WithTimeout(ctx, pingTTL)
		defer cancel()
		if err := p.Ping(pctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	return pool, nil
}
