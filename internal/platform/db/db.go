package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"backoffice/internal/platform/config"
)

type Pool = pgxpool.Pool

func Connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	if poolCfg.MaxConns <= 0 {
		poolCfg.MaxConns = 10
	}
	if poolCfg.MinConns < 0 || poolCfg.MinConns > poolCfg.MaxConns {
		poolCfg.MinConns = 0
	}
	return pgxpool.NewWithConfig(ctx, poolCfg)
}
