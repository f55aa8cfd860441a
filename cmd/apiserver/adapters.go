package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/database/neo4j"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/database/redis"
)

// Health probe adapters for the readiness endpoint.

type postgresHealthAdapter struct {
	pool *pgxpool.Pool
}

func (a *postgresHealthAdapter) Name() string { return "postgres" }

func (a *postgresHealthAdapter) Check(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

type neo4jHealthAdapter struct {
	driver *neo4j.Driver
}

func (a *neo4jHealthAdapter) Name() string { return "neo4j" }

func (a *neo4jHealthAdapter) Check(ctx context.Context) error {
	return a.driver.HealthCheck(ctx)
}

type redisHealthAdapter struct {
	client *redis.Client
}

func (a *redisHealthAdapter) Name() string { return "redis" }

func (a *redisHealthAdapter) Check(ctx context.Context) error {
	return a.client.Ping(ctx)
}
