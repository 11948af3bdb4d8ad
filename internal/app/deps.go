// Package app opens the infrastructure one process mode needs and hands it
// to the microservices.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"

	"good-food/internal/common/logger"
	"good-food/internal/common/retry"
	"good-food/internal/config"
	"good-food/internal/connections/database"
	"good-food/internal/connections/kafka"
	"good-food/internal/connections/rabbitmq"
	redisconn "good-food/internal/connections/redis"
	"good-food/internal/events"
	"good-food/internal/idempotency"
	"good-food/internal/microservices/tracker/models"
	"good-food/internal/repository"
	"good-food/internal/repository/memory"
	"good-food/internal/repository/postgres"
)

const (
	dialAttempts = 10
	dialDelay    = 2 * time.Second
)

type Deps struct {
	Cfg *config.Config
	Log *logger.Logger

	Store     repository.Store
	Pool      *pgxpool.Pool
	Rabbit    *rabbitmq.Client
	Redis     *redis.Client
	Publisher events.Publisher
	Guard     idempotency.Guard
	Checks    map[string]models.HealthCheck

	closers []func()
}

// Open connects the store, the event driver and the idempotency guard.
// needRabbit forces a broker connection for modes that consume from it.
func Open(ctx context.Context, cfg *config.Config, lg *logger.Logger, needRabbit bool) (*Deps, error) {
	d := &Deps{Cfg: cfg, Log: lg, Checks: map[string]models.HealthCheck{}}
	if err := d.openStore(ctx); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.openEvents(ctx, needRabbit); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.openGuard(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Deps) openStore(ctx context.Context) error {
	switch d.Cfg.Store.Driver {
	case "memory":
		d.Store = memory.New(d.Cfg.Engine.LockTimeout)
		d.Log.Warn("memory_store_selected", map[string]any{"note": "state is lost on restart"})
		return nil
	case "postgres":
		pool, err := database.ConnectDB(ctx, d.Cfg.Database)
		if err != nil {
			return err
		}
		d.Pool = pool
		d.Store = postgres.New(pool, d.Cfg.Engine.LockTimeout)
		if d.Cfg.Store.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		d.Checks["postgres"] = pool.Ping
		d.Log.Info("db_connected", map[string]any{"host": d.Cfg.Database.Host, "database": d.Cfg.Database.Database})
		return nil
	default:
		return fmt.Errorf("unknown store driver %q", d.Cfg.Store.Driver)
	}
}

func (d *Deps) dialRabbit(ctx context.Context) error {
	if d.Rabbit != nil {
		return nil
	}
	rc := d.Cfg.RabbitMQ
	client, err := rabbitmq.DialWithRetry(ctx, rabbitmq.Config{
		Host: rc.Host, Port: rc.Port, User: rc.User, Password: rc.Password, VHost: rc.VHost,
	}, dialAttempts, dialDelay)
	if err != nil {
		return err
	}
	d.Rabbit = client
	d.closers = append(d.closers, client.Close)
	d.Checks["rabbitmq"] = func(context.Context) error { return client.Ping() }
	d.Log.Info("rabbitmq_connected", map[string]any{"host": rc.Host})
	return nil
}

func (d *Deps) openEvents(ctx context.Context, needRabbit bool) error {
	if needRabbit || d.Cfg.Events.Driver == "rabbitmq" {
		if err := d.dialRabbit(ctx); err != nil {
			return err
		}
	}
	switch d.Cfg.Events.Driver {
	case "rabbitmq":
		if err := d.Rabbit.DeclareTopic(d.Cfg.RabbitMQ.EventsExchange); err != nil {
			return fmt.Errorf("declare %s: %w", d.Cfg.RabbitMQ.EventsExchange, err)
		}
		d.Publisher = events.NewRabbitPublisher(d.Rabbit, d.Cfg.RabbitMQ.EventsExchange)
	case "kafka":
		brokers := d.Cfg.Kafka.Brokers
		d.Publisher = events.NewKafkaPublisher(kafka.NewWriter(brokers, d.Cfg.Kafka.Topic))
		d.Checks["kafka"] = func(ctx context.Context) error { return kafka.Ping(ctx, brokers) }
	default:
		d.Publisher = events.Nop{}
	}
	pub := d.Publisher
	d.closers = append(d.closers, func() {
		if err := pub.Close(); err != nil {
			d.Log.Error("publisher_close_failed", err, nil)
		}
	})
	return nil
}

func (d *Deps) openGuard(ctx context.Context) error {
	ttl := d.Cfg.Redis.IdempotencyTTL
	if d.Cfg.Redis.Addr == "" {
		d.Guard = idempotency.NewMemoryGuard(ttl)
		return nil
	}
	rdb, err := redisconn.Connect(ctx, d.Cfg.Redis)
	if err != nil {
		return err
	}
	d.Redis = rdb
	d.closers = append(d.closers, func() { _ = rdb.Close() })
	d.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	d.Guard = idempotency.NewRedisGuard(rdb, ttl)
	return nil
}

func (d *Deps) RetryPolicy() retry.Policy {
	return retry.Policy{Attempts: d.Cfg.Engine.RetryAttempts, Initial: d.Cfg.Engine.RetryInitial}
}

// Close releases everything in reverse order of opening; the store (and
// with it the pool) goes last.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
	if d.Store != nil {
		d.Store.Close()
		d.Store = nil
	}
}
