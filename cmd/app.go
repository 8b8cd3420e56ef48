package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/events"
	"github.com/frahmantamala/care-payments/internal/notification"
	"github.com/frahmantamala/care-payments/internal/observability"
	"github.com/frahmantamala/care-payments/internal/paymentgateway"
	"github.com/frahmantamala/care-payments/internal/payout"
	payoutpostgres "github.com/frahmantamala/care-payments/internal/payout/postgres"
	payoutredis "github.com/frahmantamala/care-payments/internal/payout/redis"
	"github.com/frahmantamala/care-payments/pkg/logger"
)

// Dependencies holds the process-wide resources every command builds on.
type Dependencies struct {
	Config    *internal.Config
	Logger    *slog.Logger
	DB        *sqlx.DB
	Gorm      *gorm.DB
	Redis     *goredis.Client
	Gateway   paymentgateway.Gateway
	Bus       *events.EventBus
	Forwarder *events.Forwarder
	Location  *time.Location

	shutdownTracer observability.ShutdownFunc
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.L()

	loc, err := config.Payout.Location()
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{Config: config, Logger: log, Location: loc}

	deps.shutdownTracer, err = observability.InitTracer(ctx, config.Observability.Tracing, config.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	deps.DB, err = initDB(config.Database)
	if err != nil {
		deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.Gorm, err = initGorm(deps.DB, config.Env)
	if err != nil {
		deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	gateway, err := paymentgateway.New(paymentgateway.ConfigFrom(config.Processor), log)
	if err != nil {
		deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize processor gateway: %w", err)
	}
	deps.Gateway = paymentgateway.NewTracedGateway(gateway, nil)

	if config.Redis.Enabled {
		deps.Redis = goredis.NewClient(&goredis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		if err := deps.Redis.Ping(ctx).Err(); err != nil {
			deps.Close(ctx)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	if err := deps.initEventBus(); err != nil {
		deps.Close(ctx)
		return nil, err
	}

	log.Info("dependencies initialized",
		"env", config.Env,
		"processor", config.Processor.Driver,
		"redis", config.Redis.Enabled,
		"broker", config.Broker.Enabled,
		"mailer", config.Mailer.Enabled,
		"tracing", config.Observability.Tracing.Enabled)

	return deps, nil
}

// initEventBus builds the in-process bus and attaches the audit log, the broker
// forwarder and the operator mailer.
func (d *Dependencies) initEventBus() error {
	d.Bus = events.NewEventBus(d.Logger)
	d.Bus.Subscribe(events.Wildcard, auditHandler(d.Logger))

	if d.Config.Broker.Enabled {
		fwd, err := events.DialForwarder(d.Config.Broker.URL, d.Config.Broker.Exchange, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to broker: %w", err)
		}
		d.Forwarder = fwd
		d.Bus.Subscribe(events.Wildcard, fwd.Handle)
	}

	if d.Config.Mailer.Enabled {
		client, err := notification.NewSMTPClient(d.Config.Mailer)
		if err != nil {
			return err
		}
		notification.NewNotifier(client, d.Config.Mailer.From, d.Config.Mailer.OpsAddress, d.Logger).Register(d.Bus)
	}
	return nil
}

func auditHandler(log *slog.Logger) events.Handler {
	return func(_ context.Context, event events.Event) error {
		log.Info("audit event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	}
}

// RunLocker picks the Redis lock when Redis is configured so concurrent processes
// exclude each other, and the in-process lock otherwise.
func (d *Dependencies) RunLocker() payout.RunLocker {
	if d.Redis != nil {
		return payoutredis.NewRunLock(d.Redis, payoutredis.DefaultKey, d.Config.Payout.LockTTL, d.Logger)
	}
	return payout.NewLocalRunLock()
}

func (d *Dependencies) PayoutEngine() *payout.Engine {
	return payout.NewEngine(
		payoutpostgres.NewEarningsRepository(d.Gorm),
		d.Gateway,
		d.RunLocker(),
		d.Bus,
		payout.Config{
			Location:    d.Location,
			Concurrency: d.Config.Payout.Concurrency,
			Currency:    d.Config.Processor.Currency,
		},
		d.Logger,
	)
}

// Close drains pending events and releases connections in reverse order of creation.
func (d *Dependencies) Close(ctx context.Context) {
	if d.Bus != nil {
		d.Bus.Drain()
	}
	if d.Forwarder != nil {
		if err := d.Forwarder.Close(); err != nil {
			d.Logger.Error("broker close error", "error", err)
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("redis close error", "error", err)
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			d.Logger.Error("database close error", "error", err)
		}
	}
	if d.shutdownTracer != nil {
		if err := d.shutdownTracer(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.Logger.Error("tracer shutdown error", "error", err)
		}
	}
}

func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbConn, nil
}

// initGorm shares the sqlx connection pool with gorm.
func initGorm(db *sqlx.DB, env string) (*gorm.DB, error) {
	level := gormlogger.Warn
	if env == "development" {
		level = gormlogger.Info
	}
	return gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
}
