// ABOUTME: Application wiring shared by the callbridge subcommands
// ABOUTME: Opens storage, cache, processor queue and connector registry from the configuration
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harperreed/callbridge/auth"
	"github.com/harperreed/callbridge/cache"
	"github.com/harperreed/callbridge/config"
	"github.com/harperreed/callbridge/connector"
	"github.com/harperreed/callbridge/connectors/local"
	"github.com/harperreed/callbridge/db"
	"github.com/harperreed/callbridge/handlers"
	"github.com/harperreed/callbridge/metrics"
	"github.com/harperreed/callbridge/processor"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
)

// callLogStore is what the handlers and the resources need from a call log backend.
type callLogStore interface {
	handlers.CallLogStore
	handlers.CallLogLister
}

// App holds the opened collaborators of one callbridge process.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	sqlDB    *sql.DB
	pgPool   *pgxpool.Pool
	kv       *cache.KV
	natsConn *nats.Conn
	queue    processor.Queue

	Registry     *connector.Registry
	Users        *db.UserRepository
	Contacts     *db.ContactRepository
	Interactions *db.InteractionRepository
	Proxies      *db.ProxyConfigRepository
	CallLogs     callLogStore
	MessageLogs  handlers.MessageLogStore
	Notes        *cache.NoteCache
	Tasks        *cache.TaskStore
	Pipeline     *processor.Pipeline
	Metrics      *metrics.Recorder
}

// NewApp opens everything cfg points at. Close releases it again.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, logger: logger, Metrics: metrics.NewRecorder()}
	if err := a.open(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) open(ctx context.Context) error {
	sqlDB, err := db.OpenDatabase(a.cfg.Database.Path)
	if err != nil {
		return err
	}
	a.sqlDB = sqlDB
	a.Users = db.NewUserRepository(sqlDB)
	a.Contacts = db.NewContactRepository(sqlDB)
	a.Interactions = db.NewInteractionRepository(sqlDB)
	a.Proxies = db.NewProxyConfigRepository(sqlDB)

	if err := a.openLogStores(ctx); err != nil {
		return err
	}
	if err := a.openCache(); err != nil {
		return err
	}
	if err := a.openQueue(); err != nil {
		return err
	}

	a.Pipeline = processor.NewPipeline(a.Tasks, a.queue,
		processor.WithObserver(a.Metrics),
		processor.WithLogger(a.logger.With("component", "processor")),
		processor.WithRetry(processor.RetryConfig{
			MaxRetries:      a.cfg.Processors.MaxRetries,
			InitialInterval: processor.DefaultRetryConfig().InitialInterval,
			MaxInterval:     processor.DefaultRetryConfig().MaxInterval,
		}),
	)

	a.Registry = connector.NewRegistry()
	if err := local.Register(a.Registry, a.Contacts, a.Interactions); err != nil {
		return fmt.Errorf("register local connector: %w", err)
	}
	return nil
}

func (a *App) openLogStores(ctx context.Context) error {
	if a.cfg.Database.PostgresDSN == "" {
		a.CallLogs = db.NewCallLogRepository(a.sqlDB)
		a.MessageLogs = db.NewMessageLogRepository(a.sqlDB)
		return nil
	}

	pool, err := db.OpenPostgres(ctx, a.cfg.Database.PostgresDSN, 0)
	if err != nil {
		return err
	}
	a.pgPool = pool
	store, err := db.NewPostgresLogStore(pool, db.WithSchema(a.cfg.Database.PostgresSchema))
	if err != nil {
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	a.CallLogs = store.CallLogs()
	a.MessageLogs = store.MessageLogs()
	a.logger.Info("log mappings stored in postgres", "schema", a.cfg.Database.PostgresSchema)
	return nil
}

func (a *App) openCache() error {
	var (
		kv  *cache.KV
		err error
	)
	if a.cfg.Cache.InMemory {
		kv, err = cache.OpenInMemory()
	} else {
		kv, err = cache.Open(a.cfg.Cache.Dir)
	}
	if err != nil {
		return err
	}
	a.kv = kv
	a.Notes = cache.NewNoteCache(kv, a.cfg.Cache.NoteTTL)
	a.Tasks = cache.NewTaskStore(kv)
	return nil
}

func (a *App) openQueue() error {
	pc := a.cfg.Processors
	if pc.NATSURL == "" {
		a.queue = processor.NewMemoryQueue(pc.QueueSize, pc.Workers)
		return nil
	}
	conn, err := nats.Connect(pc.NATSURL, nats.Name(config.AppName))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	a.natsConn = conn
	a.queue = processor.NewNATSQueue(conn, pc.Subject, pc.QueueGroup, a.logger.With("component", "nats"))
	a.logger.Info("async processors use NATS", "url", pc.NATSURL, "subject", pc.Subject)
	return nil
}

// Deps assembles the handler dependencies.
func (a *App) Deps() handlers.Deps {
	return handlers.Deps{
		Registry:    a.Registry,
		Users:       a.Users,
		CallLogs:    a.CallLogs,
		MessageLogs: a.MessageLogs,
		Proxies:     a.Proxies,
		Notes:       a.Notes,
		Processors:  a.Pipeline,
		Auth:        auth.NewResolver(a.Users, auth.WithLogger(a.logger.With("component", "auth"))),
		Metrics:     a.Metrics,
		Logger:      a.logger,
		Options: handlers.Options{
			CacheFirstNote: a.cfg.Handlers.CacheFirstNote,
			MediaReaderURL: a.cfg.Handlers.MediaReaderURL,
		},
	}
}

// Close releases every opened resource, reporting all failures.
func (a *App) Close() error {
	var errs []error
	if a.queue != nil {
		errs = append(errs, a.queue.Close())
	}
	if a.natsConn != nil {
		errs = append(errs, a.natsConn.Drain())
	}
	if a.kv != nil {
		errs = append(errs, a.kv.Close())
	}
	if a.pgPool != nil {
		a.pgPool.Close()
	}
	if a.sqlDB != nil {
		errs = append(errs, a.sqlDB.Close())
	}
	return errors.Join(errs...)
}
