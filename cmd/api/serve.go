package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/adapter/handler"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/adapter/lock"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/adapter/logger"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/adapter/storage"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/adapter/storage/memory"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/config"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/ledger"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/notifications"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/ports"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/service"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/transfer"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/worker"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var migrate bool

	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the webhook worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Env, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if !cfg.EnvFileLoaded {
				log.Warn("no .env file found, relying on system env variables")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, log, migrate)
		},
	}

	c.Flags().BoolVar(&migrate, "migrate", false, "apply migrations before serving (Postgres only)")
	return c
}

// stores is the set of ports a backend provides.
type stores struct {
	tx          ports.Transactor
	accounts    ports.AccountRepository
	loans       ports.LoanRepository
	outbox      ports.Outbox
	jobs        ports.JobQueue
	idempotency ports.IdempotencyStore
	close       func()
}

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger, migrate bool) (*stores, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL is empty, using the in-memory store")
		m := memory.New()
		return &stores{
			tx:          m,
			accounts:    m.Accounts(),
			loans:       m.Loans(),
			outbox:      m,
			jobs:        m,
			idempotency: m,
			close:       func() {},
		}, nil
	}

	pool, err := storage.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if migrate {
		version, err := storage.Migrate(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("migrations applied", zap.Uint("version", version))
	}

	queue := storage.NewJobQueue(pool)
	return &stores{
		tx:          storage.NewTransactor(pool),
		accounts:    storage.NewAccountRepository(pool),
		loans:       storage.NewLoanRepository(pool),
		outbox:      queue,
		jobs:        queue,
		idempotency: storage.NewIdempotencyRepository(pool),
		close: func() {
			pool.Close()
			log.Info("database connection closed")
		},
	}, nil
}

func openLocker(ctx context.Context, cfg *config.Config, log *zap.Logger) (ports.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return lock.NewKeyed(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	lockOpts := lock.DefaultOptions()
	lockOpts.Expiry = cfg.LockTTL
	return lock.NewRedis(client, lockOpts, log), func() { _ = client.Close() }, nil
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger, migrate bool) error {
	st, err := openStores(ctx, cfg, log, migrate)
	if err != nil {
		return err
	}
	defer st.close()

	locker, closeLocker, err := openLocker(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLocker()

	exec := transfer.NewExecutor(st.tx, st.accounts, log)
	l := ledger.New(ledger.Deps{
		Transactor: st.tx,
		Accounts:   st.accounts,
		Loans:      st.loans,
		Transfers:  exec,
		Locker:     locker,
		Outbox:     st.outbox,
		WebhookURL: cfg.WebhookURL,
		Logger:     log,
	})

	app := handler.NewApp(handler.Deps{
		Accounts:       service.NewAccountService(st.accounts, exec, log),
		Loans:          service.NewLoanService(l),
		Idempotency:    st.idempotency,
		Locker:         locker,
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
	})

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	if cfg.WebhookURL != "" {
		if cfg.WebhookSecret == "" {
			log.Warn("WEBHOOK_SECRET is empty, webhook signatures are not secret")
		}
		d := worker.NewDispatcher(st.jobs, notifications.NewSender(cfg.WebhookSecret, log), cfg.WorkerInterval, log)
		go func() {
			defer close(workerDone)
			d.Run(workerCtx)
		}()
	} else {
		close(workerDone)
	}

	listenErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Port))
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-listenErr:
		stopWorker()
		<-workerDone
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	// Finish in-flight requests before the stores close.
	err = app.ShutdownWithTimeout(shutdownTimeout)
	stopWorker()
	<-workerDone
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}
