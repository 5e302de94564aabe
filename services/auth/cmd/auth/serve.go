package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	pkgconfig "github.com/Skotchmaster/shop_auth/pkg/config"
	"github.com/Skotchmaster/shop_auth/pkg/db"
	"github.com/Skotchmaster/shop_auth/pkg/keylock"
	"github.com/Skotchmaster/shop_auth/pkg/logging"
	"github.com/Skotchmaster/shop_auth/pkg/mail"
	"github.com/Skotchmaster/shop_auth/pkg/middleware/auth"
	loggingmw "github.com/Skotchmaster/shop_auth/pkg/middleware/logging"
	"github.com/Skotchmaster/shop_auth/pkg/mykafka"
	"github.com/Skotchmaster/shop_auth/pkg/tokens"
	"github.com/Skotchmaster/shop_auth/services/auth/internal/config"
	"github.com/Skotchmaster/shop_auth/services/auth/internal/httpserver"
	"github.com/Skotchmaster/shop_auth/services/auth/internal/maintenance"
	"github.com/Skotchmaster/shop_auth/services/auth/internal/models"
	"github.com/Skotchmaster/shop_auth/services/auth/internal/repo"
	"github.com/Skotchmaster/shop_auth/services/auth/internal/service"
)

// setup loads configuration, installs the logger and opens the database.
func setup(ctx context.Context, cmd *cli.Command) (config.ServiceConfig, *slog.Logger, *gorm.DB, error) {
	if err := pkgconfig.LoadDotEnv(cmd.StringSlice("env-file")...); err != nil {
		return config.ServiceConfig{}, nil, nil, fmt.Errorf("load env files: %w", err)
	}
	cfg := config.Load()

	l := logging.New(cfg.LogLevel, cfg.LogFormat).With("service", cfg.ServiceName)
	slog.SetDefault(l)

	if err := cfg.Validate(); err != nil {
		return cfg, l, nil, err
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	if err != nil {
		return cfg, l, nil, fmt.Errorf("db init error: %w", err)
	}
	return cfg, l, gdb, nil
}

func runMigrate(ctx context.Context, cmd *cli.Command) error {
	_, l, gdb, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	if err := models.AutoMigrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	l.Info("migrate_done")
	return nil
}

func runCleanup(ctx context.Context, cmd *cli.Command) error {
	_, l, gdb, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	cleaner := maintenance.NewCleaner(repo.New(gdb), maintenance.WithLogger(l))
	_, err = cleaner.RunOnce(ctx)
	return err
}

func runServe(ctx context.Context, cmd *cli.Command) (err error) {
	cfg, l, gdb, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, db.Close(gdb)) }()

	if err := models.AutoMigrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	codec, err := tokens.NewCodec(cfg.Codec())
	if err != nil {
		return err
	}

	var locks keylock.Locker = keylock.NewLocal()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { err = multierr.Append(err, rdb.Close()) }()
		if perr := rdb.Ping(ctx).Err(); perr != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, perr)
		}
		locks = keylock.NewRedis(rdb)
		l.Info("identity_locks", "backend", "redis", "addr", cfg.RedisAddr)
	}

	var mailer service.Mailer = mail.LogSender{}
	if cfg.MailEnabled() {
		sender, serr := mail.NewSender(cfg.SMTP)
		if serr != nil {
			return serr
		}
		mailer = sender
	} else {
		l.Warn("smtp_disabled", "reason", "SMTP_HOST not set, verification codes go to the log")
	}

	store := repo.New(gdb)
	deps := service.Deps{
		Users:           store,
		Sessions:        store,
		Codec:           codec,
		Mailer:          mailer,
		Locks:           locks,
		VerificationTTL: cfg.VerificationTTL,
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer := mykafka.NewProducer(cfg.KafkaBrokers)
		defer func() { err = multierr.Append(err, producer.Close()) }()
		deps.Events = producer
	}
	svc := service.New(deps)

	cleaner := maintenance.NewCleaner(store, maintenance.WithSchedule(cfg.CleanupSchedule), maintenance.WithLogger(l))
	if err := cleaner.Start(); err != nil {
		return err
	}
	defer func() { <-cleaner.Stop().Done() }()

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(loggingmw.RequestLogger(l))

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: svc, Codec: codec},
		Guard:       auth.NewInterceptor(codec, svc),
		DB:          gdb,
	})

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		l.Info("http_listen", "addr", cfg.Addr)
		if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("echo start: %w", err)
		}
	case <-sigCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		l.Error("echo_shutdown", "error", err)
	}
	l.Info("stopped")
	return nil
}
