package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_auth/gateway/internal/config"
	"github.com/Skotchmaster/shop_auth/gateway/internal/httpserver"
	"github.com/Skotchmaster/shop_auth/gateway/internal/middleware"
	"github.com/Skotchmaster/shop_auth/pkg/authclient"
	pkgconfig "github.com/Skotchmaster/shop_auth/pkg/config"
	"github.com/Skotchmaster/shop_auth/pkg/logging"
	"github.com/Skotchmaster/shop_auth/pkg/middleware/auth"
	"github.com/Skotchmaster/shop_auth/pkg/tokens"
)

func main() {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		slog.Error("load_env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	l := logging.New(cfg.LogLevel, cfg.LogFormat).With("service", cfg.ServiceName)
	slog.SetDefault(l)

	codec, err := tokens.NewCodec(tokens.Config{Secret: cfg.JWTSecret})
	if err != nil {
		l.Error("codec", "error", err)
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	if err := httpserver.Register(e, &httpserver.Deps{
		AuthURL:   cfg.AuthURL,
		Upstreams: cfg.Upstreams,
		Guard:     auth.NewInterceptor(codec, authclient.NewClient(cfg.AuthURL)),
		Logger:    l,
		HTTP: middleware.Options{
			AllowOrigins: cfg.CORSOrigins,
			BodyLimit:    cfg.BodyLimit,
		},
	}); err != nil {
		l.Error("register_routes", "error", err)
		os.Exit(1)
	}

	go func() {
		l.Info("http_listen", "addr", cfg.ListenAddr, "upstreams", len(cfg.Upstreams))
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		l.Error("shutdown", "error", err)
	}
}
