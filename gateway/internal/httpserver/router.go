package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_auth/gateway/internal/config"
	"github.com/Skotchmaster/shop_auth/gateway/internal/middleware"
	"github.com/Skotchmaster/shop_auth/pkg/middleware/auth"
	"github.com/Skotchmaster/shop_auth/pkg/tokens"
)

type Deps struct {
	AuthURL   string
	Upstreams []config.Upstream

	Guard  *auth.Interceptor
	Logger *slog.Logger
	HTTP   middleware.Options
}

func Register(e *echo.Echo, d *Deps) error {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, m := range middleware.Common(d.Logger, d.HTTP) {
		e.Use(m)
	}

	ps := newProxies()

	authProxy, err := ps.open(d.AuthURL, "/api/v1/auth")
	if err != nil {
		return err
	}
	e.Any("/api/v1/auth/*", authProxy)

	api := e.Group("/api/v1")
	for _, up := range d.Upstreams {
		proxy, err := ps.guarded(up.URL, "/api/v1")
		if err != nil {
			return err
		}
		role := tokens.RoleUser
		if up.Admin {
			role = tokens.RoleAdmin
		}
		guard := d.Guard.RequireRole(role)
		api.Any("/"+up.Name, proxy, guard)
		api.Any("/"+up.Name+"/*", proxy, guard)
	}

	return nil
}
