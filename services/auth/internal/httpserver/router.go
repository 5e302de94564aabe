package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/Skotchmaster/shop_auth/pkg/db"
	"github.com/Skotchmaster/shop_auth/pkg/middleware/auth"
	"github.com/Skotchmaster/shop_auth/pkg/tokens"
)

type Deps struct {
	AuthHandler *AuthHTTP
	Guard       *auth.Interceptor
	DB          *gorm.DB
}

func Register(e *echo.Echo, d *Deps) {
	e.Validator = NewRequestValidator()

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.DB != nil {
			if err := db.Ping(c.Request().Context(), d.DB); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "db_unavailable"})
			}
		}
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/register", d.AuthHandler.Register)
	e.POST("/verify", d.AuthHandler.Verify)
	e.POST("/verify/resend", d.AuthHandler.ResendCode)
	e.POST("/login", d.AuthHandler.Login)
	e.POST("/refresh", d.AuthHandler.Refresh)
	e.POST("/validate", d.AuthHandler.Validate)
	e.POST("/logout", d.AuthHandler.LogOut)

	private := e.Group("")
	private.Use(d.Guard.RequireRole(tokens.RoleUser))
	private.GET("/me", d.AuthHandler.Me)

	admin := e.Group("/admin")
	admin.Use(d.Guard.RequireAdmin)
	admin.GET("/users", d.AuthHandler.ListUsers)
	admin.PATCH("/users/:username/role", d.AuthHandler.SetRole)
	admin.DELETE("/users/:username/session", d.AuthHandler.RevokeSession)
}
