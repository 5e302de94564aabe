package middleware

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/shop_auth/pkg/middleware/auth"
	loggingmw "github.com/Skotchmaster/shop_auth/pkg/middleware/logging"
)

type Options struct {
	// AllowOrigins lists browser origins allowed to call the gateway. Empty
	// disables CORS handling.
	AllowOrigins []string
	// BodyLimit caps request bodies, e.g. "2M". Empty means no cap.
	BodyLimit string
}

// Common is the chain every gateway request passes before routing. Browsers
// must be able to read X-Access-Token, which carries a rotated access token.
func Common(l *slog.Logger, opts Options) []echo.MiddlewareFunc {
	chain := []echo.MiddlewareFunc{
		ecM.Recover(),
		loggingmw.RequestLogger(l),
		ecM.Secure(),
	}
	if len(opts.AllowOrigins) > 0 {
		chain = append(chain, ecM.CORSWithConfig(ecM.CORSConfig{
			AllowOrigins: opts.AllowOrigins,
			AllowMethods: []string{
				http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
				http.MethodPatch, http.MethodDelete,
			},
			AllowHeaders: []string{
				echo.HeaderContentType,
				auth.HeaderAuthorization,
				auth.HeaderRefreshToken,
			},
			ExposeHeaders:    []string{auth.HeaderAccessToken, echo.HeaderXRequestID},
			AllowCredentials: true,
			MaxAge:           600,
		}))
	}
	if opts.BodyLimit != "" {
		chain = append(chain, ecM.BodyLimit(opts.BodyLimit))
	}
	return chain
}
