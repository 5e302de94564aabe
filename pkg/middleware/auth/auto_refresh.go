package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_auth/pkg/autherr"
	"github.com/Skotchmaster/shop_auth/pkg/tokens"
)

const (
	ctxUsername    = "username"
	ctxRoles       = "roles"
	ctxCredentials = "credentials"
)

// RequireAuth admits any caller with a valid session.
func (i *Interceptor) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return i.RequireRole("")(next)
}

func (i *Interceptor) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return i.RequireRole(tokens.RoleAdmin)(next)
}

// RequireRole runs Guard around the rest of the echo chain. Credentials come
// from "Authorization: Bearer" and "Refresh-Token", or from the session
// cookies. A rotated access token is returned in X-Access-Token (and in the
// access cookie for cookie clients).
func (i *Interceptor) RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			supplied, fromCookies := credentialsFrom(c.Request())

			reached := false
			op := i.Guard(role, func(ctx context.Context, creds Credentials) error {
				reached = true
				claims, err := i.codec.Parse(creds.AccessToken)
				if err != nil {
					return HTTPError(err)
				}
				if creds.AccessToken != supplied.AccessToken {
					c.Response().Header().Set(HeaderAccessToken, creds.AccessToken)
					if fromCookies {
						c.SetCookie(CreateCookie(CookieAccessToken, creds.AccessToken, "/", claims.ExpiresAt.Time))
					}
				}
				c.Set(ctxUsername, claims.Subject)
				c.Set(ctxRoles, claims.Roles)
				c.Set(ctxCredentials, creds)
				c.SetRequest(c.Request().WithContext(ctx))
				return next(c)
			})

			err := op(c.Request().Context(), supplied)
			if err != nil && !reached {
				if fromCookies && errors.Is(err, autherr.ErrBothTokensExpired) {
					ClearSessionCookies(c)
				}
				return HTTPError(err)
			}
			return err
		}
	}
}

// CredentialsFromRequest reads the headers, falling back to the session
// cookies when neither header is sent.
func CredentialsFromRequest(r *http.Request) Credentials {
	creds, _ := credentialsFrom(r)
	return creds
}

func credentialsFrom(r *http.Request) (Credentials, bool) {
	authz, hasAuthz := r.Header[HeaderAuthorization]
	refresh, hasRefresh := r.Header[HeaderRefreshToken]
	if hasAuthz || hasRefresh {
		var creds Credentials
		if hasAuthz {
			creds.AccessToken, _ = BearerToken(authz[0])
		}
		if hasRefresh {
			creds.RefreshToken = refresh[0]
		}
		return creds, false
	}

	var creds Credentials
	if ck, err := r.Cookie(CookieAccessToken); err == nil {
		creds.AccessToken = ck.Value
	}
	if ck, err := r.Cookie(CookieRefreshToken); err == nil {
		creds.RefreshToken = ck.Value
	}
	return creds, true
}

// HTTPError renders an auth error as {"error": code, "message": text}. Only
// the sentinel text is exposed, never wrapped details.
func HTTPError(err error) *echo.HTTPError {
	code := autherr.Code(err)
	msg := "internal error"
	if sentinel := autherr.FromCode(code); sentinel != nil {
		msg = sentinel.Error()
	}
	return echo.NewHTTPError(autherr.HTTPStatus(err), echo.Map{
		"error":   code,
		"message": msg,
	}).SetInternal(err)
}

func Username(c echo.Context) string {
	v, _ := c.Get(ctxUsername).(string)
	return v
}

func Roles(c echo.Context) []string {
	v, _ := c.Get(ctxRoles).([]string)
	return v
}

// CurrentCredentials returns the pair the guarded handler runs with, which
// holds the rotated access token if one was issued.
func CurrentCredentials(c echo.Context) Credentials {
	v, _ := c.Get(ctxCredentials).(Credentials)
	return v
}
