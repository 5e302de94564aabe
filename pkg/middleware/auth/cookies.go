package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	CookieAccessToken  = "accessToken"
	CookieRefreshToken = "refreshToken"
)

func CreateCookie(name, value, path string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func DeleteCookie(name, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetSessionCookies mirrors a token pair into cookies for browser clients.
func SetSessionCookies(c echo.Context, access string, accessExp time.Time, refresh string, refreshExp time.Time) {
	c.SetCookie(CreateCookie(CookieAccessToken, access, "/", accessExp))
	c.SetCookie(CreateCookie(CookieRefreshToken, refresh, "/", refreshExp))
}

func ClearSessionCookies(c echo.Context) {
	c.SetCookie(DeleteCookie(CookieAccessToken, "/"))
	c.SetCookie(DeleteCookie(CookieRefreshToken, "/"))
}
