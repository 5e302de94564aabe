package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shop_auth/pkg/tokens"
)

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{header: "Bearer abc.def.ghi", token: "abc.def.ghi", ok: true},
		{header: "Bearer ", token: "", ok: true},
		{header: "bearer abc", ok: false},
		{header: "Basic dXNlcjpwYXNz", ok: false},
		{header: "Bearer", ok: false},
		{header: "", ok: false},
	}
	for _, tt := range tests {
		token, ok := BearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}

func newGuardedEcho(env *guardEnv) *echo.Echo {
	e := echo.New()
	whoami := func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"username": Username(c),
			"roles":    Roles(c),
			"access":   CurrentCredentials(c).AccessToken,
		})
	}
	e.GET("/me", whoami, env.guard.RequireAuth)
	e.GET("/admin", whoami, env.guard.RequireAdmin)
	e.GET("/teapot", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "short and stout")
	}, env.guard.RequireAuth)
	return e
}

func doGuarded(e *echo.Echo, path string, creds Credentials) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if creds.AccessToken != "" {
		req.Header.Set(HeaderAuthorization, "Bearer "+creds.AccessToken)
	}
	if creds.RefreshToken != "" {
		req.Header.Set(HeaderRefreshToken, creds.RefreshToken)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequireRole_PassesIdentityToHandler(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(t, tokens.RoleUser)
	e := newGuardedEcho(env)
	creds := env.pair(t)

	rec := doGuarded(e, "/me", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderAccessToken))

	var body struct {
		Username string   `json:"username"`
		Roles    []string `json:"roles"`
		Access   string   `json:"access"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "bob", body.Username)
	assert.Equal(t, []string{tokens.RoleUser}, body.Roles)
	assert.Equal(t, creds.AccessToken, body.Access)
}

func TestRequireRole_ReturnsRotatedToken(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(t, tokens.RoleUser)
	e := newGuardedEcho(env)
	creds := env.pair(t)
	env.clock.Advance(20 * time.Minute)

	rec := doGuarded(e, "/me", creds)
	require.Equal(t, http.StatusOK, rec.Code)

	rotated := rec.Header().Get(HeaderAccessToken)
	require.NotEmpty(t, rotated)
	assert.NotEqual(t, creds.AccessToken, rotated)
	assert.Contains(t, rec.Body.String(), rotated)
	assert.Equal(t, 1, env.sessions.rotateCalls)
}

func TestRequireRole_Denials(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(t, tokens.RoleUser)
	e := newGuardedEcho(env)
	creds := env.pair(t)

	tests := []struct {
		name   string
		path   string
		creds  Credentials
		status int
		code   string
	}{
		{name: "no headers", path: "/me", status: http.StatusUnauthorized, code: "missing_token"},
		{name: "no refresh", path: "/me", creds: Credentials{AccessToken: creds.AccessToken}, status: http.StatusUnauthorized, code: "missing_token"},
		{name: "not admin", path: "/admin", creds: creds, status: http.StatusForbidden, code: "insufficient_role"},
	}

	for _, tt := range tests {
		rec := doGuarded(e, tt.path, tt.creds)
		assert.Equal(t, tt.status, rec.Code, tt.name)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), tt.name)
		assert.Equal(t, tt.code, body["error"], tt.name)
	}
}

func TestRequireRole_HandlerErrorUntouched(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(t, tokens.RoleUser)
	e := newGuardedEcho(env)

	rec := doGuarded(e, "/teapot", env.pair(t))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, rec.Body.String(), "short and stout")
}

func TestRequireRole_CookieClient(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(t, tokens.RoleUser)
	e := newGuardedEcho(env)
	creds := env.pair(t)
	env.clock.Advance(16 * time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieAccessToken, Value: creds.AccessToken})
	req.AddCookie(&http.Cookie{Name: CookieRefreshToken, Value: creds.RefreshToken})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rotated := rec.Header().Get(HeaderAccessToken)
	require.NotEmpty(t, rotated)

	var found bool
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == CookieAccessToken {
			found = true
			assert.Equal(t, rotated, ck.Value)
			assert.True(t, ck.HttpOnly)
		}
	}
	assert.True(t, found)
}

func TestRequireRole_HeadersWinOverCookies(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderAuthorization, "Bearer ")
	req.AddCookie(&http.Cookie{Name: CookieAccessToken, Value: "cookie-access"})
	req.AddCookie(&http.Cookie{Name: CookieRefreshToken, Value: "cookie-refresh"})

	creds := CredentialsFromRequest(req)
	assert.Equal(t, Credentials{}, creds)
}
