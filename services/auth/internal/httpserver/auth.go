package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_auth/pkg/autherr"
	"github.com/Skotchmaster/shop_auth/pkg/logging"
	"github.com/Skotchmaster/shop_auth/pkg/middleware/auth"
	"github.com/Skotchmaster/shop_auth/pkg/tokens"
	"github.com/Skotchmaster/shop_auth/services/auth/internal/service"
	"github.com/Skotchmaster/shop_auth/services/auth/internal/transport"
	"github.com/Skotchmaster/shop_auth/services/auth/internal/util"
)

type AuthHTTP struct {
	Svc   *service.AuthService
	Codec *tokens.Codec
}

func fail(l *slog.Logger, event string, err error) error {
	status := autherr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		l.Error(event, "status", status, "error", err)
	} else {
		l.Warn(event, "status", status, "reason", autherr.Code(err))
	}
	return auth.HTTPError(err)
}

// adminFail answers 404 for a missing target user; on the admin routes the
// caller is already authenticated.
func adminFail(l *slog.Logger, event string, err error) error {
	if errors.Is(err, autherr.ErrIdentityNotFound) {
		l.Warn(event, "status", http.StatusNotFound)
		he := auth.HTTPError(err)
		he.Code = http.StatusNotFound
		return he
	}
	return fail(l, event, err)
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid body", autherr.ErrValidation)
	}
	return c.Validate(req)
}

func sessionResponse(c echo.Context, res *service.SessionTokens) error {
	auth.SetSessionCookies(c, res.AccessToken, res.AccessExpiresAt, res.RefreshToken, res.RefreshExpiresAt)
	return c.JSON(http.StatusOK, transport.LoginResult{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		AccessExp:    res.AccessExpiresAt.Unix(),
		RefreshExp:   res.RefreshExpiresAt.Unix(),
		Roles:        res.Roles,
		IsAdmin:      slices.Contains(res.Roles, tokens.RoleAdmin),
	})
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req transport.RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return fail(l, "register_error", err)
	}

	if err := h.Svc.Register(ctx, service.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}); err != nil {
		return fail(l, "register_error", err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"username": service.NormalizeUsername(req.Username),
		"status":   "verification_sent",
	})
}

func (h *AuthHTTP) Verify(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_verify")

	var req transport.VerifyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return fail(l, "verify_error", err)
	}

	res, err := h.Svc.VerifyRegistration(ctx, req.Username, req.Code)
	if err != nil {
		return fail(l, "verify_error", err)
	}
	l.Info("verify_successful")
	return sessionResponse(c, res)
}

func (h *AuthHTTP) ResendCode(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_resend")

	var req transport.ResendRequest
	if err := bindAndValidate(c, &req); err != nil {
		return fail(l, "resend_error", err)
	}
	if err := h.Svc.ResendVerificationCode(ctx, req.Username); err != nil {
		return fail(l, "resend_error", err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"status": "verification_sent"})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req transport.LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return fail(l, "login_error", err)
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		return fail(l, "login_failed", err)
	}
	l.Info("login_successful")
	return sessionResponse(c, res)
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	creds := auth.CredentialsFromRequest(c.Request())
	if creds.RefreshToken == "" {
		return fail(l, "refresh_failed", autherr.ErrMissingToken)
	}

	access, err := h.Svc.RotateAccessToken(ctx, creds.RefreshToken)
	if err != nil {
		return fail(l, "refresh_failed", err)
	}
	claims, err := h.Codec.Parse(access)
	if err != nil {
		return fail(l, "refresh_failed", err)
	}

	if _, cerr := c.Cookie(auth.CookieRefreshToken); cerr == nil {
		c.SetCookie(auth.CreateCookie(auth.CookieAccessToken, access, "/", claims.ExpiresAt.Time))
	}
	return c.JSON(http.StatusOK, transport.RefreshResult{
		AccessToken: access,
		AccessExp:   claims.ExpiresAt.Unix(),
	})
}

func (h *AuthHTTP) Validate(c echo.Context) error {
	creds := auth.CredentialsFromRequest(c.Request())
	valid := h.Svc.ValidateTokenPair(c.Request().Context(), creds.AccessToken, creds.RefreshToken)
	return c.JSON(http.StatusOK, transport.ValidateResult{Valid: valid})
}

func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	creds := auth.CredentialsFromRequest(c.Request())
	if creds.AccessToken == "" {
		return fail(l, "logout_failed", autherr.ErrMissingToken)
	}

	if err := h.Svc.LogoutByAccessToken(ctx, creds.AccessToken); err != nil {
		return fail(l, "logout_failed", err)
	}
	auth.ClearSessionCookies(c)

	l.Info("successful_logout")
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_me")

	user, err := h.Svc.Me(ctx, auth.Username(c))
	if err != nil {
		return fail(l, "me_failed", err)
	}
	return c.JSON(http.StatusOK, transport.NewUserView(user))
}

func (h *AuthHTTP) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_list_users")

	var q transport.ListUsersQuery
	if err := bindAndValidate(c, &q); err != nil {
		return fail(l, "list_users_failed", err)
	}
	page := util.Paginate(q.Page, q.Size)

	users, total, err := h.Svc.ListUsers(ctx, page.Offset, page.Size)
	if err != nil {
		return fail(l, "list_users_failed", err)
	}

	items := make([]transport.UserView, 0, len(users))
	for i := range users {
		items = append(items, transport.NewUserView(&users[i]))
	}
	return c.JSON(http.StatusOK, transport.UserList{Items: items, Total: total, Page: page.Page, Size: page.Size})
}

func (h *AuthHTTP) SetRole(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_set_role", "admin", auth.Username(c))

	var req transport.SetRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return fail(l, "set_role_failed", err)
	}
	username := c.Param("username")
	if err := h.Svc.SetRole(ctx, username, req.Role); err != nil {
		return adminFail(l, "set_role_failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHTTP) RevokeSession(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_revoke_session", "admin", auth.Username(c))

	if err := h.Svc.Logout(ctx, c.Param("username")); err != nil {
		return adminFail(l, "revoke_session_failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}
