package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Skotchmaster/shop_auth/pkg/autherr"
	"github.com/Skotchmaster/shop_auth/pkg/hash"
	"github.com/Skotchmaster/shop_auth/pkg/logging"
	"github.com/Skotchmaster/shop_auth/pkg/metrics"
	"github.com/Skotchmaster/shop_auth/pkg/tokens"
	"github.com/Skotchmaster/shop_auth/services/auth/internal/models"
)

// dummyHash is compared against when the username is unknown, so both login
// failures cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() string {
	h, _ := hash.HashPassword("shop-auth-dummy-password")
	return h
})

func (s *AuthService) Login(ctx context.Context, username, password string) (*SessionTokens, error) {
	username = NormalizeUsername(username)
	l := logging.FromContext(ctx).With("svc", "auth.login", "username", username)

	if username == "" || password == "" {
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("username and password are required: %w", autherr.ErrValidation)
	}

	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, autherr.ErrIdentityNotFound) {
			s.hasher.Verify(dummyHash(), password)
			l.Warn("login_failed", "status", 401, "reason", "invalid username or password")
			metrics.LoginAttempts.WithLabelValues("invalid").Inc()
			return nil, autherr.ErrInvalidCredentials
		}
		l.Error("login_failed", "status", 500, "error", err)
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, err
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "invalid username or password")
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		return nil, autherr.ErrInvalidCredentials
	}
	if !user.Verified {
		l.Warn("login_failed", "status", 403, "reason", "not verified")
		metrics.LoginAttempts.WithLabelValues("unverified").Inc()
		return nil, autherr.ErrNotVerified
	}

	res, err := s.startSession(ctx, user)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, err
	}
	l.Info("login_successful")
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.publish(ctx, EventUserLoggedIn, username)
	return res, nil
}

// startSession issues a fresh pair and makes it the user's only pair.
func (s *AuthService) startSession(ctx context.Context, user *models.User) (*SessionTokens, error) {
	identity := identityFor(user)

	unlock, err := s.locks.Lock(ctx, user.Username)
	if err != nil {
		return nil, fmt.Errorf("lock identity: %w", err)
	}
	defer unlock()

	access, err := s.codec.Issue(identity, tokens.KindAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.Issue(identity, tokens.KindRefresh)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	res := &SessionTokens{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(s.codec.TTL(tokens.KindAccess)),
		RefreshExpiresAt: now.Add(s.codec.TTL(tokens.KindRefresh)),
		Roles:            identity.Roles,
	}
	if err := s.sessions.SaveTokenPair(ctx, &models.TokenPair{
		UserID:           user.ID,
		AccessToken:      access,
		RefreshToken:     refresh,
		RefreshExpiresAt: res.RefreshExpiresAt,
	}); err != nil {
		return nil, fmt.Errorf("save token pair: %w", err)
	}
	return res, nil
}

// RotateAccessToken mints a new access token for a live refresh token. Roles
// come from the store, not from the refresh token.
func (s *AuthService) RotateAccessToken(ctx context.Context, refreshToken string) (string, error) {
	l := logging.FromContext(ctx).With("svc", "auth.rotate")

	claims, err := s.codec.Parse(refreshToken)
	if err != nil {
		return "", s.rotationFailed(l, err)
	}
	if s.codec.Expired(claims) {
		return "", s.rotationFailed(l, autherr.ErrTokenExpired)
	}
	if claims.Kind != tokens.KindRefresh {
		return "", s.rotationFailed(l, autherr.ErrWrongTokenKind)
	}
	l = l.With("username", claims.Subject)

	user, err := s.users.FindUserByUsername(ctx, claims.Subject)
	if err != nil {
		return "", s.rotationFailed(l, err)
	}

	access, err := s.replaceAccess(ctx, user, refreshToken)
	if err != nil {
		return "", s.rotationFailed(l, err)
	}

	l.Info("access_token_rotated")
	metrics.Rotations.WithLabelValues("success").Inc()
	s.publish(ctx, EventAccessTokenRotated, user.Username)
	return access, nil
}

// replaceAccess is the locked part of a rotation.
func (s *AuthService) replaceAccess(ctx context.Context, user *models.User, refreshToken string) (string, error) {
	unlock, err := s.locks.Lock(ctx, user.Username)
	if err != nil {
		return "", fmt.Errorf("lock identity: %w", err)
	}
	defer unlock()

	access, err := s.codec.Issue(identityFor(user), tokens.KindAccess)
	if err != nil {
		return "", err
	}
	if err := s.sessions.ReplaceAccessToken(ctx, user.ID, refreshToken, access); err != nil {
		return "", err
	}
	return access, nil
}

func (s *AuthService) rotationFailed(l *slog.Logger, err error) error {
	l.Warn("rotation_failed", "status", autherr.HTTPStatus(err), "reason", autherr.Code(err), "error", err)
	metrics.Rotations.WithLabelValues(autherr.Code(err)).Inc()
	return err
}

// Logout removes the user's token pair. Without a pair it does nothing.
func (s *AuthService) Logout(ctx context.Context, username string) error {
	return s.logout(ctx, NormalizeUsername(username), "")
}

// LogoutByAccessToken ends the session the access token belongs to. A token
// that a later login or rotation has replaced cannot end the newer session.
func (s *AuthService) LogoutByAccessToken(ctx context.Context, accessToken string) error {
	claims, err := s.codec.Parse(accessToken)
	if err != nil {
		return err
	}
	if claims.Kind != tokens.KindAccess {
		return autherr.ErrWrongTokenKind
	}
	if s.codec.Expired(claims) {
		return autherr.ErrTokenExpired
	}
	return s.logout(ctx, claims.Subject, accessToken)
}

func (s *AuthService) logout(ctx context.Context, username, accessToken string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout", "username", username)

	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		l.Warn("logout_failed", "status", autherr.HTTPStatus(err), "error", err)
		return err
	}

	deleted, err := s.deletePair(ctx, user, accessToken)
	if err != nil {
		if errors.Is(err, autherr.ErrTokensNotValid) {
			l.Warn("logout_failed", "status", 401, "reason", "access token superseded")
		} else {
			l.Error("logout_failed", "status", 500, "reason", "cannot delete token pair", "error", err)
		}
		return err
	}
	l.Info("successful_logout")
	if deleted {
		s.publish(ctx, EventUserLoggedOut, user.Username)
	}
	return nil
}

// deletePair is the locked part of a logout. With a non-empty accessToken the
// pair is only deleted while that token is still the registered one.
func (s *AuthService) deletePair(ctx context.Context, user *models.User, accessToken string) (bool, error) {
	unlock, err := s.locks.Lock(ctx, user.Username)
	if err != nil {
		return false, fmt.Errorf("lock identity: %w", err)
	}
	defer unlock()

	pair, err := s.sessions.FindTokenPair(ctx, user.ID)
	if errors.Is(err, autherr.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if accessToken != "" && pair.AccessToken != accessToken {
		return false, autherr.ErrTokensNotValid
	}
	if err := s.sessions.DeleteTokenPair(ctx, user.ID); err != nil {
		return false, err
	}
	return true, nil
}

// ValidateTokenPair reports whether access and refresh belong together and
// are the user's registered pair. The access token only has to equal the
// stored one while it is unexpired; an expired one is about to be rotated.
func (s *AuthService) ValidateTokenPair(ctx context.Context, accessToken, refreshToken string) bool {
	l := logging.FromContext(ctx).With("svc", "auth.validate")

	refresh, err := s.codec.Parse(refreshToken)
	if err != nil || refresh.Kind != tokens.KindRefresh {
		l.Debug("pair_invalid", "reason", "bad refresh token")
		return false
	}
	access, err := s.codec.Parse(accessToken)
	if err != nil || access.Kind != tokens.KindAccess {
		l.Debug("pair_invalid", "reason", "bad access token")
		return false
	}
	if access.Subject != refresh.Subject {
		l.Debug("pair_invalid", "reason", "subject mismatch")
		return false
	}

	user, err := s.users.FindUserByUsername(ctx, refresh.Subject)
	if err != nil {
		return false
	}
	pair, err := s.sessions.FindTokenPair(ctx, user.ID)
	if err != nil {
		return false
	}
	if pair.RefreshToken != refreshToken {
		l.Debug("pair_invalid", "reason", "session superseded", "username", user.Username)
		return false
	}
	if !s.codec.Expired(access) && pair.AccessToken != accessToken {
		l.Debug("pair_invalid", "reason", "access token superseded", "username", user.Username)
		return false
	}
	return true
}

func (s *AuthService) Me(ctx context.Context, username string) (*models.User, error) {
	return s.users.FindUserByUsername(ctx, NormalizeUsername(username))
}

func (s *AuthService) ListUsers(ctx context.Context, offset, limit int) ([]models.User, int64, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.users.ListUsers(ctx, offset, limit)
}

// SetRole changes the stored role. Tokens already issued keep their roles;
// the next rotation picks up the new one.
func (s *AuthService) SetRole(ctx context.Context, username, role string) error {
	stored, ok := StoredRole(role)
	if !ok {
		return fmt.Errorf("unknown role %q: %w", role, autherr.ErrValidation)
	}
	username = NormalizeUsername(username)
	if err := s.users.SetRole(ctx, username, stored); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("role_changed", "svc", "auth.set_role", "username", username, "role", stored)
	return nil
}
