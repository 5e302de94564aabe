package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Skotchmaster/shop_auth/pkg/autherr"
	"github.com/Skotchmaster/shop_auth/pkg/logging"
	"github.com/Skotchmaster/shop_auth/pkg/metrics"
	"github.com/Skotchmaster/shop_auth/pkg/tokens"
)

type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Operation is a privileged call that needs an authenticated caller.
type Operation func(ctx context.Context, creds Credentials) error

// Sessions is the part of the auth service the interceptor relies on. Both the
// in-process service and authclient.Client implement it.
type Sessions interface {
	ValidateTokenPair(ctx context.Context, accessToken, refreshToken string) bool
	RotateAccessToken(ctx context.Context, refreshToken string) (string, error)
}

type Interceptor struct {
	codec    *tokens.Codec
	sessions Sessions
}

func NewInterceptor(codec *tokens.Codec, sessions Sessions) *Interceptor {
	return &Interceptor{codec: codec, sessions: sessions}
}

// Guard wraps op so it only runs for a consistent token pair whose refresh
// token carries role. An expired access token is rotated first and op sees
// the new one; the refresh token is passed through unchanged. An empty role
// only requires authentication.
func (i *Interceptor) Guard(role string, op Operation) Operation {
	return func(ctx context.Context, creds Credentials) error {
		l := logging.FromContext(ctx).With("svc", "auth.guard", "role", role)

		if creds.AccessToken == "" || creds.RefreshToken == "" {
			return i.deny(l, role, autherr.ErrMissingToken)
		}

		refresh, err := i.codec.Parse(creds.RefreshToken)
		if err != nil {
			return i.deny(l, role, err)
		}
		if i.codec.Expired(refresh) {
			return i.deny(l, role, autherr.ErrBothTokensExpired)
		}

		if role != "" && !refresh.HasRole(role) {
			return i.deny(l, role, autherr.ErrInsufficientRole)
		}

		if !i.sessions.ValidateTokenPair(ctx, creds.AccessToken, creds.RefreshToken) {
			return i.deny(l, role, autherr.ErrTokensNotValid)
		}

		expired, err := i.codec.IsExpired(creds.AccessToken)
		if err != nil {
			return i.deny(l, role, err)
		}
		if !expired {
			metrics.GuardDecisions.WithLabelValues(role, "pass").Inc()
			return op(ctx, creds)
		}

		access, err := i.sessions.RotateAccessToken(ctx, creds.RefreshToken)
		if err != nil {
			l.Warn("guard_rotation_failed", "username", refresh.Subject, "error", err)
			metrics.GuardDecisions.WithLabelValues(role, "rotation_failed").Inc()
			return fmt.Errorf("rotate access token: %w", err)
		}
		l.Info("guard_access_rotated", "username", refresh.Subject)
		metrics.GuardDecisions.WithLabelValues(role, "rotated").Inc()

		creds.AccessToken = access
		return op(ctx, creds)
	}
}

func (i *Interceptor) deny(l *slog.Logger, role string, err error) error {
	l.Warn("guard_denied", "status", autherr.HTTPStatus(err), "reason", autherr.Code(err))
	metrics.GuardDecisions.WithLabelValues(role, autherr.Code(err)).Inc()
	return err
}
