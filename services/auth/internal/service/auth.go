package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/shop_auth/pkg/hash"
	"github.com/Skotchmaster/shop_auth/pkg/keylock"
	"github.com/Skotchmaster/shop_auth/pkg/mail"
	"github.com/Skotchmaster/shop_auth/pkg/tokens"
	"github.com/Skotchmaster/shop_auth/services/auth/internal/models"
)

const (
	DefaultVerificationTTL = 15 * time.Minute
	MinPasswordLen         = 8
)

type CredentialStore interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	RegisterUser(ctx context.Context, u *models.User) error
	SetVerificationCode(ctx context.Context, userID uuid.UUID, code string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, userID uuid.UUID) error
	SetRole(ctx context.Context, username, role string) error
	ListUsers(ctx context.Context, offset, limit int) ([]models.User, int64, error)
}

type TokenRegistry interface {
	SaveTokenPair(ctx context.Context, pair *models.TokenPair) error
	FindTokenPair(ctx context.Context, userID uuid.UUID) (*models.TokenPair, error)
	ReplaceAccessToken(ctx context.Context, userID uuid.UUID, refreshToken, accessToken string) error
	DeleteTokenPair(ctx context.Context, userID uuid.UUID) error
}

type CredentialEncoder interface {
	Encode(password string) (string, error)
	Verify(hash, password string) bool
}

type Mailer interface {
	SendVerificationCode(ctx context.Context, to string, vc mail.VerificationCode) error
}

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type Deps struct {
	Users    CredentialStore
	Sessions TokenRegistry
	Codec    *tokens.Codec

	Hasher CredentialEncoder
	Mailer Mailer
	Events Publisher
	Locks  keylock.Locker

	VerificationTTL time.Duration
	Clock           func() time.Time
}

type AuthService struct {
	users    CredentialStore
	sessions TokenRegistry
	codec    *tokens.Codec
	hasher   CredentialEncoder
	mailer   Mailer
	events   Publisher
	locks    keylock.Locker

	verificationTTL time.Duration
	now             func() time.Time
}

func New(d Deps) *AuthService {
	s := &AuthService{
		users:           d.Users,
		sessions:        d.Sessions,
		codec:           d.Codec,
		hasher:          d.Hasher,
		mailer:          d.Mailer,
		events:          d.Events,
		locks:           d.Locks,
		verificationTTL: d.VerificationTTL,
		now:             d.Clock,
	}
	if s.hasher == nil {
		s.hasher = hash.BcryptEncoder{}
	}
	if s.mailer == nil {
		s.mailer = mail.LogSender{}
	}
	if s.locks == nil {
		s.locks = keylock.NewLocal()
	}
	if s.verificationTTL <= 0 {
		s.verificationTTL = DefaultVerificationTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SessionTokens is what a client gets after login or verification.
type SessionTokens struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Roles            []string
}

func (s *AuthService) clock() time.Time {
	return s.now().UTC()
}

func NormalizeUsername(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}

// identityFor maps the stored role to the roles put into tokens. Admins also
// hold USER so that user routes accept them.
func identityFor(u *models.User) tokens.Identity {
	roles := []string{tokens.RoleUser}
	if u.Role == models.RoleAdmin {
		roles = append(roles, tokens.RoleAdmin)
	}
	return tokens.Identity{Username: u.Username, Roles: roles}
}

// StoredRole converts a wire role ("ADMIN", "admin") to the stored form.
func StoredRole(role string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case models.RoleUser:
		return models.RoleUser, true
	case models.RoleAdmin:
		return models.RoleAdmin, true
	default:
		return "", false
	}
}
