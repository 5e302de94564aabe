package tokens

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Skotchmaster/shop_auth/pkg/autherr"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour

	MinSecretLen = 32
	MaxLeeway    = time.Minute
)

var ErrWeakSecret = errors.New("jwt secret must be at least 32 bytes")

type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Leeway is added to exp before comparing with the clock. Zero means strict.
	Leeway time.Duration
	Clock  func() time.Time
}

// Codec issues and reads HS256 tokens. It holds no mutable state and is safe
// for concurrent use.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	leeway     time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < MinSecretLen {
		return nil, ErrWeakSecret
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, fmt.Errorf("access ttl %s must be shorter than refresh ttl %s", cfg.AccessTTL, cfg.RefreshTTL)
	}
	if cfg.Leeway < 0 || cfg.Leeway > MaxLeeway {
		return nil, fmt.Errorf("leeway %s out of range [0, %s]", cfg.Leeway, MaxLeeway)
	}
	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &Codec{
		secret:     slices.Clone(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		leeway:     cfg.Leeway,
		now:        now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

func (c *Codec) TTL(kind Kind) time.Duration {
	if kind == KindRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

func (c *Codec) Issue(identity Identity, kind Kind) (string, error) {
	if identity.Username == "" {
		return "", fmt.Errorf("issue token: empty username")
	}
	if !kind.Valid() {
		return "", fmt.Errorf("issue token: unknown kind %q", kind)
	}

	now := c.now()
	claims := Claims{
		Roles: slices.Clone(identity.Roles),
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.TTL(kind))),
		},
	}
	if claims.Roles == nil {
		claims.Roles = []string{}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Parse checks the signature and the claim shape. Expiry is not checked here.
func (c *Codec) Parse(token string) (*Claims, error) {
	var claims Claims
	_, err := c.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", autherr.ErrMalformedToken, err)
	}
	if claims.Subject == "" || claims.ExpiresAt == nil || !claims.Kind.Valid() {
		return nil, fmt.Errorf("%w: incomplete claims", autherr.ErrMalformedToken)
	}
	return &claims, nil
}

func (c *Codec) Expired(claims *Claims) bool {
	return !c.now().Before(claims.ExpiresAt.Time.Add(c.leeway))
}

func (c *Codec) IsExpired(token string) (bool, error) {
	claims, err := c.Parse(token)
	if err != nil {
		return false, err
	}
	return c.Expired(claims), nil
}

func (c *Codec) ExtractUsername(token string) (string, error) {
	claims, err := c.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (c *Codec) ExtractRoles(token string) ([]string, error) {
	claims, err := c.Parse(token)
	if err != nil {
		return nil, err
	}
	return claims.Roles, nil
}

func (c *Codec) ExtractKind(token string) (Kind, error) {
	claims, err := c.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.Kind, nil
}

func (c *Codec) MatchesIdentity(token string, identity Identity) bool {
	claims, err := c.Parse(token)
	if err != nil {
		return false
	}
	return claims.Subject == identity.Username && !c.Expired(claims)
}
