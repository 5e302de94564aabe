package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/Skotchmaster/shop_auth/pkg/config"
	"github.com/Skotchmaster/shop_auth/pkg/tokens"
)

// Upstream is a backend mounted at /api/v1/<Name>.
type Upstream struct {
	Name  string
	URL   string
	Admin bool
}

type Config struct {
	config.Base

	ListenAddr string
	AuthURL    string
	JWTSecret  []byte
	Upstreams  []Upstream

	CORSOrigins []string
	BodyLimit   string
}

func Load() (*Config, error) {
	cfg := &Config{
		Base:       config.LoadBase("gateway"),
		ListenAddr: config.EnvDefault("GATEWAY_ADDR", ":8080"),
		AuthURL:    os.Getenv("AUTH_URL"),
		JWTSecret:  []byte(os.Getenv("JWT_SECRET")),

		CORSOrigins: config.CSV(os.Getenv("GATEWAY_CORS_ORIGINS")),
		BodyLimit:   config.EnvDefault("GATEWAY_BODY_LIMIT", "2M"),
	}
	if cfg.AuthURL == "" {
		return nil, fmt.Errorf("missing required env AUTH_URL")
	}
	if err := config.RequireMinLen(cfg.JWTSecret, tokens.MinSecretLen, "JWT_SECRET"); err != nil {
		return nil, err
	}

	admin := map[string]bool{}
	for _, name := range config.CSV(os.Getenv("GATEWAY_ADMIN_UPSTREAMS")) {
		admin[name] = true
	}
	ups, err := ParseUpstreams(os.Getenv("GATEWAY_UPSTREAMS"))
	if err != nil {
		return nil, err
	}
	for i := range ups {
		ups[i].Admin = admin[ups[i].Name]
	}
	cfg.Upstreams = ups
	return cfg, nil
}

// ParseUpstreams reads "catalog=http://catalog:8082,cart=http://cart:8083".
func ParseUpstreams(v string) ([]Upstream, error) {
	var out []Upstream
	for _, item := range config.CSV(v) {
		name, url, ok := strings.Cut(item, "=")
		name, url = strings.TrimSpace(name), strings.TrimSpace(url)
		if !ok || name == "" || url == "" || strings.Contains(name, "/") {
			return nil, fmt.Errorf("bad upstream %q, want name=url", item)
		}
		if name == "auth" {
			return nil, fmt.Errorf("upstream name %q is reserved", name)
		}
		out = append(out, Upstream{Name: name, URL: url})
	}
	return out, nil
}
