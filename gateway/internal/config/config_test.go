package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUpstreams(t *testing.T) {
	t.Parallel()

	ups, err := ParseUpstreams("catalog=http://catalog:8082, cart = http://cart:8083")
	require.NoError(t, err)
	assert.Equal(t, []Upstream{
		{Name: "catalog", URL: "http://catalog:8082"},
		{Name: "cart", URL: "http://cart:8083"},
	}, ups)

	ups, err = ParseUpstreams("")
	require.NoError(t, err)
	assert.Empty(t, ups)

	for _, bad := range []string{"catalog", "=http://x", "a/b=http://x", "auth=http://x"} {
		_, err := ParseUpstreams(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("AUTH_URL", "http://auth:8081")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("GATEWAY_ADDR", "")
	t.Setenv("GATEWAY_UPSTREAMS", "catalog=http://catalog:8082,reports=http://reports:8090")
	t.Setenv("GATEWAY_ADMIN_UPSTREAMS", "reports")
	t.Setenv("GATEWAY_CORS_ORIGINS", "https://shop.example, https://admin.shop.example")
	t.Setenv("GATEWAY_BODY_LIMIT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	require.Len(t, cfg.Upstreams, 2)
	assert.False(t, cfg.Upstreams[0].Admin)
	assert.True(t, cfg.Upstreams[1].Admin)
	assert.Equal(t, []string{"https://shop.example", "https://admin.shop.example"}, cfg.CORSOrigins)
	assert.Equal(t, "2M", cfg.BodyLimit)

	t.Setenv("JWT_SECRET", "short")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("AUTH_URL", "")
	_, err = Load()
	assert.Error(t, err)
}
