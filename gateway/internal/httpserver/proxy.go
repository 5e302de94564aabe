package httpserver

import (
	"context"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_auth/pkg/logging"
	"github.com/Skotchmaster/shop_auth/pkg/middleware/auth"
)

const (
	HeaderUser  = "X-User"
	HeaderRoles = "X-User-Roles"
)

// identity is what the guard established for a request, handed to the
// Director through the request context.
type identity struct {
	creds    auth.Credentials
	username string
	roles    []string
}

type identityKey struct{}

// proxies builds reverse proxies that share one connection pool.
type proxies struct {
	transport http.RoundTripper
}

func newProxies() *proxies {
	return &proxies{transport: &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}}
}

// open forwards to target without any caller identity. Client supplied
// identity headers are still dropped. The auth service behind it rotates
// tokens itself, so its X-Access-Token passes through.
func (ps *proxies) open(target, stripPrefix string) (echo.HandlerFunc, error) {
	p, err := ps.reverseProxy(target, stripPrefix)
	if err != nil {
		return nil, err
	}
	return func(c echo.Context) error {
		p.ServeHTTP(c.Response(), c.Request())
		return nil
	}, nil
}

// guarded forwards to target on behalf of the caller the auth guard admitted.
// Upstreams receive the pair the guard settled on, so never an access token
// the gateway has already replaced, plus the caller's username and roles.
func (ps *proxies) guarded(target, stripPrefix string) (echo.HandlerFunc, error) {
	p, err := ps.reverseProxy(target, stripPrefix)
	if err != nil {
		return nil, err
	}
	// behind the guard only the gateway hands out rotated access tokens
	p.ModifyResponse = func(resp *http.Response) error {
		resp.Header.Del(auth.HeaderAccessToken)
		return nil
	}
	return func(c echo.Context) error {
		id := identity{
			creds:    auth.CurrentCredentials(c),
			username: auth.Username(c),
			roles:    auth.Roles(c),
		}
		req := c.Request()
		p.ServeHTTP(c.Response(), req.WithContext(context.WithValue(req.Context(), identityKey{}, id)))
		return nil
	}, nil
}

func (ps *proxies) reverseProxy(target, stripPrefix string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}

	p := httputil.NewSingleHostReverseProxy(u)
	p.Transport = ps.transport

	rewrite := p.Director
	p.Director = func(req *http.Request) {
		proto := "http"
		if req.TLS != nil {
			proto = "https"
		}
		host := req.Host

		rewrite(req)
		if stripPrefix != "" {
			req.URL.Path = strings.TrimPrefix(req.URL.Path, stripPrefix)
			req.URL.RawPath = strings.TrimPrefix(req.URL.RawPath, stripPrefix)
		}
		if req.Header.Get("X-Forwarded-Proto") == "" {
			req.Header.Set("X-Forwarded-Proto", proto)
		}
		if req.Header.Get("X-Forwarded-Host") == "" && host != "" {
			req.Header.Set("X-Forwarded-Host", host)
		}

		forwardIdentity(req)
	}
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logging.FromContext(r.Context()).Error("proxy_error", "upstream", target, "error", err)
		w.WriteHeader(http.StatusBadGateway)
	}
	p.FlushInterval = 100 * time.Millisecond
	return p, nil
}

func forwardIdentity(req *http.Request) {
	req.Header.Del(HeaderUser)
	req.Header.Del(HeaderRoles)
	req.Header.Del(auth.HeaderAccessToken)

	id, ok := req.Context().Value(identityKey{}).(identity)
	if !ok {
		return
	}
	if id.creds.AccessToken != "" {
		req.Header.Set(auth.HeaderAuthorization, "Bearer "+id.creds.AccessToken)
		req.Header.Set(auth.HeaderRefreshToken, id.creds.RefreshToken)
	}
	if id.username != "" {
		req.Header.Set(HeaderUser, id.username)
		req.Header.Set(HeaderRoles, strings.Join(id.roles, ","))
	}
}
