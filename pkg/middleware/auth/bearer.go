package auth

import "strings"

const (
	HeaderAuthorization = "Authorization"
	HeaderRefreshToken  = "Refresh-Token"
	// HeaderAccessToken carries a rotated access token back to the client.
	HeaderAccessToken = "X-Access-Token"

	bearerPrefix = "Bearer "
)

// BearerToken returns what follows the case-sensitive "Bearer " prefix. The
// token may be empty; ok is false only when the prefix is absent.
func BearerToken(header string) (token string, ok bool) {
	return strings.CutPrefix(header, bearerPrefix)
}
