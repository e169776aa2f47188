// Package auth resolves the caller's user id for the study endpoints.
//
// A request is authenticated by a bearer token listed in the configured
// token map, or, when a trusted header is configured, by the user id in that
// header. The resolved id is opaque to the rest of the service.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/fyrsmithlabs/campusd/internal/config"
	"github.com/fyrsmithlabs/campusd/internal/logging"
	"github.com/labstack/echo/v4"
)

// contextKey is the type for context keys to avoid collisions.
type contextKey string

// userIDKey is the Echo context key holding the authenticated user id.
const userIDKey contextKey = "authenticated_user_id"

// UnauthorizedMessage is returned with every 401.
const UnauthorizedMessage = "Could not validate credentials"

const bearerPrefix = "bearer "

// Middleware returns an Echo middleware that authenticates requests against
// cfg and rejects the rest with 401. With neither tokens nor a header
// configured every request is rejected.
func Middleware(cfg config.AuthConfig) echo.MiddlewareFunc {
	tokens := make(map[string]string, len(cfg.Tokens))
	for token, user := range cfg.Tokens {
		if token != "" && user != "" {
			tokens[token] = user
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := lookupToken(tokens, bearerToken(c.Request()))
			if !ok && cfg.Header != "" {
				userID = strings.TrimSpace(c.Request().Header.Get(cfg.Header))
				ok = userID != ""
			}
			if !ok {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				return echo.NewHTTPError(http.StatusUnauthorized, UnauthorizedMessage)
			}

			c.Set(string(userIDKey), userID)
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithUserID(req.Context(), userID)))
			return next(c)
		}
	}
}

// UserID returns the id set by Middleware.
func UserID(c echo.Context) (string, bool) {
	id, ok := c.Get(string(userIDKey)).(string)
	return id, ok && id != ""
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get(echo.HeaderAuthorization)
	if len(h) < len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(h[len(bearerPrefix):])
}

// lookupToken compares against every configured token in constant time.
func lookupToken(tokens map[string]string, token string) (string, bool) {
	if token == "" {
		return "", false
	}
	var (
		match string
		found bool
	)
	for t, user := range tokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			match, found = user, true
		}
	}
	return match, found
}
