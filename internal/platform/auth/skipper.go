package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths bypass bearer authentication. Task callbacks carry their own
// HMAC signature instead.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
}

var publicPrefixes = []string{
	"/tasks/",
}

// AuthSkipper reports whether the matched route is public. Use it as
// JWTConfig.Skipper or pass it to DevAuthMiddleware.
func AuthSkipper(c echo.Context) bool {
	path := c.Path()
	if path == "" {
		path = c.Request().URL.Path
	}
	return IsPublicPath(path)
}

func IsPublicPath(path string) bool {
	if publicPaths[path] {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
