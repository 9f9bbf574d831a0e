package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route paths that bypass authentication: infrastructure
// endpoints, FHIR discovery and sign-in itself.
var publicPaths = map[string]bool{
	"/health":              true,
	"/health/store":        true,
	"/metrics":             true,
	"/fhir/metadata":       true,
	"/api/v1/auth/sign-in": true,
}

// AuthSkipper returns true for requests whose path should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given path bypasses authentication.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
