package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskboard/internal/handler"
)

const (
	loginPath     = "/login"
	dashboardPath = "/dashboard"
)

type PathClass int

const (
	PathOpen PathClass = iota
	PathProtected
	PathAuthEntry
)

// ClassifyPath sorts page routes into protected pages, auth entry pages
// (login and signup) and everything else.
func ClassifyPath(path string) PathClass {
	switch {
	case path == dashboardPath || strings.HasPrefix(path, dashboardPath+"/"):
		return PathProtected
	case path == loginPath || path == "/signup":
		return PathAuthEntry
	}
	return PathOpen
}

// Authenticator verifies a session token and its user id cookie.
type Authenticator interface {
	Authenticate(ctx context.Context, token, userIDCookie string) (string, error)
}

// PageGuard redirects unauthenticated visitors away from protected pages and
// authenticated ones away from login and signup. Sessions are verified, not
// just checked for presence.
func PageGuard(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		class := ClassifyPath(c.Request.URL.Path)
		if class == PathOpen {
			c.Next()
			return
		}

		token, userID := handler.SessionCookies(c.Request)
		authenticated := false
		if token != "" {
			if _, err := auth.Authenticate(c.Request.Context(), token, userID); err == nil {
				authenticated = true
			}
		}

		switch {
		case class == PathProtected && !authenticated:
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
		case class == PathAuthEntry && authenticated:
			c.Redirect(http.StatusFound, dashboardPath)
			c.Abort()
		default:
			c.Next()
		}
	}
}
