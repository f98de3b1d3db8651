package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	SessionCookie = "session"
	UserIDCookie  = "user_id"
)

// CookieOptions are the transmission flags shared by both session cookies.
type CookieOptions struct {
	Secure bool
	TTL    time.Duration
}

func setSessionCookies(c *gin.Context, opts CookieOptions, token, userID string) {
	maxAge := int(opts.TTL.Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, maxAge, "/", "", opts.Secure, true)
	c.SetCookie(UserIDCookie, userID, maxAge, "/", "", opts.Secure, true)
}

func clearSessionCookies(c *gin.Context, opts CookieOptions) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", opts.Secure, true)
	c.SetCookie(UserIDCookie, "", -1, "/", "", opts.Secure, true)
}

// SessionCookies returns the raw session token and user id cookie values.
func SessionCookies(r *http.Request) (token, userID string) {
	if ck, err := r.Cookie(SessionCookie); err == nil {
		token = ck.Value
	}
	if ck, err := r.Cookie(UserIDCookie); err == nil {
		userID = ck.Value
	}
	return token, userID
}
