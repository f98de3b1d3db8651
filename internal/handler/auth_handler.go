package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/internal/model"
	"taskboard/internal/service/auth"
)

// AuthService is the part of auth.Service the HTTP layer uses.
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*model.PublicUser, error)
	Login(ctx context.Context, email, password string) (*model.PublicUser, error)
	IssueSession(ctx context.Context, userID string) (*auth.Session, error)
	Authenticate(ctx context.Context, token, userIDCookie string) (string, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, userID string) (*model.PublicUser, error)
}

type AuthHandler struct {
	auth    AuthService
	cookies CookieOptions
	logger  *zap.Logger
}

func NewAuthHandler(auth AuthService, cookies CookieOptions, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, cookies: cookies, logger: logger}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	l := requestLogger(c, h.logger, "Signup")
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, "Signup", err)
		return
	}
	if !h.startSession(c, user.ID) {
		return
	}

	l.Info("Signup: success", zap.String("user_id", user.ID))
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User created successfully",
		"userId":  user.ID,
		"user":    user,
	})
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	l := requestLogger(c, h.logger, "Login")
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, "Login", err)
		return
	}
	if !h.startSession(c, user.ID) {
		return
	}

	l.Info("Login: success", zap.String("user_id", user.ID))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"user":    user,
	})
}

func (h *AuthHandler) startSession(c *gin.Context, userID string) bool {
	sess, err := h.auth.IssueSession(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "IssueSession", err)
		return false
	}
	setSessionCookies(c, h.cookies, sess.Token, sess.UserID)
	return true
}

// Logout handles POST /auth/logout. It always clears the cookies, even when
// revoking the server-side session fails.
func (h *AuthHandler) Logout(c *gin.Context) {
	l := requestLogger(c, h.logger, "Logout")
	token, _ := SessionCookies(c.Request)
	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		l.Error("Logout: failed to revoke session", zap.Error(err))
	}
	clearSessionCookies(c, h.cookies)
	l.Info("Logout: success")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}

// Me handles GET /auth/me. Unauthenticated callers get 200 with
// success=false so the client can check its session state.
func (h *AuthHandler) Me(c *gin.Context) {
	l := requestLogger(c, h.logger, "Me")
	token, userID := SessionCookies(c.Request)
	subject, err := h.auth.Authenticate(c.Request.Context(), token, userID)
	if err == nil {
		var user *model.PublicUser
		user, err = h.auth.Me(c.Request.Context(), subject)
		if err == nil {
			l.Info("Me: success", zap.String("user_id", subject))
			c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
			return
		}
	}
	if errors.Is(err, model.ErrUnauthenticated) {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Not authenticated"})
		return
	}
	respondError(c, h.logger, "Me", err)
}

// RequireSession rejects requests without a valid signed session with 401
// and stores the session's user id for downstream handlers.
func RequireSession(auth AuthService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, userID := SessionCookies(c.Request)
		subject, err := auth.Authenticate(c.Request.Context(), token, userID)
		if err != nil {
			respondError(c, log, "Authenticate", err)
			c.Abort()
			return
		}
		c.Set(UserIDKey, subject)
		c.Next()
	}
}
