package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/internal/model"
	"taskboard/pkg/logger"
)

// UserIDKey is the gin context key the session middleware stores the
// authenticated user id under.
const UserIDKey = "user_id"

// CurrentUserID returns the user id set by the session middleware.
func CurrentUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// requestLogger logs receipt of op and returns the trace-scoped logger the
// handler uses for the rest of the request.
func requestLogger(c *gin.Context, log *zap.Logger, op string, fields ...zap.Field) *zap.Logger {
	l := logger.WithTrace(c.Request.Context(), log).With(fields...)
	l.Info(op + " request received")
	return l
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// statusFor maps service errors onto HTTP status codes and the message the
// client may see. Anything unrecognised is a 500 with a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, validationMessage(err)
	case errors.Is(err, model.ErrDuplicateEmail):
		return http.StatusBadRequest, model.ErrDuplicateEmail.Error()
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusUnauthorized, model.ErrInvalidCredentials.Error()
	case errors.Is(err, model.ErrUnauthenticated):
		return http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "Task not found"
	}
	return http.StatusInternalServerError, "An internal error occurred"
}

func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), model.ErrValidation.Error()+": ")
	if msg == "" {
		return "Invalid request"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// respondError logs err and writes the mapped envelope. Server-side errors are
// logged at Error, client mistakes at Warn.
func respondError(c *gin.Context, log *zap.Logger, op string, err error) {
	status, msg := statusFor(err)
	l := logger.WithTrace(c.Request.Context(), log)
	if status >= http.StatusInternalServerError {
		l.Error(op+" failed", zap.Error(err))
	} else {
		l.Warn(op+" rejected", zap.Int("status", status), zap.String("reason", msg))
	}
	fail(c, status, msg)
}
