package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"taskboard/internal/handler"
	"taskboard/pkg/otel"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	authHandler *handler.AuthHandler,
	taskHandler *handler.TaskHandler,
	auth handler.AuthService,
	store Pinger,
	logger *zap.Logger,
) *Router {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otel.Middleware())
	r.Use(TraceMiddleware())
	r.Use(AccessLogMiddleware(logger))

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			logger.Warn("Readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store_not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Pages. Rendering lives in the frontend; these only carry the guard.
	pages := r.Group("/")
	pages.Use(PageGuard(auth))
	{
		page := func(name string) gin.HandlerFunc {
			return func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"page": name})
			}
		}
		pages.GET("/login", page("login"))
		pages.GET("/signup", page("signup"))
		pages.GET("/dashboard", page("dashboard"))
		pages.GET("/dashboard/:view", page("dashboard"))
	}

	// Public
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/me", authHandler.Me)
	}

	// Protected
	tasks := r.Group("/tasks")
	tasks.Use(handler.RequireSession(auth, logger))
	{
		tasks.GET("", taskHandler.ListTasks)
		tasks.POST("", taskHandler.CreateTask)
		tasks.PUT("", taskHandler.UpdateTask)
		tasks.DELETE("", taskHandler.DeleteTask)
		tasks.POST("/important", taskHandler.ToggleImportant)
		tasks.GET("/stats", taskHandler.Stats)
	}

	return &Router{Engine: r}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.Engine.ServeHTTP(w, req)
}
