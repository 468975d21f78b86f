package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bp-tracker/internal/auth"
	"bp-tracker/internal/directory"
	"bp-tracker/internal/handler"
	"bp-tracker/internal/hub"
	"bp-tracker/internal/logging"
	"bp-tracker/internal/middleware"
	"bp-tracker/internal/store"
)

type Deps struct {
	Store       store.Store
	Directory   *directory.Directory
	TokenConfig auth.TokenConfig
	Verifier    auth.CodeVerifier
	Logger      logging.Logger

	// Hub receives record events; a fresh one is created when nil.
	Hub *hub.Hub
	// LoginLimiter guards the login route; nil disables the guard.
	LoginLimiter *middleware.RateLimiter
	StaticDir    string
}

func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	if deps.Hub == nil {
		deps.Hub = hub.New()
	}
	if deps.Directory == nil {
		deps.Directory = directory.New(nil, deps.Store)
	}
	handler.RegisterValidation()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(deps.Logger.With("component", "http")))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	authHandler := &handler.AuthHandler{Verifier: deps.Verifier, TokenConfig: deps.TokenConfig, Log: deps.Logger}
	login := []gin.HandlerFunc{}
	if deps.LoginLimiter != nil {
		login = append(login, middleware.RateLimitMiddleware(deps.LoginLimiter))
	}
	r.POST("/api/auth/login", append(login, authHandler.Login)...)

	protected := r.Group("/api")
	protected.Use(middleware.RequireAuth(deps.TokenConfig, false))

	recordsHandler := &handler.RecordsHandler{Store: deps.Store, Hub: deps.Hub, Log: deps.Logger}
	protected.GET("/records", recordsHandler.List)
	protected.POST("/records", recordsHandler.Create)
	protected.DELETE("/records/:id", recordsHandler.Delete)

	usersHandler := &handler.UsersHandler{Directory: deps.Directory, Log: deps.Logger}
	protected.GET("/users", usersHandler.List)

	updatesHandler := &handler.UpdatesHandler{Hub: deps.Hub, Log: deps.Logger}
	r.GET("/api/updates", middleware.RequireAuth(deps.TokenConfig, true), updatesHandler.Serve)

	spa := &handler.SPA{Dir: deps.StaticDir}
	r.NoRoute(spa.NoRoute)

	return r
}

// DefaultLoginLimiter allows perMinute attempts per client IP.
func DefaultLoginLimiter(perMinute int) *middleware.RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return middleware.NewRateLimiter(perMinute, time.Minute)
}
