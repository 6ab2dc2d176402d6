package rest

import (
	"database/sql"

	"github.com/go-chi/chi"
	"github.com/go-redis/redis/v8"
	"github.com/thiagocrux/simcasi/internal/audit"
	"github.com/thiagocrux/simcasi/internal/auth"
	"github.com/thiagocrux/simcasi/internal/secured"
	"github.com/thiagocrux/simcasi/internal/transport/middleware"
	"github.com/thiagocrux/simcasi/internal/transport/openapi"
	"github.com/thiagocrux/simcasi/internal/transport/swagger"
	"github.com/thiagocrux/simcasi/internal/user"
	"github.com/thiagocrux/simcasi/pkg/metrics"
)

// Deps are the handlers and infrastructure the router mounts. Throttle and
// Redis are optional.
type Deps struct {
	DB             *sql.DB
	Redis          *redis.Client
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	Secured        *secured.HTTPAdapter
	Throttle       *middleware.LoginThrottle
	AuthHandler    *auth.Handler
	UserHandler    *user.Handler
	AuditHandler   *audit.Handler
}

func perms(codes ...string) []string {
	return codes
}

func RegisterAllRoutes(router *chi.Mux, deps Deps) {
	healthHandler := NewHealthHandler(deps.DB, deps.Redis)

	// Apply global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.ClientContext)
	router.Use(middleware.RecoveryMiddleware)
	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(deps.Metrics.Instrument)
	router.Use(middleware.LoggingMiddleware)

	router.Handle("/metrics", deps.Metrics.Handler())
	router.Handle("/openapi.yml", openapi.Handler())
	router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(ar chi.Router) {
			ar.Group(func(lr chi.Router) {
				if deps.Throttle != nil {
					lr.Use(deps.Throttle.Handler)
				}
				lr.Post("/login", deps.AuthHandler.Login)
			})
			ar.Post("/refresh", deps.AuthHandler.RefreshToken)
			ar.Post("/logout", deps.AuthHandler.Logout)
			ar.Post("/password/forgot", deps.AuthHandler.ForgotPassword)
			ar.Post("/password/reset", deps.AuthHandler.ResetPassword)
		})

		protect := deps.Secured.Handle

		r.Route("/users", func(ur chi.Router) {
			// any authenticated user
			ur.Get("/me", protect(nil, deps.UserHandler.GetCurrentUser))
			ur.Put("/me/password", protect(nil, deps.UserHandler.ChangeOwnPassword))

			ur.Get("/", protect(perms(auth.PermReadUser), deps.UserHandler.List))
			ur.Post("/", protect(perms(auth.PermCreateUser), deps.UserHandler.Create))
			ur.Get("/{id}", protect(perms(auth.PermReadUser), deps.UserHandler.Get))
			ur.Patch("/{id}/role", protect(perms(auth.PermUpdateUser), deps.UserHandler.UpdateRole))
			ur.Delete("/{id}", protect(perms(auth.PermDeleteUser), deps.UserHandler.Delete))
		})

		r.Get("/audit-logs", protect(perms(auth.PermReadAuditLog), deps.AuditHandler.List))
	})
}
