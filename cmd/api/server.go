package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/testprep-api/internal/config"
	"github.com/yourusername/testprep-api/internal/handler"
	"github.com/yourusername/testprep-api/internal/middleware"
	"go.uber.org/fx"
)

func NewGinEngine(cfg *config.Config) *gin.Engine {
	isProduction := gin.Mode() == gin.ReleaseMode

	router := gin.New()
	router.Use(middleware.RequestLogger())
	router.Use(gin.Recovery())

	// Production trusts no proxy headers; development trusts localhost.
	trusted := []string{"127.0.0.1", "::1"}
	if isProduction {
		trusted = nil
	}
	if err := router.SetTrustedProxies(trusted); err != nil {
		log.Warn().Err(err).Msg("failed to set trusted proxies")
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	return router
}

type routeParams struct {
	fx.In

	Router      *gin.Engine
	Config      *config.Config
	Auth        *middleware.AuthMiddleware
	RateLimiter *middleware.RateLimiter
	AuthH       *handler.AuthHandler
	SessionH    *handler.SessionHandler
	UserH       *handler.UserHandler
	HealthH     *handler.HealthHandler
	AdminH      *handler.AdminHandler
}

// RegisterRoutes wires every API route onto the engine.
func RegisterRoutes(p routeParams) {
	router, requireAuth := p.Router, p.Auth.RequireAuth()
	limits := p.Config.RateLimit

	router.GET("/health", p.HealthH.Health)

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth", p.RateLimiter.LimitByIP(middleware.AuthIPRateLimitConfig(limits)))
		{
			authGroup.POST("/signup", p.RateLimiter.Limit(middleware.AuthRateLimitConfig(limits)), p.AuthH.Signup)
			authGroup.POST("/login", p.RateLimiter.Limit(middleware.LoginRateLimitConfig(limits)), p.AuthH.Login)
			authGroup.GET("/me", requireAuth, p.AuthH.Me)
		}

		tests := api.Group("/tests", requireAuth)
		{
			tests.GET("", p.SessionH.ListTests)
			tests.POST("/start", p.SessionH.Start)

			session := tests.Group("/session/:id", middleware.ExtractUUIDParam("id", handler.ContextKeySessionID))
			{
				session.GET("", p.SessionH.Get)
				session.POST("/submit-and-finalize",
					p.RateLimiter.LimitByUser(middleware.FinalizeRateLimitConfig(limits)),
					p.SessionH.Finalize,
				)
			}
		}

		users := api.Group("/users", requireAuth)
		{
			users.GET("/leaderboard", p.UserH.GetLeaderboard)
			users.PUT("/me", p.UserH.UpdateProfile)
			users.GET("/me/results", p.UserH.ListResults)
			users.GET("/me/results/export", p.UserH.ExportResults)
			users.GET("/me/results/:resultId",
				middleware.ExtractUintParam("resultId", handler.ContextKeyResultID),
				p.UserH.GetResult,
			)
			users.POST("/me/plan", p.UserH.GeneratePlan)
			users.PUT("/me/plan", p.UserH.UpdatePlanStep)
		}

		admin := api.Group("/admin", requireAuth, p.Auth.AdminOnly())
		{
			admin.GET("/users", p.AdminH.ListUsers)
			admin.POST("/sessions/sweep", p.AdminH.SweepSessions)
		}
	}
}

// RegisterRoutesAndStartServer registers the routes and ties the HTTP server to the fx lifecycle.
func RegisterRoutesAndStartServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, p routeParams) {
	RegisterRoutes(p)

	srv := &http.Server{
		Addr:         ":" + p.Config.Server.Port,
		Handler:      p.Router,
		ReadTimeout:  time.Duration(p.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(p.Config.Server.WriteTimeout) * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info().Msgf("Starting server on port %s", p.Config.Server.Port)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("Server ListenAndServe failed")
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
