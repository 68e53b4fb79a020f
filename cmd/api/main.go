package main

import (
	"context"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/testprep-api/internal/config"
	"github.com/yourusername/testprep-api/internal/domain/repository"
	"github.com/yourusername/testprep-api/internal/handler"
	"github.com/yourusername/testprep-api/internal/middleware"
	"github.com/yourusername/testprep-api/internal/pkg/ai"
	pgRepo "github.com/yourusername/testprep-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/testprep-api/internal/repository/redis"
	"github.com/yourusername/testprep-api/internal/service"
	"github.com/yourusername/testprep-api/internal/service/catalog"
	"github.com/yourusername/testprep-api/internal/service/grader"
	"github.com/yourusername/testprep-api/internal/service/questiongen"
	"github.com/yourusername/testprep-api/pkg/auth"
	"github.com/yourusername/testprep-api/pkg/database"
	"github.com/yourusername/testprep-api/pkg/logger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)

	app := fx.New(
		fx.Supply(cfg),
		fx.NopLogger,

		// Infrastructure
		fx.Provide(
			NewDatabase,
			NewRedisClient,
			NewCacheRepo,
			NewTextModel,
		),

		// Repositories
		fx.Provide(
			func(db *gorm.DB) repository.UserRepository { return pgRepo.NewUserRepo(db) },
			func(db *gorm.DB) repository.SessionRepository { return pgRepo.NewSessionRepo(db) },
			func(db *gorm.DB) repository.ResultRepository { return pgRepo.NewResultRepo(db) },
			func(db *gorm.DB) repository.Transactor { return pgRepo.NewTransactor(db) },
		),

		// Services
		fx.Provide(
			NewJWTService,
			NewGrader,
			NewGenerator,
			catalog.Load,
			NewSessionService,
			NewAuthService,
			NewUserService,
			service.NewPlanService,
			service.NewExportService,
			NewSessionJanitor,
		),

		// Handlers and middleware
		fx.Provide(
			func(s *service.AuthService) *handler.AuthHandler { return handler.NewAuthHandler(s) },
			func(s *service.SessionService, c *catalog.Catalog) *handler.SessionHandler {
				return handler.NewSessionHandler(s, c)
			},
			func(u *service.UserService, p *service.PlanService, e *service.ExportService) *handler.UserHandler {
				return handler.NewUserHandler(u, p, e)
			},
			NewHealthHandler,
			func(j *service.SessionJanitor, u *service.UserService) *handler.AdminHandler {
				return handler.NewAdminHandler(j, u)
			},
			func(j *auth.JWTService) *middleware.AuthMiddleware { return middleware.NewAuthMiddleware(j) },
			middleware.NewRateLimiter,
			NewGinEngine,
		),

		fx.Invoke(RunMigrations),
		fx.Invoke(StartJanitor),
		fx.Invoke(RegisterRoutesAndStartServer),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Application stopped with errors")
		os.Exit(1)
	}
	log.Info().Msg("Server exited properly")
}

func NewDatabase(lc fx.Lifecycle, cfg *config.Config) (*gorm.DB, error) {
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), database.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sqlDB, err := database.GetSQLDB(db)
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return db, nil
}

func RunMigrations(db *gorm.DB) error {
	return database.MigrateDB(db, os.Getenv("MIGRATIONS_SOURCE"))
}

func NewRedisClient(lc fx.Lifecycle, cfg *config.Config) (redis.UniversalClient, error) {
	client, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return client.Close() },
	})
	return client, nil
}

func NewCacheRepo(client redis.UniversalClient) (repository.CacheRepository, error) {
	return redisRepo.NewCacheRepo(client)
}

// NewTextModel returns a nil model when no Gemini key is configured.
func NewTextModel(lc fx.Lifecycle, cfg *config.Config) (ai.TextModel, error) {
	model, err := ai.NewGeminiModel(context.Background(), ai.GeminiConfig{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		Timeout: cfg.Gemini.Timeout(),
	})
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, nil
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return model.Close() },
	})
	return model, nil
}

func NewJWTService(cfg *config.Config, cache repository.CacheRepository) (*auth.JWTService, error) {
	return auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs, cache)
}

func NewGrader(model ai.TextModel) grader.Grader {
	var primary grader.Grader
	if model != nil {
		primary = grader.NewGeminiGrader(model)
	}
	return grader.NewFallbackGrader(primary, grader.NewLocalGrader())
}

func NewGenerator(model ai.TextModel) (questiongen.Generator, *questiongen.DifficultyPolicy, error) {
	policy := questiongen.DefaultDifficultyPolicy()
	bank, err := questiongen.NewBankGenerator(policy)
	if err != nil {
		return nil, nil, err
	}
	var primary questiongen.Generator
	if model != nil {
		primary = questiongen.NewGeminiGenerator(model)
	}
	return questiongen.NewFallbackGenerator(primary, bank), policy, nil
}

type sessionServiceParams struct {
	fx.In

	Config      *config.Config
	SessionRepo repository.SessionRepository
	ResultRepo  repository.ResultRepository
	UserRepo    repository.UserRepository
	CacheRepo   repository.CacheRepository
	Transactor  repository.Transactor
	Generator   questiongen.Generator
	Grader      grader.Grader
	Difficulty  *questiongen.DifficultyPolicy
}

func NewSessionService(p sessionServiceParams) (*service.SessionService, error) {
	return service.NewSessionService(service.SessionServiceDeps{
		SessionRepo: p.SessionRepo,
		ResultRepo:  p.ResultRepo,
		UserRepo:    p.UserRepo,
		CacheRepo:   p.CacheRepo,
		Transactor:  p.Transactor,
		Generator:   p.Generator,
		Grader:      p.Grader,
		Difficulty:  p.Difficulty,
		Policy: service.SessionPolicy{
			DiagnosticQuestions:  p.Config.Session.DiagnosticQuestions,
			DefaultQuestions:     p.Config.Session.DefaultQuestions,
			FinalizeLockTTL:      time.Duration(p.Config.Session.FinalizeLockSec) * time.Second,
			MasteredMinQuestions: p.Config.Session.MasteredMinQuestions,
		},
	})
}

func NewAuthService(users repository.UserRepository, tx repository.Transactor, jwt *auth.JWTService) (*service.AuthService, error) {
	return service.NewAuthService(users, tx, jwt)
}

func NewUserService(
	cfg *config.Config,
	users repository.UserRepository,
	results repository.ResultRepository,
	cache repository.CacheRepository,
	jwt *auth.JWTService,
) (*service.UserService, error) {
	return service.NewUserService(users, results, cache, jwt, service.LeaderboardPolicy{
		Size:     cfg.Session.LeaderboardSize,
		CacheTTL: time.Duration(cfg.Session.LeaderboardCacheSec) * time.Second,
	})
}

func NewSessionJanitor(cfg *config.Config, sessions repository.SessionRepository) (*service.SessionJanitor, error) {
	return service.NewSessionJanitor(
		sessions,
		time.Duration(cfg.Session.StaleAfterHrs)*time.Hour,
		time.Duration(cfg.Session.JanitorIntervalMin)*time.Minute,
	)
}

func StartJanitor(lc fx.Lifecycle, janitor *service.SessionJanitor) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return janitor.Start() },
		OnStop: func(context.Context) error {
			janitor.Stop()
			return nil
		},
	})
}

func NewHealthHandler(db *gorm.DB, client redis.UniversalClient) *handler.HealthHandler {
	return handler.NewHealthHandler(map[string]handler.HealthCheck{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := database.GetSQLDB(db)
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	})
}
