package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/homeswift/homeswift-api/config"
	"github.com/homeswift/homeswift-api/controllers"
	"github.com/homeswift/homeswift-api/middleware"
	"github.com/homeswift/homeswift-api/models"
	"github.com/homeswift/homeswift-api/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// RouterDeps are the pieces SetupRouter mounts. Auth validates the bearer token;
// tests pass a stub that sets the same context keys.
type RouterDeps struct {
	Config   *config.Config
	DB       *gorm.DB
	Services *services.Services
	UserInfo services.UserInfoFetcher
	Auth     gin.HandlerFunc
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	config.SetupLogger(cfg)
	log.Info().Str("env", cfg.GoEnv).Msg("starting HomeSwift API server")

	if err := config.ConnectDatabase(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	db := config.GetDB()
	if err := config.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	log.Info().Msg("database migration completed successfully")

	ctx := context.Background()
	deps, cleanup := buildDependencies(ctx, cfg, db)
	defer cleanup()

	svc := services.New(deps)
	if err := svc.Pricing.EnsureDefaults(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to seed pricing catalog")
	}

	router := SetupRouter(RouterDeps{
		Config:   cfg,
		DB:       db,
		Services: svc,
		UserInfo: services.NewAuth0Service(cfg),
		Auth:     middleware.EnsureValidToken(cfg),
	})

	port := ":" + cfg.Port
	log.Info().Str("addr", port).Msg("server is running")
	if err := router.Run(port); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}

// buildDependencies wires the optional collaborators that have configuration. Anything left
// unset falls back to the logging or no-op version inside services.New.
func buildDependencies(ctx context.Context, cfg *config.Config, db *gorm.DB) (services.Dependencies, func()) {
	deps := services.Dependencies{DB: db, CalloutFee: cfg.CalloutFee}
	cleanup := func() {}

	if cfg.AWSS3Bucket != "" {
		s3Service, err := services.NewS3Service(ctx, cfg)
		if err != nil {
			log.Error().Err(err).Msg("S3 unavailable, payment proof uploads disabled")
		} else {
			deps.Proofs = services.NewS3ProofService(s3Service)
		}
	}

	if cfg.SMTPEnabled() {
		mailer, err := services.NewSMTPEmailService(cfg)
		if err != nil {
			log.Error().Err(err).Msg("SMTP misconfigured, emails will only be logged")
		} else {
			deps.Email = mailer
		}
	}

	if cfg.RedisURL != "" {
		publisher, err := services.NewRedisEventPublisher(cfg.RedisURL)
		if err != nil {
			log.Error().Err(err).Msg("redis unavailable, lifecycle events disabled")
		} else {
			deps.Events = publisher
			cleanup = func() {
				if err := publisher.Close(); err != nil {
					log.Warn().Err(err).Msg("failed to close redis publisher")
				}
			}
		}
	}

	return deps, cleanup
}

// SetupRouter mounts every route under /api/v1
func SetupRouter(deps RouterDeps) *gin.Engine {
	router := gin.Default()
	router.Use(middleware.Metrics())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = deps.Config.CORSAllowedOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	svc := deps.Services
	users := controllers.NewUserController(svc.Users, deps.UserInfo)
	requests := controllers.NewServiceRequestController(svc.Requests)
	payments := controllers.NewPaymentController(svc.Payments)
	reviews := controllers.NewReviewController(svc.Reviews)
	disputes := controllers.NewDisputeController(svc.Disputes)
	trust := controllers.NewTrustScoreController(svc.Trust)
	providers := controllers.NewProviderController(svc.Providers)

	adminOnly := middleware.RequireRole(models.RoleAdmin)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus(deps.DB))

		// Account creation only needs a valid token; every other route needs a stored account
		authed := v1.Group("", deps.Auth)
		authed.POST("/users", users.CreateUser)
		authed.GET("/users/me", users.GetMyProfile)
		authed.PUT("/users/me", users.UpdateMyProfile)

		api := authed.Group("", middleware.LoadActor(deps.DB))

		api.POST("/service-requests", middleware.RequireRole(models.RoleCustomer), requests.Create)
		api.GET("/service-requests", requests.List)
		api.GET("/service-requests/:id", requests.Get)
		api.PATCH("/service-requests/:id", adminOnly, requests.Update)
		api.POST("/service-requests/:id/show-interest", middleware.RequireRole(models.RoleProvider), requests.ShowInterest)
		api.POST("/service-requests/:id/assign-provider", adminOnly, requests.AssignProvider)
		api.DELETE("/service-requests/:id/assign-provider", adminOnly, requests.RemoveInterest)
		api.POST("/service-requests/:id/confirm-completion", requests.ConfirmCompletion)

		api.POST("/payments", middleware.RequireRole(models.RoleCustomer), payments.Create)
		api.GET("/payments", adminOnly, payments.List)
		api.GET("/payments/:id", payments.Get)
		api.POST("/payments/:id/verify", adminOnly, payments.Verify)
		api.POST("/payments/:id/release", adminOnly, payments.Release)
		api.POST("/payments/:id/refund", adminOnly, payments.Refund)

		api.GET("/reviews", reviews.List)
		api.POST("/reviews", reviews.Create)

		api.GET("/disputes", disputes.List)
		api.POST("/disputes", disputes.Create)
		api.PATCH("/disputes/:id", adminOnly, disputes.Update)

		api.GET("/trust-scores/:providerId", trust.Get)
		api.POST("/trust-scores/:providerId", adminOnly, trust.Recompute)

		api.GET("/providers/:id", providers.Get)
		api.PATCH("/providers/:id/verification", adminOnly, providers.UpdateVerification)
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "HomeSwift API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "Database not initialized",
				},
			})
			return
		}

		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "Failed to get database instance",
				},
			})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(ctx); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_CONNECTION_ERROR",
					"message": "Database connection failed",
				},
			})
			return
		}

		tables, err := db.Migrator().GetTables()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_QUERY_ERROR",
					"message": "Failed to query tables",
				},
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Database connected",
			"tables":  tables,
		})
	}
}
