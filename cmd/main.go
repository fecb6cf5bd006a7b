package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lshigami/Marmoset/config"
	"github.com/lshigami/Marmoset/database"
	_ "github.com/lshigami/Marmoset/docs" // Swagger docs
	"github.com/lshigami/Marmoset/internal/controller"
	"github.com/lshigami/Marmoset/internal/logger"
	"github.com/lshigami/Marmoset/internal/model"
	"github.com/lshigami/Marmoset/internal/repository"
	"github.com/lshigami/Marmoset/internal/service"
	"github.com/lshigami/Marmoset/internal/worker"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Marmoset Practice Session API
// @version 1.0
// @description Timed practice sessions with metered AI grading and a tutor chat.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
func main() {
	logger.Init()

	app := fx.New(
		// Core Application Components
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			NewGinEngine,
		),

		// Repositories Layer
		fx.Provide(
			repository.NewSessionRepository,
			repository.NewSubmissionRepository,
			repository.NewUsageRepository,
			repository.NewConversationRepository,
		),

		// Services Layer
		fx.Provide(
			service.NewUsageService,
			service.NewExpiryMonitor,
			service.NewGeminiGateway,
			service.NewGradingService,
			worker.NewNoRetryPolicy,
			worker.NewGradingPool,
			func(pool *worker.GradingPool) service.GradingQueue { return pool },
			service.NewSessionService,
			service.NewChatService,
		),

		// API Controllers Layer
		fx.Provide(
			controller.NewSessionController,
			controller.NewChatController,
			controller.NewUsageController,
		),

		fx.Invoke(StartGradingPool),
		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(AutoMigrateDB),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// StartGradingPool ties the grading worker pool to the application lifecycle.
func StartGradingPool(lc fx.Lifecycle, pool *worker.GradingPool) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			pool.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			pool.Stop()
			return nil
		},
	})
}

// RegisterRoutesAndStartServer configures API routes and manages server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	sessionCtrl *controller.SessionController,
	chatCtrl *controller.ChatController,
	usageCtrl *controller.UsageController,
) {
	api := router.Group("/api/v1")
	{
		sessions := api.Group("/sessions")
		sessions.POST("", sessionCtrl.CreateSession)
		sessions.GET("", sessionCtrl.ListSessions)
		sessions.GET("/:session_id", sessionCtrl.GetSession)
		sessions.POST("/:session_id/activate", sessionCtrl.ActivateSession)
		sessions.POST("/:session_id/start", sessionCtrl.StartSession)
		sessions.POST("/:session_id/submissions", sessionCtrl.SubmitSession)
		sessions.GET("/:session_id/submission", sessionCtrl.GetSubmission)

		api.POST("/submissions/:submission_id/regrade", sessionCtrl.RegradeSubmission)

		conversations := api.Group("/conversations")
		conversations.POST("", chatCtrl.CreateConversation)
		conversations.GET("", chatCtrl.ListConversations)
		conversations.GET("/:conversation_id", chatCtrl.GetConversation)
		conversations.POST("/:conversation_id/messages", chatCtrl.SendMessage)

		api.GET("/usage", usageCtrl.GetUsage)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Marmoset API server starting on port %s", cfg.Server.Port)
			log.Info().Msgf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.PracticeSession{},
		&model.PracticeSubmission{},
		&model.UsageRecord{},
		&model.CreditBalance{},
		&model.Conversation{},
		&model.ChatMessage{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
