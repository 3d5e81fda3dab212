package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/gabevillegas628/lettermanager-api/api/swagger"
	"github.com/gabevillegas628/lettermanager-api/internal/handler"
	"github.com/gabevillegas628/lettermanager-api/internal/middleware"
	"github.com/gabevillegas628/lettermanager-api/internal/repository"
	"github.com/gabevillegas628/lettermanager-api/internal/service"
	"github.com/gabevillegas628/lettermanager-api/pkg/cache"
	"github.com/gabevillegas628/lettermanager-api/pkg/config"
	"github.com/gabevillegas628/lettermanager-api/pkg/database"
	"github.com/gabevillegas628/lettermanager-api/pkg/logger"
	"github.com/gabevillegas628/lettermanager-api/pkg/mailer"
	corsmiddleware "github.com/gabevillegas628/lettermanager-api/pkg/middleware/cors"
	reqidmiddleware "github.com/gabevillegas628/lettermanager-api/pkg/middleware/requestid"
	"github.com/gabevillegas628/lettermanager-api/pkg/render"
	"github.com/gabevillegas628/lettermanager-api/pkg/storage"
)

// @title Letter Manager API
// @version 1.0.0
// @description Recommendation letter management for professors
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The catalog cache degrades to misses without Redis.
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}

	letterFiles, err := storage.NewLocalStorage(cfg.Storage.LettersDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init letter storage", "error", err)
	}
	uploadFiles, err := storage.NewLocalStorage(cfg.Storage.UploadsDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}

	metricsSvc := service.NewMetricsService()

	professorRepo := repository.NewProfessorRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	destinationRepo := repository.NewDestinationRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	letterRepo := repository.NewLetterRepository(db)
	questionRepo := repository.NewCustomQuestionRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, metricsSvc, logr)

	authSvc := service.NewAuthService(professorRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "lettermanager-api",
	})
	professorSvc := service.NewProfessorService(professorRepo, uploadFiles, nil, logr)
	requestSvc := service.NewRequestService(requestRepo, destinationRepo, letterRepo, questionRepo, professorRepo, letterFiles, nil, logr)
	templateSvc := service.NewTemplateService(templateRepo, nil, logr)
	variableSvc := service.NewVariableService(requestRepo, professorRepo, questionRepo, cacheRepo, cfg.Catalog.CacheTTL, nil, logr)
	letterSvc := service.NewLetterService(letterRepo, requestRepo, destinationRepo, templateRepo, variableSvc, letterFiles, nil, logr)
	pdfSvc := service.NewPDFService(letterRepo, requestRepo, professorRepo, render.NewLetterPDF(), letterFiles, uploadFiles, metricsSvc, service.PDFConfig{
		DefaultFontSize:  cfg.PDF.DefaultFontSize,
		FallbackFontSize: cfg.PDF.FallbackFontSize,
		FontFamily:       cfg.PDF.FontFamily,
	}, logr)
	mail := mailer.NewSMTPMailer(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	})
	deliverySvc := service.NewDeliveryService(destinationRepo, requestRepo, letterRepo, professorRepo, letterFiles, mail, metricsSvc, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	professorHandler := handler.NewProfessorHandler(professorSvc)
	requestHandler := handler.NewRequestHandler(requestSvc)
	intakeHandler := handler.NewIntakeHandler(requestSvc)
	templateHandler := handler.NewTemplateHandler(templateSvc)
	variableHandler := handler.NewVariableHandler(variableSvc)
	letterHandler := handler.NewLetterHandler(letterSvc, pdfSvc)
	deliveryHandler := handler.NewDeliveryHandler(deliverySvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	}

	intake := api.Group("/intake")
	{
		intake.GET("/:code", intakeHandler.View)
		intake.POST("/:code", intakeHandler.Submit)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.GET("/profile", professorHandler.GetProfile)
		authed.PUT("/profile", professorHandler.UpdateProfile)
		authed.POST("/profile/letterhead", professorHandler.UploadLetterhead)
		authed.DELETE("/profile/letterhead", professorHandler.RemoveLetterhead)
		authed.POST("/profile/signature", professorHandler.UploadSignature)
		authed.DELETE("/profile/signature", professorHandler.RemoveSignature)

		authed.POST("/requests", requestHandler.Create)
		authed.GET("/requests", requestHandler.List)
		authed.GET("/requests/:id", requestHandler.Get)
		authed.POST("/requests/:id/archive", requestHandler.Archive)
		authed.DELETE("/requests/:id", requestHandler.Delete)

		authed.GET("/requests/:id/letters", letterHandler.ListByRequest)
		authed.DELETE("/requests/:id/letters", letterHandler.DeleteAll)
		authed.POST("/requests/:id/letters/master", letterHandler.GenerateMaster)
		authed.POST("/requests/:id/letters/generate-all", letterHandler.GenerateAll)
		authed.POST("/requests/:id/letters/sync", letterHandler.Sync)

		authed.GET("/letters/:id", letterHandler.Get)
		authed.PUT("/letters/:id", letterHandler.UpdateContent)
		authed.POST("/letters/:id/finalize", letterHandler.Finalize)
		authed.POST("/letters/:id/unfinalize", letterHandler.Unfinalize)
		authed.POST("/letters/:id/pdf", letterHandler.GeneratePDF)
		authed.GET("/letters/:id/pdf", letterHandler.DownloadPDF)
		authed.GET("/letters/:id/pdf/status", letterHandler.PDFStatus)

		authed.POST("/destinations/:id/send", deliveryHandler.Send)
		authed.POST("/destinations/:id/mark-sent", deliveryHandler.MarkSent)
		authed.POST("/destinations/:id/confirm", deliveryHandler.Confirm)
		authed.POST("/destinations/:id/fail", deliveryHandler.Fail)
		authed.POST("/destinations/:id/reset", deliveryHandler.Reset)

		authed.GET("/templates", templateHandler.List)
		authed.POST("/templates", templateHandler.Create)
		authed.GET("/templates/:id", templateHandler.Get)
		authed.PUT("/templates/:id", templateHandler.Update)
		authed.DELETE("/templates/:id", templateHandler.Delete)

		authed.GET("/variables", variableHandler.Catalog)
		authed.GET("/questions", variableHandler.ListQuestions)
		authed.POST("/questions", variableHandler.CreateQuestion)
		authed.DELETE("/questions/:id", variableHandler.DeleteQuestion)

		authed.GET("/metrics/summary", metricsHandler.Snapshot)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
