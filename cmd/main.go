package main

import (
	"context"
	"embed"
	"html/template"
	"io"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"shiftdraw/internal/config"
	"shiftdraw/internal/handlers"
	"shiftdraw/internal/imageedit"
	"shiftdraw/internal/services"
)

//go:embed all:templates
var templateFS embed.FS

func main() {
	// 1. Load configuration
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize logging
	var logFile io.Writer = io.Discard
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o660)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		logFile = f
	}
	defer logger.Init("shiftdraw", cfg.Logging.Verbose, false, logFile).Close()

	// 3. Initialize the Lottery Service
	lotteryService := services.NewLotteryService(
		services.WithRevealDelay(cfg.Draw.RevealDelayDuration()),
		services.WithSessionTTL(cfg.Sessions.TTLDuration()),
	)

	// 4. Initialize the image edit collaborator
	var editor imageedit.Editor = imageedit.Disabled{}
	if gemini, err := imageedit.NewGeminiEditor(context.Background(), cfg.ImageEdit.APIKey, cfg.ImageEdit.Model, cfg.ImageEdit.TimeoutDuration()); err != nil {
		logger.Warningf("Image editing disabled: %v", err)
	} else {
		logger.Infof("Image editing via %s", gemini.Name())
		editor = gemini
	}

	// 5. Load HTML templates from the embedded filesystem.
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		logger.Fatalf("Failed to parse templates: %v", err)
	}

	// 6. Initialize the HTTP Handler
	httpHandler := handlers.NewHTTPHandler(lotteryService, imageedit.NewGuard(editor), templates)

	// 7. Set up the Gin router
	gin.SetMode(cfg.Server.GinMode)
	r := gin.Default()
	r.MaxMultipartMemory = 16 << 20

	// 8. Register public routes (before middleware)
	httpHandler.RegisterPublicRoutes(r)

	// 9. Group routes that require tenant identification and apply middleware
	tenantRoutes := r.Group("/")
	tenantRoutes.Use(httpHandler.TenantMiddleware())
	httpHandler.RegisterTenantRoutes(tenantRoutes)

	// 10. Start the background janitor to clean up inactive sessions
	go func() {
		ticker := time.NewTicker(cfg.Sessions.JanitorIntervalDuration())
		defer ticker.Stop()

		for range ticker.C {
			count := lotteryService.CleanUpInactiveSessions()
			logger.Infof("Performed cleanup of inactive sessions, removed %d.", count)
		}
	}()

	// 11. Run the server
	logger.Infof("Server starting on %s", cfg.Server.Addr)
	if err := r.Run(cfg.Server.Addr); err != nil {
		logger.Fatalf("Failed to run server: %v", err)
	}
}
