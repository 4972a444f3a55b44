package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"faceattend/internal/attendance"
	"faceattend/internal/auth"
	"faceattend/internal/config"
	"faceattend/internal/face"
	"faceattend/internal/handler"
	"faceattend/internal/httpmiddleware"
	"faceattend/internal/imagestore"
	"faceattend/internal/queue"
	"faceattend/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		if db == nil {
			return fmt.Errorf("open database: %w", err)
		}
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if err := store.Migrate(db.Client); err != nil {
		log.Printf("warning: migrate failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var audit queue.Queue
	if cfg.QueueBackend == "memory" {
		audit = queue.NewInMemory(64)
	} else {
		audit = queue.NewRedisQueue(redisClient.Client, "faceattend:audit")
	}

	pg := store.NewPostgres(db.Client)
	pipeline := face.New(cfg.FaceServiceURL, cfg.FaceSkip)

	// Cloudinary client (nil when not configured)
	var images attendance.ImageStore
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		images = imagestore.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	var verifier auth.Verifier
	if cfg.TokenVerifier == "remote" {
		verifier = auth.NewRemoteVerifier(cfg.IdentityURL)
		log.Println("token verification: remote provider at", cfg.IdentityURL)
	} else {
		verifier = auth.NewJWTVerifier(cfg.JWTSigningKey, cfg.JWTIssuer)
		log.Println("token verification: local jwt, issuer", cfg.JWTIssuer)
	}

	svc := attendance.NewService(pg, pg, pg, pipeline, images, audit)
	h := handler.New(svc, db, pipeline, cfg.Version)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/health", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(r, verifier, pg)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
