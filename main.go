package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/syncpad/syncpad/handlers"
	"github.com/syncpad/syncpad/internal/config"
	"github.com/syncpad/syncpad/internal/database"
	"github.com/syncpad/syncpad/internal/document/handler"
	"github.com/syncpad/syncpad/internal/document/repository"
	"github.com/syncpad/syncpad/internal/document/service"
	"github.com/syncpad/syncpad/internal/realtime"
	"github.com/syncpad/syncpad/pkg/logger"
	"github.com/syncpad/syncpad/pkg/metrics"
	"github.com/syncpad/syncpad/pkg/middleware"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	defer log.Sync()

	log.Info("config loaded",
		zap.Bool("mongo", cfg.MongoDB.URI != ""),
		zap.Bool("redis", cfg.Redis.Host != ""),
		zap.String("env", cfg.Server.Environment))

	ctx := context.Background()

	// Optional durable mirror. The in-memory store is authoritative either
	// way; a missing or unreachable Mongo just means no persistence.
	var mirror service.Mirror
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err != nil {
			log.Warn("MongoDB not available, using in-memory storage only", zap.Error(err))
		} else {
			defer func() { _ = client.Disconnect(ctx) }()
			col := client.Database(cfg.MongoDB.Database).Collection("documents")
			mirror = repository.NewMongoMirror(col)
			log.Info("MongoDB connected", zap.String("database", cfg.MongoDB.Database))
		}
	}

	svc := service.New(repository.NewMemoryStore(), mirror, log)
	defer svc.Close()

	hub := realtime.NewHub(svc, log)
	go hub.Run()
	defer hub.Stop()

	if cfg.Server.Environment == "development" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// Permissive CORS for the editor frontend; production should pin
	// CLIENT_URL to the deployed origin.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", cfg.Server.ClientURL)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})

	// Optional Redis-backed rate limiting for multi-replica deployments;
	// falls back to the in-memory token bucket.
	if cfg.RateLimit.Enabled {
		var rdb *redis.Client
		if cfg.RateLimit.UseRedis && cfg.Redis.Host != "" {
			rdb = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err := rdb.Ping(ctx).Err(); err != nil {
				log.Warn("failed to connect to Redis, using in-memory rate limiter", zap.Error(err))
				rdb = nil
			}
		}
		window := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
		r.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, window))
	}

	handler.RegisterDocumentRoutes(r, svc)
	handlers.RegisterSwagger(r)
	r.GET("/ws", realtime.ServeWS(hub, log))

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Info("syncpad server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}
