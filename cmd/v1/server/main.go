package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jeopardy-coordinator/roomserver/internal/v1/bus"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/config"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/generator"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/health"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/logging"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/middleware"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/persistence"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/ratelimit"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/registry"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/roomactor"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/roomerr"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/transport"
	"go.uber.org/zap"
)

func main() {
	// Load .env file for local development. Try multiple paths to handle
	// different ways of running the app.
	envPaths := []string{".env", "../../../.env", "../../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		panic(err)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		panic(err)
	}
	ctx := context.Background()

	var busService *bus.Service
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		busService, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Fatal(ctx, "failed to connect to redis", zap.Error(err))
			return
		}
		redisClient = busService.Client()
		logging.Info(ctx, "redis connected", zap.String("addr", cfg.RedisAddr))
	}

	var persistenceBackend roomactor.Persistence
	var gameStore persistence.Backend
	switch cfg.PersistenceBackend {
	case "document_store":
		store := persistence.NewDocumentStoreBackend(redisClient)
		gameStore = store
		persistenceBackend = store
	default:
		store, err := persistence.NewFilesystemBackend(cfg.PersistenceDir)
		if err != nil {
			logging.Fatal(ctx, "failed to initialize filesystem persistence backend", zap.Error(err))
			return
		}
		gameStore = store
		persistenceBackend = store
	}

	limiter, err := ratelimit.NewRateLimiter(cfg, redisClient)
	if err != nil {
		logging.Fatal(ctx, "failed to initialize rate limiter", zap.Error(err))
		return
	}

	genClient := generator.NewClient(cfg.GeneratorEndpoint, cfg.GeneratorAPIKey)

	allowedOrigins := strings.Split(cfg.FrontendOrigin, ",")
	hub := transport.NewHub(limiter, transport.Config{
		PingInterval:   time.Duration(cfg.PingIntervalMs) * time.Millisecond,
		PongTimeout:    time.Duration(cfg.PongTimeoutMs) * time.Millisecond,
		AllowedOrigins: allowedOrigins,
	})

	graceWindow := time.Duration(cfg.RoomGraceMs) * time.Millisecond
	reg := registry.New(registry.Deps{
		Sender:      hub,
		Bus:         busService,
		Persistence: persistenceBackend,
		Timings: roomactor.Timings{
			TieWindow:          time.Duration(cfg.TieWindowMs) * time.Millisecond,
			TieBuffer:          time.Duration(cfg.TieBufferMs) * time.Millisecond,
			FinalAnswerTimeout: time.Duration(cfg.FinalAnswerTimeoutMs) * time.Millisecond,
		},
		GraceWindow: graceWindow,
		// The room data model's destruction rule (spec §3) reuses the same
		// grace window for "finished and inactive for that window".
		FinishedRetain: graceWindow,
	})
	hub.AttachRegistry(reg)

	healthHandler := health.NewHandler(busService, cfg.GeneratorEndpoint)

	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))
	router.Use(middleware.CorrelationID())
	router.Use(gin.Recovery())

	router.GET("/ws", limiter.GlobalMiddleware(), hub.ServeWs)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	api := router.Group("/api", limiter.MiddlewareForEndpoint("rooms"))
	{
		api.GET("/games/list", func(c *gin.Context) {
			summaries, err := gameStore.List(c.Request.Context())
			if err != nil {
				writeRoomErr(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"games": summaries})
		})

		api.GET("/games/:id", func(c *gin.Context) {
			gameCfg, err := gameStore.Get(c.Request.Context(), c.Param("id"))
			if err != nil {
				writeRoomErr(c, err)
				return
			}
			c.JSON(http.StatusOK, gameCfg)
		})

		api.POST("/generate", func(c *gin.Context) {
			var req generator.Request
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
				return
			}
			resp, err := genClient.Generate(c.Request.Context(), req)
			if err != nil {
				writeRoomErr(c, err)
				return
			}
			c.JSON(http.StatusOK, resp)
		})
	}

	srv := &http.Server{
		Addr:    ":" + cfg.ListenPort,
		Handler: router,
	}

	go func() {
		logging.Info(ctx, "room coordinator starting", zap.String("port", cfg.ListenPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal(ctx, "failed to run server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := hub.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "hub shutdown reported an error", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "server forced to shutdown", zap.Error(err))
	}
	if busService != nil {
		_ = busService.Close()
	}

	logging.Info(ctx, "server exiting")
}

// writeRoomErr translates a roomerr.Error into the matching HTTP status
// (spec §7's wire kinds, reused for the REST surface alongside the
// WebSocket one) without leaking dependency-error internals onto the wire.
func writeRoomErr(c *gin.Context, err error) {
	e, ok := roomerr.As(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch e.Kind {
	case roomerr.KindNotFound:
		status = http.StatusNotFound
	case roomerr.KindValidation, roomerr.KindProtocol:
		status = http.StatusBadRequest
	case roomerr.KindRole, roomerr.KindState:
		status = http.StatusConflict
	case roomerr.KindDependency:
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": e.Message})
}
