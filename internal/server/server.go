package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"whiteboard-backend/internal/cache"
	"whiteboard-backend/internal/config"
	"whiteboard-backend/internal/handler"
	"whiteboard-backend/internal/presence"
	"whiteboard-backend/internal/store"
)

// Server ties the fiber app to the room store and its handlers.
type Server struct {
	app   *fiber.App
	cfg   *config.Config
	db    *gorm.DB
	cache *cache.Client // nil when redis is not configured
	store *store.RoomStore
	hub   *handler.Hub

	boardWSHandler *handler.BoardWSHandler
	roomHandler    *handler.RoomHandler
	healthHandler  *handler.HealthHandler

	cancelBackground context.CancelFunc
}

// New builds the server. A nil cache client degrades the store to local
// memory plus postgres.
func New(cfg *config.Config, db *gorm.DB, cacheClient *cache.Client) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Whiteboard Sync Backend",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // incompatible with in-process room state
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		BodyLimit:             10 * 1024 * 1024,
		DisableStartupMessage: false,
	})

	storeCfg := store.Config{
		EmptyRoomGrace:   cfg.Room.EmptyRoomGrace,
		InactiveAfter:    cfg.Room.InactiveAfter,
		DurableRetention: cfg.Room.DurableRetention,
		OpTimeout:        cfg.Room.OpTimeout,
		CleanupInterval:  cfg.Room.CleanupInterval,
		PurgeInterval:    cfg.Room.PurgeInterval,
	}

	// A typed nil inside the interface would defeat the store's nil checks.
	var sceneCache store.SceneCache
	var presenceManager *presence.Manager
	if cacheClient != nil {
		sceneCache = cacheClient
		presenceManager = presence.NewManager(cacheClient.Raw(), cfg.Redis.CacheTTL)
	}

	roomStore := store.New(store.NewPostgresStore(db), sceneCache, storeCfg)
	hub := handler.NewHub()

	return &Server{
		app:            app,
		cfg:            cfg,
		db:             db,
		cache:          cacheClient,
		store:          roomStore,
		hub:            hub,
		boardWSHandler: handler.NewBoardWSHandler(roomStore, hub, presenceManager),
		roomHandler:    handler.NewRoomHandler(roomStore, hub, presenceManager),
		healthHandler:  handler.NewHealthHandler(db, cacheClient),
	}
}

// SetupMiddleware installs the global middleware chain.
func (s *Server) SetupMiddleware() {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: false,
	}))
}

// SetupRoutes wires the HTTP and websocket surface.
func (s *Server) SetupRoutes() {
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)

	// Room creation is the only unauthenticated write, so it gets a limiter.
	createLimiter := limiter.New(limiter.Config{
		Max:        30,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	api := s.app.Group("/api")
	api.Post("/rooms", createLimiter, s.roomHandler.CreateRoom)
	api.Get("/rooms/:id", s.roomHandler.GetRoom)
	api.Get("/rooms/:id/stats", s.roomHandler.GetRoomStats)
	api.Delete("/rooms/:id", s.roomHandler.DeleteRoom)
	api.Get("/stats", s.roomHandler.GetServerStats)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	s.app.Get("/ws/board", websocket.New(s.boardWSHandler.HandleWebSocket, websocket.Config{
		ReadBufferSize:   s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:  s.cfg.WebSocket.WriteBufferSize,
		HandshakeTimeout: s.cfg.WebSocket.HandshakeTimeout,
	}))
}

// Start runs the background sweeps and serves until a shutdown signal.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelBackground = cancel
	s.store.Run(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Whiteboard sync backend starting on %s", s.cfg.Server.Port)
	log.Printf("WebSocket endpoint: ws://localhost%s/ws/board", s.cfg.Server.Port)

	err := s.app.Listen(s.cfg.Server.Port)

	cancel()
	if s.cache != nil {
		if cerr := s.cache.Close(); cerr != nil {
			log.Printf("Redis close error: %v", cerr)
		}
	}
	return err
}

// Shutdown stops the server outside the signal path.
func (s *Server) Shutdown() error {
	if s.cancelBackground != nil {
		s.cancelBackground()
	}
	return s.app.ShutdownWithTimeout(30 * time.Second)
}
