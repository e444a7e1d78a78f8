package main

import (
	"log"

	"whiteboard-backend/internal/cache"
	"whiteboard-backend/internal/config"
	"whiteboard-backend/internal/database"
	"whiteboard-backend/internal/server"
)

func main() {
	cfg := config.Load()

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer database.Close(db)
	log.Printf("Database connected successfully")

	// Redis is optional: without it the server runs on local memory plus
	// postgres and loses cross-instance invalidation only.
	var cacheClient *cache.Client
	if cfg.Redis.Enabled {
		cacheClient, err = cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL)
		if err != nil {
			log.Printf("Redis unavailable, continuing without distributed cache: %v", err)
			cacheClient = nil
		} else {
			log.Printf("Redis connected (%s)", cfg.Redis.Addr)
		}
	}

	srv := server.New(cfg, db, cacheClient)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
