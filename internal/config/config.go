package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the whole application configuration.
type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	Redis     RedisConfig
	Room      RoomConfig
}

// ServerConfig covers the HTTP listener.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// WebSocketConfig covers the socket upgrade.
type WebSocketConfig struct {
	ReadBufferSize   int
	WriteBufferSize  int
	HandshakeTimeout time.Duration
}

// CORSConfig covers cross-origin settings.
type CORSConfig struct {
	AllowOrigins string
	AllowHeaders string
}

// RedisConfig covers the distributed cache. Enabled=false runs the server on
// local memory plus postgres only.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// RoomConfig covers room lifecycle timing.
type RoomConfig struct {
	EmptyRoomGrace   time.Duration
	InactiveAfter    time.Duration
	DurableRetention time.Duration
	OpTimeout        time.Duration
	CleanupInterval  time.Duration
	PurgeInterval    time.Duration
}

// Load reads configuration from the environment.
func Load() *Config {
	// A missing .env file is fine, real deployments set the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:   getInt("WS_READ_BUFFER_SIZE", 16*1024),
			WriteBufferSize:  getInt("WS_WRITE_BUFFER_SIZE", 16*1024),
			HandshakeTimeout: getDuration("WS_HANDSHAKE_TIMEOUT", 10*time.Second),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
			AllowHeaders: getEnv("CORS_ALLOW_HEADERS", "Origin, Content-Type, Accept"),
		},
		Redis: RedisConfig{
			Enabled:  getBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
			CacheTTL: getDuration("REDIS_CACHE_TTL", 24*time.Hour),
		},
		Room: RoomConfig{
			EmptyRoomGrace:   getDuration("ROOM_EMPTY_GRACE", 1*time.Minute),
			InactiveAfter:    getDuration("ROOM_INACTIVE_AFTER", 24*time.Hour),
			DurableRetention: getDuration("ROOM_RETENTION", 7*24*time.Hour),
			OpTimeout:        getDuration("ROOM_OP_TIMEOUT", 5*time.Second),
			CleanupInterval:  getDuration("ROOM_CLEANUP_INTERVAL", 10*time.Minute),
			PurgeInterval:    getDuration("ROOM_PURGE_INTERVAL", 1*time.Hour),
		},
	}
}

// getEnv reads a string with a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt reads an integer with a default.
func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getBool reads a boolean with a default.
func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getDuration reads a duration with a default. Bare numbers are seconds.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if !strings.ContainsAny(value, "smh") {
			if secs, err := strconv.Atoi(value); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
