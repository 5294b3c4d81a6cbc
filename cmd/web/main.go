package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/222caleb/stinkyman-game/server"
	"github.com/222caleb/stinkyman-game/store"
)

type config struct {
	Port           string        `env:"PORT,default=3001"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	RedisAddr      string        `env:"REDIS_ADDR"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS,default=http://localhost:5173;http://localhost:5174;http://localhost:4173"`
	LogLevel       string        `env:"LOG_LEVEL,default=info"`
	AIGrace        time.Duration `env:"AI_GRACE,default=30s"`
}

func main() {
	// a missing .env is fine; real deployments use the environment
	_ = godotenv.Load()

	var cfg config
	if err := envdecode.Decode(&cfg); err != nil {
		logrus.WithError(err).Fatal("decoding configuration")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	roomStore, closeStore, err := buildStore(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("initialising room store")
	}
	defer closeStore()

	s := server.NewServer(server.Opts{
		Addr:           ":" + cfg.Port,
		Store:          roomStore,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		AIGrace:        cfg.AIGrace,
	})

	go func() {
		logger.WithField("port", cfg.Port).Info("relay listening")
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("serving")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("shutdown did not complete cleanly")
	}
}

// buildStore picks the first configured backend: postgres, then
// redis, then in-memory
func buildStore(cfg config, logger *logrus.Logger) (store.RoomStore, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if cfg.DatabaseURL != "" {
		s, err := store.NewPostgresRoomStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using postgres room store")
		return s, s.Close, nil
	}

	if cfg.RedisAddr != "" {
		s, err := store.NewRedisRoomStore(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using redis room store")
		return s, func() { s.Close() }, nil
	}

	logger.Warn("no DATABASE_URL or REDIS_ADDR set, rooms will not survive restarts")
	return store.NewInMemoryRoomStore(), func() {}, nil
}
