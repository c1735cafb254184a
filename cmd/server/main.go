package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-service/internal/api"
	"github.com/fathima-sithara/dm-service/internal/config"
	"github.com/fathima-sithara/dm-service/internal/events"
	"github.com/fathima-sithara/dm-service/internal/media"
	"github.com/fathima-sithara/dm-service/internal/middleware"
	"github.com/fathima-sithara/dm-service/internal/presence"
	"github.com/fathima-sithara/dm-service/internal/repository"
	"github.com/fathima-sithara/dm-service/internal/service"
	"github.com/fathima-sithara/dm-service/internal/translate"
	"github.com/fathima-sithara/dm-service/internal/utils"
	"github.com/fathima-sithara/dm-service/internal/ws"
)

func main() {
	cfgPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	logger, err := utils.NewLogger(cfg.App.IsDevelopment(), cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	// Mongo
	mc, err := repository.NewMongoClient(ctx, cfg.Mongo)
	if err != nil {
		logger.Fatal("mongo init", zap.Error(err))
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	db := mc.Database(cfg.Mongo.Database)
	messages := repository.NewMessageRepository(db.Collection(cfg.Mongo.MessagesCollection))
	users := repository.NewUserRepository(db.Collection(cfg.Mongo.UsersCollection))

	// Redis (optional)
	var rdb *redis.Client
	var mirror *presence.RedisMirror
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, continuing without it", zap.Error(err))
		}
		mirror = presence.NewRedisMirror(rdb, cfg.Redis.Prefix)
	}

	var dir *presence.Directory
	online := func(context.Context) ([]string, error) { return dir.Online(), nil }
	if mirror != nil {
		dir = presence.NewDirectory(mirror, logger)
		online = mirror.OnlineUsers
	} else {
		dir = presence.NewDirectory(nil, logger)
	}

	// translation
	var tr translate.Translator = translate.Nop{}
	if cfg.Translate.Provider == "libre" {
		tr = translate.NewLibreClient(translate.LibreConfig{
			URL:                cfg.Translate.URL,
			APIKey:             cfg.Translate.APIKey,
			Timeout:            cfg.TranslateTimeout,
			MaxRetries:         cfg.Translate.MaxRetries,
			BreakerMaxFailures: cfg.Translate.BreakerMaxFailures,
			BreakerTimeout:     cfg.BreakerTimeout,
		}, logger)
	}
	adapter := translate.NewAdapter(tr, cfg.Translate.DefaultLanguage, logger)

	// media
	var uploader service.MediaUploader
	if cfg.Media.Bucket != "" {
		store, err := media.NewS3Store(ctx, media.S3Options{
			Region:        cfg.Media.Region,
			Bucket:        cfg.Media.Bucket,
			Endpoint:      cfg.Media.Endpoint,
			PublicBaseURL: cfg.Media.PublicBaseURL,
		})
		if err != nil {
			logger.Fatal("s3 init", zap.Error(err))
		}
		records := repository.NewMediaRepository(db.Collection(cfg.Mongo.MediaCollection))
		uploader = media.NewUploader(store, records, media.UploaderOptions{
			MaxBytes:           cfg.Media.MaxBytes,
			Thumbnails:         cfg.Media.Thumbnails,
			MaxThumbnailPixels: cfg.Media.MaxThumbnailPixels,
		}, logger)
	} else {
		logger.Warn("media.bucket not set, image messages disabled")
	}

	// events
	var publisher service.EventPublisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer func() { _ = kp.Close() }()
		publisher = kp
	}

	svc := service.NewMessageService(service.Deps{
		Messages:   messages,
		Users:      users,
		Translator: adapter,
		Media:      uploader,
		Pusher:     dir,
		Events:     publisher,
	}, service.Options{
		DefaultLanguage:  cfg.Translate.DefaultLanguage,
		MaxTextLength:    cfg.Message.MaxTextLength,
		TranslateTimeout: cfg.TranslateTimeout,
		UploadTimeout:    cfg.UploadTimeout,
	}, logger)

	verifier, err := middleware.NewVerifier(cfg.JWT)
	if err != nil {
		logger.Fatal("jwt init", zap.Error(err))
	}

	var sendLimit fiber.Handler
	if rdb != nil {
		sendLimit = middleware.NewRedisRateLimiter(rdb, cfg.Redis.Prefix, cfg.RateLimit.PerMinute, cfg.RateLimitWindow, logger).Handler(middleware.ByUserOrIP)
	} else {
		il := middleware.NewIPRateLimiter(cfg.RateLimit.PerMinute, 5, logger)
		defer il.Close()
		sendLimit = il.Handler(middleware.ByUserOrIP)
	}

	wsrv := ws.NewServer(dir, verifier, cfg.JWT.CookieName, ws.Options{
		PingInterval:   cfg.PingInterval,
		WriteDeadline:  cfg.WriteDeadline,
		MaxMessageSize: cfg.WS.MaxMessageSizeBytes,
		SendBuffer:     cfg.WS.SendBuffer,
	}, logger)

	app := api.NewServer(api.ServerDeps{
		Handlers:    api.NewHandlers(svc, online, logger),
		Verifier:    verifier,
		CookieName:  cfg.JWT.CookieName,
		CORSOrigins: cfg.App.CORSOrigins,
		SendLimit:   sendLimit,
		WS:          wsrv,
		BodyLimit:   int(cfg.Media.MaxBytes*4/3) + 64*1024,
		Log:         logger,
	})

	go func() {
		addr := ":" + cfg.App.PortString()
		logger.Info("dm-service listening", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("dm-service stopped")
}
