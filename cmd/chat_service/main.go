package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"secure_chat_service/internal/api/handlers"
	"secure_chat_service/internal/chat/app"
	"secure_chat_service/internal/chat/domain"
	"secure_chat_service/internal/chat/repository"
	"secure_chat_service/internal/chat/router"
	memberrepo "secure_chat_service/internal/member/repository"
	"secure_chat_service/pkg/config"
	"secure_chat_service/pkg/database"
	"secure_chat_service/pkg/logger"
	"secure_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	defer logger.Log.Sync()
	logger.Log.SetDebugMode(!config.IsProduction())

	loaded, err := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)
	if err != nil {
		logger.Log.Fatal("load config failed", zap.Error(err))
	}
	cfg := loaded.WithDefaults()
	token.SetSecret(config.EnvConfig.JWTSecret)

	ctx := context.Background()

	// 1. Mongo (訊息 / 對話)
	uri := database.MongoURI(cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.DSN{URI: uri, Retry: database.RetrySeconds(cfg.MongoSQL.RetryCount, cfg.MongoSQL.RetryInterval)},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal("Unable to connect to mongoDB database after retries", zap.String("host", cfg.MongoSQL.Host), zap.Error(err))
	}
	defer mongo.Close(ctx)

	// 2. PostgreSQL (member directory)
	pg, err := database.NewDatabaseConnection(ctx, database.DSN{
		URI: database.PostgresURI(cfg.PostgreSQL.User, cfg.PostgreSQL.Password,
			cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.Database),
		Retry: database.RetrySeconds(cfg.PostgreSQL.RetryCount, cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to postgreSQL database after retries", zap.String("host", cfg.PostgreSQL.Host), zap.Error(err))
	}
	defer pg.Close()

	// 3. Redis (conversation key cache)
	sentinel := config.EnvConfig.Redis
	redisClient, err := database.NewRedisClient(ctx, database.RedisOptions{
		MasterName:    sentinel.MasterName,
		SentinelAddrs: sentinel.Addrs,
		Addr:          sentinel.Addr,
		DB:            cfg.Redis.RedisDB,
	})
	if err != nil {
		logger.Log.Fatal("connect redis failed", zap.Error(err))
	}
	defer redisClient.Close()

	// 4. MinIO (attachments)
	minioClient, err := database.NewMinIOConnection(ctx, database.MinIOConfig{
		Endpoint:   cfg.MinIO.Endpoint,
		User:       cfg.MinIO.User,
		Password:   cfg.MinIO.Password,
		BucketName: cfg.MinIO.Bucket,
		UseSSL:     cfg.MinIO.UseSSL,
		Retry:      database.RetrySeconds(cfg.MinIO.RetryCount, cfg.MinIO.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("connect minio failed", zap.String("endpoint", cfg.MinIO.Endpoint), zap.Error(err))
	}

	// 5. 初始化 Repository
	msgRepo := repository.NewMongoMessageRepository(mongo.Database)
	convRepo := repository.NewMongoConversationRepository(mongo.Database)
	if err := msgRepo.EnsureIndexes(ctx); err != nil {
		logger.Log.Fatal("ensure message indexes", zap.Error(err))
	}
	if err := convRepo.EnsureIndexes(ctx); err != nil {
		logger.Log.Fatal("ensure conversation indexes", zap.Error(err))
	}
	keyCache := repository.NewRedisKeyCache(database.NewRedisRepository[domain.ConversationKey](redisClient), cfg.KeyCacheTTL)
	members := memberrepo.NewMemberRepository(pg)

	// 6. 初始化 UseCases
	hub := app.NewHub()
	messageUC := app.NewMessageUseCase(msgRepo, hub, cfg.Attachment.MaxSize)
	statusUC := app.NewStatusUseCase(msgRepo, hub)
	presenceUC := app.NewPresenceUseCase(hub)
	conversationUC := app.NewConversationUseCase(convRepo, msgRepo, members, keyCache, hub,
		cfg.History.DefaultLimit, cfg.History.MaxLimit)
	attachmentUC := app.NewAttachmentUseCase(conversationUC, minioClient,
		cfg.Attachment.MaxSize, cfg.Attachment.AllowedTypes, cfg.Attachment.UploadExpiry)

	// 7. 啟動 Fiber
	r := fiber.New(fiber.Config{
		AppName:      config.EnvConfig.ChatService,
		BodyLimit:    1 << 20,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(recover.New())
	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r, hub,
		app.NewChatWebsocketHandler(hub, messageUC, statusUC, presenceUC),
		handlers.NewChatHandler(conversationUC, attachmentUC),
	)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Log.Info("shutting down chat service")
		if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Log.Error("shutdown", zap.Error(err))
		}
	}()

	port := ":" + cfg.Port
	if config.EnvConfig.ChatServicePort != "" {
		port = ":" + config.EnvConfig.ChatServicePort
	}
	logger.Log.Info("Chat Service listening", zap.String("port", port))
	if err := r.Listen(port); err != nil {
		logger.Log.Fatal("Failed to start Fiber", zap.Error(err))
	}
}
