package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"huddle-chat/config"
	"huddle-chat/internal/handler"
	"huddle-chat/internal/middleware"
	"huddle-chat/internal/outbox"
	"huddle-chat/internal/ratelimit"
	"huddle-chat/internal/repository"
	"huddle-chat/internal/services"
	"huddle-chat/internal/social"
	"huddle-chat/pkg/database"
	"huddle-chat/pkg/events"
	"huddle-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.LoadConfig()

	logMode := logger.DevelopmentMode
	if cfg.AppMode == "production" {
		logMode = logger.ProductionMode
		gin.SetMode(gin.ReleaseMode)
	}
	l := logger.New(logMode)
	logger.SetGlobalLogger(l)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	graphClient := social.NewHTTPClient(cfg.SocialGraphURL, 3*time.Second)
	graph := social.NewCachedGraph(graphClient, redisClient, social.CacheConfig{
		TTL: time.Duration(cfg.GraphCacheSec) * time.Second,
	})

	groupService := services.NewGroupService(db, convRepo, outboxRepo, graph, graphClient, l)
	messageService := services.NewMessageService(db, msgRepo, convRepo, outboxRepo, l)

	broker := events.NewRedisBroker(redisClient)
	processor := outbox.NewProcessor(outboxRepo, broker, l,
		cfg.OutboxBatch, time.Duration(cfg.OutboxPollMS)*time.Millisecond, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	processor.Start(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(l))
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.ErrorHandler(l))

	limiter := ratelimit.NewLimiter(redisClient, ratelimit.DefaultConfig())
	registerRoutes(r, limiter, handler.NewGroupHandler(groupService), handler.NewMessageHandler(messageService))

	l.Infof("starting server on port %s", cfg.AppPort)
	if err := r.Run(fmt.Sprintf(":%s", cfg.AppPort)); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func registerRoutes(r *gin.Engine, limiter *ratelimit.Limiter, groups *handler.GroupHandler, messages *handler.MessageHandler) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")

	v1.POST("/groups", groups.Create)
	v1.GET("/groups", groups.List)
	v1.POST("/groups/:id/invites", groups.Invite)
	v1.GET("/groups/:id/members", groups.Members)
	v1.DELETE("/groups/:id/members/:userId", groups.RemoveMember)
	v1.POST("/groups/:id/leave", groups.Leave)
	v1.PUT("/groups/:id/members/:userId/role", groups.ChangeRole)
	v1.DELETE("/groups/:id", groups.Delete)
	v1.PUT("/groups/:id/name", groups.UpdateName)
	v1.PUT("/groups/:id/avatar", groups.UpdateAvatar)

	v1.POST("/groups/:id/messages", middleware.SendRateLimitMiddleware(limiter), messages.Send)
	v1.GET("/groups/:id/messages", messages.List)
	v1.POST("/groups/:id/open", messages.OpenGroup)
	v1.GET("/groups/:id/unread", messages.Unread)
	v1.GET("/groups/:id/pins", messages.Pinned)
	v1.POST("/groups/:id/pins/:messageId", messages.Pin)
	v1.DELETE("/groups/:id/pins/:messageId", messages.Unpin)

	v1.POST("/messages/:messageId/read", messages.MarkRead)
	v1.POST("/messages/:messageId/reactions", messages.AddReaction)
	v1.DELETE("/messages/:messageId/reactions", messages.RemoveReaction)
	v1.GET("/messages/:messageId/reactions", messages.Reactions)
	v1.GET("/messages/:messageId/thread", messages.Thread)
	v1.PUT("/messages/:messageId", messages.Edit)
	v1.DELETE("/messages/:messageId", messages.Delete)
}
