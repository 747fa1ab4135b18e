package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"social-service/internal/auth"
	"social-service/internal/config"
	"social-service/internal/db"
	"social-service/internal/handlers"
	"social-service/internal/middleware"
	"social-service/internal/observability"
	"social-service/internal/rabbitmq"
	"social-service/internal/repositories"
	"social-service/internal/services"
	"social-service/internal/telemetry"
	"social-service/internal/ws"
)

const serviceName = "social-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, serviceName, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(ctx); err != nil {
			log.Printf("tracer shutdown error: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AuditExchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	auditEmitter := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, serviceName, cfg.Environment)

	if cfg.AMQPURL != "" {
		wsPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, "ws_events")
		if err != nil {
			log.Printf("ws event publisher disabled: %v", err)
		} else {
			observability.SetPublisher(wsPublisher)
			defer wsPublisher.Close()
		}
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	userRepo := repositories.NewUserRepo(database)
	requestRepo := repositories.NewRequestRepo(database)
	chatRepo := repositories.NewChatRepo(database)

	hub := ws.NewHub()

	friendService := services.NewFriendService(userRepo, requestRepo, chatRepo, hub)
	chatService := services.NewChatService(chatRepo, userRepo, hub, publisher, cfg.CleanupRoutingKey, cfg.MaxGroupMembers)

	authHandler := handlers.NewAuthHandler(userRepo, tokens)
	friendHandler := handlers.NewFriendHandler(friendService, auditEmitter)
	chatHandler := handlers.NewChatHandler(chatService, auditEmitter)
	sessionHandler := ws.NewSessionHandler(hub, tokens)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	router.Use(rateLimiter.Middleware())

	authMiddleware := middleware.AuthMiddleware(tokens)

	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)
	router.GET("/auth/me", authMiddleware, authHandler.Me)

	router.GET("/users/search", authMiddleware, friendHandler.SearchUsers)

	router.POST("/friends/requests", authMiddleware, friendHandler.SendRequest)
	router.POST("/friends/requests/resolve", authMiddleware, friendHandler.ResolveRequest)
	router.GET("/friends/requests", authMiddleware, friendHandler.ListNotifications)
	router.GET("/friends", authMiddleware, friendHandler.ListFriends)

	router.POST("/chats/group", authMiddleware, chatHandler.CreateGroup)
	router.GET("/chats", authMiddleware, chatHandler.ListChats)
	router.GET("/chats/groups", authMiddleware, chatHandler.ListGroups)
	router.GET("/chats/:chat_id", authMiddleware, chatHandler.GetChat)
	router.PUT("/chats/:chat_id", authMiddleware, chatHandler.Rename)
	router.PUT("/chats/:chat_id/members", authMiddleware, chatHandler.AddMembers)
	router.DELETE("/chats/:chat_id/members/:user_id", authMiddleware, chatHandler.RemoveMember)
	router.DELETE("/chats/:chat_id/leave", authMiddleware, chatHandler.Leave)
	router.DELETE("/chats/:chat_id", authMiddleware, chatHandler.Delete)

	router.GET("/ws", sessionHandler.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	log.Printf("%s listening on :%s", serviceName, cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
