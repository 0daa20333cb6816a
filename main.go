package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/auth"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/messaging"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))
	observability.SetPublisher(publisher)

	userRepo := repositories.NewUserRepo(database)
	convRepo := repositories.NewConversationRepo(database)
	msgRepo := repositories.NewMessageRepo(database)

	emitter := telemetry.NewEventEmitter(publisher, "messaging-service", cfg.Environment)
	service := messaging.NewService(userRepo, convRepo, msgRepo, emitter)

	resolver := auth.NewResolver(cfg.JWTSecret, userRepo)

	hub := ws.NewHub()
	gateway := ws.NewGateway(hub, service, resolver, cfg.AllowedOrigins)

	conversationHandler := handlers.NewConversationHandler(service)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("messaging-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(resolver)

	router.GET("/conversations", authMiddleware, conversationHandler.ListConversations)
	router.GET("/conversations/:conversation_id/messages", authMiddleware, conversationHandler.GetMessages)
	router.POST("/conversations/direct", authMiddleware, conversationHandler.StartDirect)
	router.POST("/conversations/group", authMiddleware, conversationHandler.StartGroup)

	router.GET("/ws", gateway.Handle)

	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
