package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/echomind/backend/config"
	"github.com/echomind/backend/internal/api/handlers"
	"github.com/echomind/backend/internal/api/middleware"
	"github.com/echomind/backend/internal/api/routes"
	"github.com/echomind/backend/internal/cache"
	"github.com/echomind/backend/internal/logger"
	"github.com/echomind/backend/internal/providers/embedding"
	"github.com/echomind/backend/internal/providers/llm"
	mongorepo "github.com/echomind/backend/internal/repositories/mongo"
	pgrepo "github.com/echomind/backend/internal/repositories/postgres"
	"github.com/echomind/backend/internal/services"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()
	ctx := context.Background()

	// Init PostgreSQL
	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	if err := config.MigratePostgres(); err != nil {
		log.Fatalf("PostgreSQL migrate error: %v", err)
	}
	log.Info("PostgreSQL connected")

	// Init MongoDB
	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}
	log.Info("MongoDB connected")

	// Init Redis
	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	log.Info("Redis connected")

	// Capability providers
	model, err := llm.NewVertexGemini(ctx,
		os.Getenv("GOOGLE_PROJECT_ID"),
		os.Getenv("GOOGLE_LOCATION"),
		os.Getenv("LLM_MODEL"),
	)
	if err != nil {
		log.Fatalf("LLM provider init error: %v", err)
	}
	defer model.Close()

	embedder, err := embedding.NewGoogleGenAI(ctx,
		os.Getenv("GEMINI_API_KEY"),
		os.Getenv("EMBEDDING_MODEL"),
		log,
	)
	if err != nil {
		log.Fatalf("embedding provider init error: %v", err)
	}
	defer embedder.Close()

	// Repositories
	users := pgrepo.NewUserRepo(config.PostgresDB)
	convos := pgrepo.NewConversationRepo(config.PostgresDB)
	messages := pgrepo.NewMessageRepo(config.PostgresDB)
	analyses := mongorepo.NewAnalysisRepo(config.MongoDatabase())

	rcache := cache.NewRedisCache(config.RedisClient)

	// Services
	jwtSecret := os.Getenv("AUTH_JWT_SECRET")
	authSvc := services.NewAuthService(users, jwtSecret)
	convSvc := services.NewConversationService(convos, messages, analyses, model, rcache, log)
	chatSvc := services.NewChatService(convos, messages, embedder, model, rcache, log)
	querySvc := services.NewQueryService(convos, messages, embedder, model, services.QueryConfig{}, log)

	// HTTP
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	routes.RegisterRoutes(r, routes.Deps{
		JWTSecret:    jwtSecret,
		Auth:         handlers.NewAuthHandler(authSvc),
		Conversation: handlers.NewConversationHandler(convSvc, querySvc),
		Chat:         handlers.NewChatHandler(chatSvc),
		WS:           handlers.NewWSHandler(chatSvc),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
