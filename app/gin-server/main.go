package main

import (
	"context"
	"os"

	"github.com/cvcraft/cvcraft/config"
	"github.com/cvcraft/cvcraft/internal/api/handlers"
	"github.com/cvcraft/cvcraft/internal/api/middleware"
	"github.com/cvcraft/cvcraft/internal/api/routes"
	"github.com/cvcraft/cvcraft/internal/cache"
	"github.com/cvcraft/cvcraft/internal/logger"
	"github.com/cvcraft/cvcraft/internal/providers/worker"
	"github.com/cvcraft/cvcraft/internal/realtime"
	mongorepo "github.com/cvcraft/cvcraft/internal/repositories/mongo"
	pgrepo "github.com/cvcraft/cvcraft/internal/repositories/postgres"
	"github.com/cvcraft/cvcraft/internal/services"
	"github.com/cvcraft/cvcraft/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()
	ctx := context.Background()

	appCfg, err := config.LoadApp()
	if err != nil {
		log.WithError(err).Fatal("app config")
	}

	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init")
	}
	log.Info("PostgreSQL connected")

	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("Redis init")
	}
	log.Info("Redis connected")

	if err := config.InitMongo(); err != nil {
		log.WithError(err).Fatal("MongoDB init")
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.WithError(err).Fatal("MongoDB indexes")
	}
	log.Info("MongoDB connected")

	store, err := storage.NewGCSStore(ctx, appCfg.Bucket)
	if err != nil {
		log.WithError(err).Fatal("GCS init")
	}
	defer store.Close()

	cvRepo := pgrepo.NewCVRepo(config.PostgresDB)
	eventRepo := mongorepo.NewEventRepo(config.MongoDatabase())

	pub := realtime.NewRedisPublisher(config.RedisClient)
	cvCache := cache.NewRedisCache(config.RedisClient)

	cvService := services.NewCVService(cvRepo, store, cvCache, pub)
	dispatcher := worker.NewHTTPDispatcher(appCfg.GenerateWebhookURL, appCfg.OptimizeWebhookURL)
	genService := services.NewGenerationService(cvService, dispatcher, eventRepo, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	routes.RegisterRoutes(r, routes.Deps{
		CV:         handlers.NewCVHandler(cvService),
		Generation: handlers.NewGenerationHandler(genService, cvService),
		Callback:   handlers.NewCallbackHandler(genService, appCfg.CallbackSecret, log),
		WS:         handlers.NewWSHandler(cvService, config.RedisClient),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
