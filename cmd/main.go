package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"catalog-service/internal/cache"
	"catalog-service/internal/config"
	"catalog-service/internal/events"
	"catalog-service/internal/handlers"
	"catalog-service/internal/middleware"
	"catalog-service/internal/repository"
	"catalog-service/internal/service"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize Redis. A failed connection degrades to the no-op cache so
	// reads fall through to the store instead of failing.
	var catalogCache cache.Cache = cache.Disabled{}
	var redisClient *redis.Client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (caching disabled)", err)
	} else {
		redisClient = redis.NewClient(redisOpts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("WARNING: Failed to connect to Redis: %v (caching disabled)", err)
			redisClient = nil
		} else {
			log.Println("Redis connected successfully")
			catalogCache = cache.NewRedis(redisClient, "catalog:")
		}
		cancel()
	}

	// Initialize event publisher only when NATS is configured. A nil
	// publisher drops events silently.
	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		publisher, err = events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without events)", err)
		} else {
			log.Println("Events publisher initialized")
		}
	} else {
		log.Println("NATS_URL not set, skipping event publishing initialization")
	}
	defer publisher.Close()

	// Repositories
	categoriesRepo := repository.NewCategoriesRepository(db)
	productsRepo := repository.NewProductsRepository(db)
	variationsRepo := repository.NewVariationsRepository(db)

	// Services
	categoryService := service.NewCategoryService(categoriesRepo, productsRepo, catalogCache, logger, publisher)
	productService := service.NewProductService(productsRepo, variationsRepo, categoriesRepo, catalogCache, logger, publisher)

	// Handlers
	categoriesHandler := handlers.NewCategoriesHandler(categoryService)
	productsHandler := handlers.NewProductsHandler(productService)
	exportHandler := handlers.NewExportHandler(productService)
	healthHandler := handlers.NewHealthHandler(db, redisClient)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health check endpoints (no auth required)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	api := router.Group("/api/v1")
	api.Use(middleware.ActorContext())
	{
		products := api.Group("/products")
		{
			products.GET("", productsHandler.ListProducts)
			products.POST("/search", productsHandler.SearchProducts)
			products.GET("/count", productsHandler.CountProducts)
			products.GET("/suggestions", productsHandler.GetSuggestions)
			products.GET("/:id", productsHandler.GetProduct)
			products.GET("/:id/variations", productsHandler.ListVariations)

			admin := products.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				admin.POST("", productsHandler.CreateProduct)
				admin.PUT("/:id", productsHandler.UpdateProduct)
				admin.DELETE("/:id", productsHandler.DeleteProduct)
				admin.POST("/:id/images", productsHandler.AddProductImages)
				admin.DELETE("/:id/images/:imageId", productsHandler.RemoveProductImage)
				admin.POST("/:id/variations", productsHandler.CreateVariation)
				admin.PUT("/:id/variations/:variationId", productsHandler.UpdateVariation)
				admin.DELETE("/:id/variations/:variationId", productsHandler.DeleteVariation)
				admin.POST("/export", exportHandler.ExportProducts)
			}
		}

		categories := api.Group("/categories")
		{
			categories.GET("", categoriesHandler.ListCategories)
			categories.GET("/:id", categoriesHandler.GetCategory)

			admin := categories.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				admin.POST("", categoriesHandler.CreateCategory)
				admin.PUT("/:id", categoriesHandler.UpdateCategory)
				admin.DELETE("/:id", categoriesHandler.DeleteCategory)
			}
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Catalog service starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down catalog-service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	log.Println("Catalog service stopped")
}
