package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/delivery-platform/delivery-rate-service/pkg/errors"
	"github.com/delivery-platform/delivery-rate-service/pkg/kafka"
	"github.com/delivery-platform/delivery-rate-service/pkg/logging"
	"github.com/delivery-platform/delivery-rate-service/pkg/metrics"
	"github.com/delivery-platform/delivery-rate-service/pkg/middleware"
	"github.com/delivery-platform/delivery-rate-service/pkg/mongodb"
	"github.com/delivery-platform/delivery-rate-service/pkg/resilience"

	"github.com/delivery-platform/delivery-rate-service/internal/application"
	"github.com/delivery-platform/delivery-rate-service/internal/domain"
	"github.com/delivery-platform/delivery-rate-service/internal/infrastructure/geocoding"
	"github.com/delivery-platform/delivery-rate-service/internal/infrastructure/messaging"
	mongoRepo "github.com/delivery-platform/delivery-rate-service/internal/infrastructure/mongodb"
	"github.com/delivery-platform/delivery-rate-service/internal/infrastructure/routing"
)

const serviceName = "delivery-rate-service"

func main() {
	// Setup logger
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting delivery-rate-service API")

	config := loadConfig()
	ctx := context.Background()

	// Initialize Prometheus metrics
	metricsConfig := metrics.DefaultConfig(serviceName)
	m := metrics.New(metricsConfig)
	logger.Info("Metrics initialized")

	// Initialize MongoDB
	mongoClient, err := mongodb.NewClient(ctx, config.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	// Initialize Kafka producer and event publisher
	kafkaProducer := kafka.NewProducer(config.Kafka)
	publisher := messaging.NewKafkaEventPublisher(kafkaProducer, m, logger)
	defer publisher.Close()
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)

	// Initialize repositories
	lineRepo := mongoRepo.NewLineRepository(mongoClient.Database())
	settingsRepo := mongoRepo.NewSettingsRepository(mongoClient.Database())

	// Initialize external providers
	routingBreaker := resilience.NewCircuitBreaker(
		resilience.DefaultCircuitBreakerConfig("routing-provider"), logger.Logger)
	routingProvider := routing.NewOSRMAdapter(config.RoutingAPIURL, m, logger)
	geocoder := geocoding.NewNominatimAdapter(config.GeocodingAPIURL, config.GeocodingUserAgent, m, logger)

	// Initialize application services
	engine := application.NewDistanceEngine(routingProvider, routingBreaker, m, logger)
	ratingService := application.NewRatingApplicationService(
		lineRepo,
		settingsRepo,
		geocoder,
		engine,
		publisher,
		m,
		logger,
	)

	// Setup Gin router with middleware
	router := gin.New()

	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	middleware.Setup(router, middlewareConfig)
	router.Use(middleware.MetricsMiddleware(m))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	// Health check endpoints
	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return mongoClient.HealthCheck(ctx)
	}))

	// Metrics endpoint
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	// API v1 routes - delivery lines
	api := router.Group("/api/v1/delivery-lines")
	{
		api.POST("", createLineHandler(ratingService, logger))
		api.GET("/:lineId", getLineHandler(ratingService, logger))
		api.POST("/:lineId/quote", quoteLineHandler(ratingService, logger))
		api.POST("/:lineId/recalculate", recalculateLineHandler(ratingService, logger))
		api.GET("/order/:orderId", getByOrderHandler(ratingService, logger))
		api.POST("/order/:orderId/recalculate", recalculateOrderHandler(ratingService, logger))
	}

	// API v1 routes - self-service availability
	availability := router.Group("/api/v1/availability")
	{
		availability.POST("/self-service", selfServiceAvailabilityHandler(ratingService, logger))
	}

	// API v1 routes - operator settings
	settings := router.Group("/api/v1/settings")
	{
		settings.GET("/rates", getRateSettingsHandler(settingsRepo, logger))
		settings.PUT("/rates", updateRateSettingsHandler(settingsRepo, logger))
	}

	// Start server
	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}

// Config holds application configuration
type Config struct {
	ServerAddr         string
	RoutingAPIURL      string
	GeocodingAPIURL    string
	GeocodingUserAgent string
	MongoDB            *mongodb.Config
	Kafka              *kafka.Config
}

func loadConfig() *Config {
	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = []string{getEnv("KAFKA_BROKERS", "localhost:9092")}
	kafkaConfig.ClientID = serviceName

	return &Config{
		ServerAddr:         getEnv("SERVER_ADDR", ":8080"),
		RoutingAPIURL:      getEnv("ROUTING_API_URL", "https://router.project-osrm.org"),
		GeocodingAPIURL:    getEnv("GEOCODING_API_URL", "https://nominatim.openstreetmap.org"),
		GeocodingUserAgent: getEnv("GEOCODING_USER_AGENT", "delivery-rate-service/1.0"),
		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "delivery_db"),
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
			MinPoolSize:    10,
		},
		Kafka: kafkaConfig,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Request bodies

type addressRequest struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

func (r addressRequest) toDomain() domain.Address {
	return domain.Address{
		Street:     r.Street,
		City:       r.City,
		State:      r.State,
		PostalCode: r.PostalCode,
		Country:    r.Country,
	}
}

type cartItemRequest struct {
	ProductName string  `json:"productName" binding:"required"`
	ProductType string  `json:"productType" binding:"required,product_type"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
}

// HTTP Handlers

func createLineHandler(service *application.RatingApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			LineID       string         `json:"lineId" binding:"required"`
			OrderID      string         `json:"orderId" binding:"required"`
			CustomerName string         `json:"customerName"`
			Address      addressRequest `json:"address"`
			Latitude     *float64       `json:"latitude" binding:"omitempty,latitude"`
			Longitude    *float64       `json:"longitude" binding:"omitempty,longitude"`
			DeferQuote   bool           `json:"deferQuote"`
		}

		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		cmd := application.CreateLineCommand{
			LineID:       req.LineID,
			OrderID:      req.OrderID,
			CustomerName: req.CustomerName,
			Address:      req.Address.toDomain(),
			Latitude:     req.Latitude,
			Longitude:    req.Longitude,
		}

		line, err := service.CreateLine(c.Request.Context(), cmd)
		if err != nil {
			respondError(responder, err)
			return
		}

		if req.DeferQuote {
			c.JSON(http.StatusCreated, line)
			return
		}

		// A manually entered delivery line gets its price immediately.
		result, err := service.QuoteLine(c.Request.Context(), application.QuoteLineCommand{LineID: req.LineID})
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

func getLineHandler(service *application.RatingApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		query := application.GetLineQuery{LineID: c.Param("lineId")}

		line, err := service.GetLine(c.Request.Context(), query)
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, line)
	}
}

func getByOrderHandler(service *application.RatingApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		query := application.GetByOrderQuery{OrderID: c.Param("orderId")}

		lines, err := service.GetLinesByOrder(c.Request.Context(), query)
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"orderId": query.OrderID, "lines": lines})
	}
}

func quoteLineHandler(service *application.RatingApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		cmd := application.QuoteLineCommand{LineID: c.Param("lineId")}

		result, err := service.QuoteLine(c.Request.Context(), cmd)
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func recalculateLineHandler(service *application.RatingApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		cmd := application.RecalculateLineCommand{LineID: c.Param("lineId")}

		result, err := service.RecalculateLine(c.Request.Context(), cmd)
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func recalculateOrderHandler(service *application.RatingApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		cmd := application.RecalculateOrderCommand{OrderID: c.Param("orderId")}

		results, err := service.RecalculateOrder(c.Request.Context(), cmd)
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"orderId": cmd.OrderID, "lines": results})
	}
}

func selfServiceAvailabilityHandler(service *application.RatingApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Latitude  *float64          `json:"latitude" binding:"omitempty,latitude"`
			Longitude *float64          `json:"longitude" binding:"omitempty,longitude"`
			Address   *addressRequest   `json:"address"`
			Items     []cartItemRequest `json:"items" binding:"dive"`
		}

		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		cmd := application.CheckAvailabilityCommand{
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Items:     make([]domain.CartItem, 0, len(req.Items)),
		}
		if req.Address != nil {
			addr := req.Address.toDomain()
			cmd.Address = &addr
		}
		for _, item := range req.Items {
			cmd.Items = append(cmd.Items, domain.CartItem{
				ProductName: item.ProductName,
				ProductType: item.ProductType,
				Quantity:    item.Quantity,
			})
		}

		// Always 200: unavailability is a verdict, not an error.
		result := service.CheckSelfServiceAvailability(c.Request.Context(), cmd)
		c.JSON(http.StatusOK, result)
	}
}

func getRateSettingsHandler(repo *mongoRepo.SettingsRepository, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		cfg, err := repo.GetRateConfig(c.Request.Context())
		if err != nil {
			responder.RespondInternalError(err)
			return
		}

		c.JSON(http.StatusOK, cfg)
	}
}

func updateRateSettingsHandler(repo *mongoRepo.SettingsRepository, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cfg domain.RateConfig
		if appErr := middleware.BindAndValidate(c, &cfg); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		if err := cfg.Validate(); err != nil {
			responder.RespondWithAppError(errors.ErrValidation(err.Error()))
			return
		}

		if err := repo.SaveRateConfig(c.Request.Context(), cfg); err != nil {
			responder.RespondInternalError(err)
			return
		}

		c.JSON(http.StatusOK, cfg)
	}
}

func respondError(responder *middleware.ErrorResponder, err error) {
	if appErr, ok := err.(*errors.AppError); ok {
		responder.RespondWithAppError(appErr)
		return
	}
	responder.RespondInternalError(err)
}
