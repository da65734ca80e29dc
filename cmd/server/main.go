package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourorg/market-data-service/internal/config"
	"github.com/yourorg/market-data-service/internal/handler"
	"github.com/yourorg/market-data-service/internal/importer"
	"github.com/yourorg/market-data-service/internal/middleware"
	"github.com/yourorg/market-data-service/internal/pipeline"
	"github.com/yourorg/market-data-service/internal/registry"
	"github.com/yourorg/market-data-service/internal/repository"
	"github.com/yourorg/market-data-service/internal/series"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up logger
	logger, err := createLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Connect to database
	db, err := connectToDB(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Open the time-series store
	store, err := series.Open(cfg.Data.Dir, logger)
	if err != nil {
		logger.Fatal("Failed to open time-series store", zap.Error(err))
	}

	// Initialize the registry: bulk metadata load + index warm-up.
	// A failure here is fatal, the service must not start unknown.
	meta := repository.NewStore(db, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	reg, err := registry.Open(ctx, meta, store, cfg.Kafka.DrainTimeout, logger)
	cancel()
	if err != nil {
		logger.Fatal("Failed to initialize registry", zap.Error(err))
	}

	// Initialize the bulk import scheduler
	session, err := importer.ParseSession(cfg.Import.SessionStart, cfg.Import.SessionEnd)
	if err != nil {
		logger.Fatal("Failed to parse trading session window", zap.Error(err))
	}
	source := importer.NewFileSource(cfg.Import.SourceDir)
	scheduler := importer.NewScheduler(reg, source, cfg.Import.Workers, session, logger)
	reg.AttachDrainer(scheduler)

	// Initialize the real-time ingestion pipeline
	connector := func(ctx context.Context) (pipeline.MessageSource, error) {
		return pipeline.ConnectKafka(ctx, pipeline.KafkaSourceConfig{
			Brokers:        cfg.Kafka.Brokers,
			Topic:          cfg.Kafka.Topic,
			GroupID:        cfg.Kafka.GroupID,
			ConnectTimeout: cfg.Kafka.ConnectTimeout,
			MaxRetries:     cfg.Kafka.MaxRetries,
		}, logger)
	}
	pipe := pipeline.New(reg, connector, cfg.Kafka.CodePrefixes, logger)
	if err := pipe.Start(context.Background()); err != nil {
		// Reads stay available without the live feed.
		logger.Error("Failed to start ingestion pipeline", zap.Error(err))
	} else {
		reg.AttachDrainer(pipe)
	}

	// Initialize handlers
	marketDataHandler := handler.NewMarketDataHandler(reg, logger)
	symbolHandler := handler.NewSymbolHandler(reg, logger)
	importHandler := handler.NewImportHandler(scheduler, pipe, logger)

	router := setupRouter(marketDataHandler, symbolHandler, importHandler, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Drain writers, then listeners, then release the stores.
	if err := reg.Shutdown(shutdownCtx); err != nil {
		logger.Error("Registry shutdown failed", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

func createLogger(level string) (*zap.Logger, error) {
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

func connectToDB(dbConfig config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.DBName,
		dbConfig.SSLMode,
	)

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(dbConfig.MaxOpenConns)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	return db, nil
}

func setupRouter(
	marketDataHandler *handler.MarketDataHandler,
	symbolHandler *handler.SymbolHandler,
	importHandler *handler.ImportHandler,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		symbols := v1.Group("/symbols")
		{
			symbols.GET("", symbolHandler.GetAllSymbols)
			symbols.PUT("", symbolHandler.UpsertSymbol)
			symbols.GET("/:code", symbolHandler.GetSymbol)
			symbols.DELETE("/:code", symbolHandler.DelistSymbol)
			symbols.GET("/:code/weights", symbolHandler.GetWeights)
			symbols.POST("/:code/weights", symbolHandler.AppendWeight)
		}

		v1.GET("/markets", symbolHandler.GetMarkets)
		v1.PUT("/holidays", symbolHandler.ReplaceHolidays)

		marketData := v1.Group("/market-data")
		{
			marketData.GET("/bars", marketDataHandler.GetBars)
			marketData.GET("/ticks", marketDataHandler.GetTicks)
		}

		v1.POST("/imports", importHandler.RunImport)
		v1.GET("/ingestion/status", importHandler.IngestionStatus)
	}
	return router
}
