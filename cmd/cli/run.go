package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rulify/internal/config"
	"rulify/internal/handlers"
	"rulify/internal/ingest"
	"rulify/internal/middleware"
	"rulify/internal/models"
	"rulify/internal/observability"
	"rulify/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	gormtracing "gorm.io/plugin/opentelemetry/tracing"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the rulify rule engine server",
	Long:  `Run the rulify rule engine server`,
	Run:   run,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func run(cmd *cobra.Command, args []string) {
	cfg := config.Load()

	if err := config.InitLogger(cfg); err != nil {
		logrus.Fatalf("Failed to initialize logger: %v", err)
	}
	appLogger := logrus.StandardLogger()

	shutdownOTel, err := observability.SetupTracing(context.Background(), cfg)
	if err != nil {
		appLogger.Warnf("init tracing: %v", err)
	} else {
		defer func() { _ = shutdownOTel(context.Background()) }()
	}

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
			cfg.Database.Host, cfg.Database.User, cfg.Database.Password,
			cfg.Database.Name, cfg.Database.Port, cfg.Database.SSLMode, cfg.Database.TimeZone)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		appLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if cfg.Monitoring.Tracing.Enabled {
		_ = db.Use(gormtracing.NewPlugin())
	}

	if err := db.AutoMigrate(
		&models.AutomationRule{},
		&models.RuleExecution{},
		&models.ThresholdConfig{},
	); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	automationService := services.NewAutomationService(db, appLogger)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(otelgin.Middleware("rulify"))
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.RateLimitMiddleware(cfg))

	healthHandler := handlers.NewHealthHandler()
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	if cfg.Monitoring.Enabled {
		r.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	handlers.RegisterAutomationRoutes(api,
		handlers.NewRuleHandler(automationService),
		handlers.NewEvaluationHandler(automationService),
		handlers.NewThresholdHandler(automationService),
		handlers.NewReportHandler(automationService),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var consumer *ingest.Consumer
	if cfg.Kafka.Enabled {
		consumer = ingest.NewConsumer(cfg.Kafka, automationService, appLogger)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				appLogger.Errorf("ingest consumer stopped: %v", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		appLogger.Infof("rulify listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down...")

	cancel()
	if consumer != nil {
		_ = consumer.Close()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorf("Server shutdown: %v", err)
	}
}
