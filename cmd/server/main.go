package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"traffic-signal-go/internal/client"
	"traffic-signal-go/internal/config"
	"traffic-signal-go/internal/congestion"
	"traffic-signal-go/internal/database"
	"traffic-signal-go/internal/emitter"
	"traffic-signal-go/internal/grpcserver"
	"traffic-signal-go/internal/handler"
	"traffic-signal-go/internal/history"
	"traffic-signal-go/internal/repository"
	"traffic-signal-go/internal/service"
	"traffic-signal-go/internal/signal"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// Получаем конфигурацию из .env, окружения и YAML
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем логгер
	logger := newLogger(cfg)
	logger.WithField("intersection", cfg.IntersectionID).Info("Запуск Traffic Signal Controller")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	classifier, err := congestion.NewClassifier(cfg.Classifier.Boundaries)
	if err != nil {
		logger.Fatalf("Ошибка создания классификатора: %v", err)
	}

	// Публикация смен фаз в MQTT
	controllerOpts := []signal.Option{signal.WithTickInterval(cfg.Signal.TickInterval)}
	var mqttEmitter *emitter.MQTTEmitter
	if cfg.MQTT.Enabled {
		mqttEmitter = emitter.NewMQTTEmitter(cfg.MQTT, cfg.IntersectionID, logger)
		if err := mqttEmitter.Connect(ctx); err != nil {
			logger.Errorf("MQTT недоступен, публикация отключена: %v", err)
			mqttEmitter = nil
		} else {
			controllerOpts = append(controllerOpts, signal.WithObserver(mqttEmitter))
			go mqttEmitter.Run(ctx)
			logger.Infof("Смены фаз публикуются в %s", mqttEmitter.Topic())
		}
	}

	controller, err := signal.NewController(cfg.Signal.Timing, logger, controllerOpts...)
	if err != nil {
		logger.Fatalf("Ошибка создания контроллера: %v", err)
	}

	// Инициализируем базу данных
	var congestionRepo repository.CongestionRepository
	if cfg.Database.Enabled {
		logger.Info("Подключение к базе данных...")
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logger.Fatalf("Ошибка подключения к базе данных: %v", err)
		}
		defer database.Close(db)

		logger.Info("Выполнение миграций базы данных...")
		if err := database.Migrate(db); err != nil {
			logger.Fatalf("Ошибка выполнения миграций: %v", err)
		}
		if err := database.HealthCheck(db); err != nil {
			logger.Fatalf("База данных недоступна: %v", err)
		}
		logger.Info("База данных успешно подключена и готова к работе")

		congestionRepo = repository.NewCongestionRepository(db)
	}

	// Инициализируем сервисы
	trafficService := service.NewTrafficService(
		classifier,
		controller,
		history.NewRing(cfg.History.Capacity),
		congestionRepo,
		logger,
		service.Options{
			IntersectionID: cfg.IntersectionID,
			GridRows:       cfg.Classifier.GridRows,
			GridCols:       cfg.Classifier.GridCols,
			MinConfidence:  cfg.Detector.MinConfidence,
		},
	)
	if mqttEmitter != nil {
		trafficService.WithPublisher(mqttEmitter)
	}

	controller.Start()
	defer controller.Stop()

	if congestionRepo != nil && cfg.Database.Retention > 0 {
		go trafficService.RunRetention(ctx, cfg.Database.Retention, time.Hour)
	}

	// Опрос внешнего детектора
	if cfg.Detector.BaseURL != "" {
		detector := client.NewDetectorClient(cfg.Detector.BaseURL, cfg.Detector.Timeout, logger)
		trafficService.WithDetector(detector)
		poller := service.NewDetectionPoller(detector, trafficService, cfg.Detector.PollInterval, logger)
		go poller.Run(ctx)
		logger.Infof("Опрос детектора %s каждые %s", detector.BaseURL(), cfg.Detector.PollInterval)
	}

	var grpcServer *grpcserver.Server
	if cfg.GRPC.Enabled {
		grpcServer = grpcserver.NewServer(controller, logger)
		go grpcServer.Watch(ctx)
		go func() {
			if err := grpcServer.Serve(cfg.GRPC.Port); err != nil {
				logger.Errorf("Ошибка gRPC сервера: %v", err)
			}
		}()
	}

	// Инициализируем обработчики
	trafficHandler := handler.NewTrafficHandler(trafficService, logger)

	// Настраиваем Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Добавляем middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Регистрируем маршруты
	trafficHandler.RegisterRoutes(router)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Сервер запущен на %s", serverAddr)
		logger.Infof("API доступно по адресу: http://localhost:%d/api/v1", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Ошибка запуска сервера: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	ossignal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Остановка сервера...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Ошибка остановки HTTP сервера: %v", err)
	}
	if grpcServer != nil {
		grpcServer.Stop()
	}
	cancel()
	if mqttEmitter != nil {
		mqttEmitter.Disconnect()
	}

	logger.Info("Сервер остановлен")
}

// newLogger настраивает logrus по конфигурации
func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Logging.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// corsMiddleware добавляет заголовки CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
