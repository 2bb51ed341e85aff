package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"gw-settlement-guard/internal/api/handlers"
	"gw-settlement-guard/internal/api/middlew"
	"gw-settlement-guard/internal/config"
	"gw-settlement-guard/internal/db"
	"gw-settlement-guard/internal/kafka"
	"gw-settlement-guard/internal/ratesource"
	"gw-settlement-guard/internal/server"
	"gw-settlement-guard/internal/service"
	"gw-settlement-guard/internal/storage/postgres"
	"gw-settlement-guard/pkg/logger"
)

type App struct {
	log             *slog.Logger
	server          *server.Server
	pool            *pgxpool.Pool
	logFile         *os.File
	cfg             *config.Config
	identityService service.Identity
	ratesService    *service.RatesService
	exposureService service.Exposure
	limitService    service.Limits
	ingestService   *service.IngestService
	rateClient      ratesource.Client
	kafkaProducer   kafka.Producer
}

func NewApp() (*App, error) {
	loggerWithFile := logger.NewLoggerWithFile("guard.log")
	log := loggerWithFile.Logger
	log.Info("инициализация приложения")

	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации конфига: %w", err)
	}
	log.Info("конфигурация загружена", slog.String("port", cfg.HTTPPort))

	log.Info("выполнение миграций базы данных")
	if err := db.RunMigrations(cfg.DB.MigrationURL(), "migrations"); err != nil {
		return nil, fmt.Errorf("ошибка выполнения миграций: %w", err)
	}
	log.Info("миграции успешно применены")

	poolCfg := db.PoolConfig{
		MaxConns:          200,
		MinConns:          10,
		HealthCheckPeriod: 30 * time.Second,
		PoolTimeout:       5 * time.Second,
		RetryAttempts:     5,
		RetryDelay:        1 * time.Second,
		ApplicationName:   "gw-settlement-guard",
	}

	pool, err := db.NewPool(context.Background(), cfg.DB.DSN(), poolCfg, log)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к базе данных: %w", err)
	}
	log.Info("подключение к базе данных установлено")

	rateClient := ratesource.NewHTTPClient(cfg.Rates.FeedURL, cfg.Rates.FeedTimeout, log)

	var kafkaProducer kafka.Producer
	if cfg.Kafka.Enabled {
		log.Info("инициализация kafka producer", slog.Any("brokers", cfg.Kafka.Brokers))
		kafkaProducer, err = kafka.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return nil, fmt.Errorf("ошибка инициализации kafka: %w", err)
		}
	} else {
		log.Info("kafka отключен в конфигурации")
		kafkaProducer = kafka.NewNoOpProducer(log)
	}

	srv := server.NewServer(cfg.HTTPPort)
	log.Info("сервер инициализирован", slog.String("port", cfg.HTTPPort))
	srv.Router.Use(middleware.RequestID)
	srv.Router.Use(middlew.WithLogger(log))
	srv.Router.Use(middleware.RealIP)
	srv.Router.Use(middleware.Recoverer)
	srv.RegisterSwagger()
	srv.RegisterMetrics()

	return &App{
		log:             log,
		server:          srv,
		pool:            pool,
		logFile:         loggerWithFile.LogFile,
		cfg:             cfg,
		identityService: service.NewIdentityService(cfg.JWT.Secret),
		rateClient:      rateClient,
		kafkaProducer:   kafkaProducer,
	}, nil
}

func (a *App) BuildRatesLayer() {
	rateRepo := postgres.NewRateRepository(a.pool)

	a.ratesService = service.NewRatesService(
		rateRepo,
		a.rateClient,
		a.cfg.Rates.CacheExpiration,
		a.cfg.Rates.StalenessThreshold,
		a.cfg.Rates.RefreshInterval,
		a.log,
	)

	ratesHandler := handlers.NewRatesHandler(a.ratesService)

	a.server.Router.Get("/api/v1/exchange/rates", ratesHandler.GetExchangeRates)

	a.log.Info("слой 'rates' собран и маршруты зарегистрированы")
}

func (a *App) BuildExposureLayer() error {
	if a.ratesService == nil {
		err := errors.New("ratesService not initialized, call BuildRatesLayer first")
		a.log.Error(err.Error())
		return err
	}

	exposureRepo := postgres.NewExposureRepository(a.pool)
	settlementRepo := postgres.NewSettlementRepository(a.pool)
	limitRepo := postgres.NewLimitRepository(a.pool)

	a.exposureService = service.NewExposureService(exposureRepo, settlementRepo, a.ratesService, a.log)
	a.limitService = service.NewLimitService(limitRepo, a.cfg.Exposure.DefaultLimit())

	a.log.Info("слой 'exposure' собран")
	return nil
}

func (a *App) BuildWorkflowLayer() error {
	if a.exposureService == nil || a.limitService == nil {
		err := errors.New("exposure layer not initialized, call BuildExposureLayer first")
		a.log.Error(err.Error())
		return err
	}

	txManager := service.NewPgxTxManager(a.pool)
	settlementRepo := postgres.NewSettlementRepository(a.pool)
	activityRepo := postgres.NewActivityRepository(a.pool)

	workflowService := service.NewWorkflowService(
		settlementRepo,
		activityRepo,
		a.exposureService,
		a.limitService,
		txManager,
		a.log,
	)

	a.ingestService = service.NewIngestService(
		settlementRepo,
		a.exposureService,
		a.limitService,
		txManager,
		a.kafkaProducer,
		a.log,
	)

	settlementHandler := handlers.NewSettlementHandler(a.ingestService, workflowService)
	workflowHandler := handlers.NewWorkflowHandler(workflowService)

	a.server.Router.Group(func(r chi.Router) {
		r.Use(middlew.RequireIdentity(a.identityService))

		r.Post("/api/v1/settlements", settlementHandler.Ingest)
		r.Get("/api/v1/settlements/{settlementID}/{version}/status", settlementHandler.QueryStatus)
		r.Post("/api/v1/settlements/{settlementID}/{version}/request-release", workflowHandler.RequestRelease)
		r.Post("/api/v1/settlements/{settlementID}/{version}/authorise", workflowHandler.Authorise)
		r.Post("/api/v1/exposure/recalculate", workflowHandler.Recalculate)
	})

	a.log.Info("слой 'workflow' собран и маршруты зарегистрированы")
	return nil
}

func (a *App) Run() error {
	a.log.Info("сервер запускается")

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("ошибка запуска сервера: %w", err)
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-shutdownChan:
		a.log.Info("получен сигнал завершения", slog.String("signal", sig.String()))
	}

	a.log.Info("приложение останавливается")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.ingestService != nil {
		a.log.Info("остановка ingest service")
		if err := a.ingestService.Shutdown(ctx); err != nil {
			a.log.Error("ошибка при остановке ingest service", slog.String("error", err.Error()))
		}
	}

	if a.ratesService != nil {
		a.log.Info("остановка rates service")
		if err := a.ratesService.Shutdown(ctx); err != nil {
			a.log.Error("ошибка при остановке rates service", slog.String("error", err.Error()))
		}
	}

	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Error("ошибка при остановке http сервера", slog.String("error", err.Error()))
	}

	if a.kafkaProducer != nil {
		a.log.Info("закрытие kafka producer")
		if err := a.kafkaProducer.Close(); err != nil {
			a.log.Error("ошибка при закрытии kafka producer", slog.String("error", err.Error()))
		}
	}

	if a.rateClient != nil {
		if err := a.rateClient.Close(); err != nil {
			a.log.Error("ошибка при закрытии клиента источника курсов", slog.String("error", err.Error()))
		}
	}

	a.log.Info("закрытие соединения с базой данных")
	a.pool.Close()

	a.log.Info("закрытие файла логов")
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			a.log.Error("ошибка при закрытии файла логов", slog.String("error", err.Error()))
		}
	}

	a.log.Info("приложение остановлено")
	return nil
}
