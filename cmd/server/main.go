package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	authapp "recharge-server/internal/application/auth"
	historyapp "recharge-server/internal/application/history"
	ledgerapp "recharge-server/internal/application/ledger"
	rechargeapp "recharge-server/internal/application/recharge"
	"recharge-server/internal/domain/catalog"
	"recharge-server/internal/domain/provider"
	"recharge-server/internal/domain/service"
	"recharge-server/internal/infrastructure/cache"
	cataloginfra "recharge-server/internal/infrastructure/catalog"
	"recharge-server/internal/infrastructure/config"
	"recharge-server/internal/infrastructure/messaging/kafka"
	otelinfra "recharge-server/internal/infrastructure/observability/otel"
	"recharge-server/internal/infrastructure/persistence/mysql"
	"recharge-server/internal/infrastructure/provider/fake"
	"recharge-server/internal/infrastructure/provider/httpgateway"
	"recharge-server/internal/infrastructure/scheduler"
	grpcserver "recharge-server/internal/presentation/grpc"
	"recharge-server/internal/presentation/rest"
)

// auditPublisher 監査アラートの送信先（終了時に閉じる）
type auditPublisher interface {
	rechargeapp.AuditAlertPublisher
	Close() error
}

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// OpenTelemetryの初期化
	tracerShutdown, err := otelinfra.InitTracer(&cfg.OpenTelemetry)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	meterShutdown, err := otelinfra.InitMeter(&cfg.OpenTelemetry)
	if err != nil {
		log.Fatalf("Failed to initialize meter: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown meter: %v", err)
		}
	}()

	// ロガーとメトリクスの初期化
	logger, err := otelinfra.NewLoggerWithLevel(otelinfra.Tracer("recharge-server"), cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics, err := otelinfra.NewMetrics("recharge-server")
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	ctx := context.Background()

	// データベース接続の初期化
	db, err := mysql.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// リポジトリの初期化
	balanceRepo := mysql.NewBalanceRepository(db)
	holdRepo := mysql.NewHoldRepository(db)
	creditRepo := mysql.NewCreditRepository(db)
	transactionRepo := mysql.NewTransactionRepository(db)
	txManager := mysql.NewTransactionManager(db)
	var packageRepo catalog.PackageRepository = mysql.NewPackageRepository(db)

	// Redis（有効な場合のみ）
	var guard rechargeapp.AttemptGuard = cache.NewLocalAttemptGuard()
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewClient(&cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisClient.Close()

		guard = cache.NewAttemptGuard(redisClient, cfg.Redis.IdempotencyTTL)
		packageRepo = cache.NewCachedPackageRepository(packageRepo, redisClient, cfg.Redis.CatalogTTL, logger)
	}

	// 事業者レジストリとゲートウェイ
	operators, err := config.LoadOperators(cfg.Provider.OperatorsFile)
	if err != nil {
		log.Fatalf("Failed to load operators: %v", err)
	}
	if err := config.CheckOperatorTimeouts(operators, cfg.Provider.Timeout, cfg.Settlement.ReservationMaxAge); err != nil {
		log.Fatalf("Invalid operator timeout: %v", err)
	}
	registry, err := cataloginfra.NewRegistry(operators)
	if err != nil {
		log.Fatalf("Failed to build operator registry: %v", err)
	}

	var gateway provider.Gateway
	switch cfg.Provider.Mode {
	case "fake":
		outcome, err := fake.ParseOutcome(cfg.Provider.FakeOutcome)
		if err != nil {
			log.Fatalf("Invalid fake provider outcome: %v", err)
		}
		gateway = fake.New(outcome)
		logger.Warn(ctx, "Using fake recharge provider", map[string]interface{}{"outcome": cfg.Provider.FakeOutcome})
	default:
		gateway = httpgateway.New(operators, cfg.Provider.Timeout)
	}

	// 監査アラートの送信先
	var publisher auditPublisher = kafka.NewLogPublisher(logger)
	if cfg.Kafka.Enabled {
		publisher = kafka.NewAuditPublisher(kafka.NewWriter(&cfg.Kafka, logger))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Printf("Failed to close audit publisher: %v", err)
		}
	}()

	// アプリケーションサービスの初期化
	ledger := ledgerapp.NewLedger(balanceRepo, holdRepo, creditRepo, txManager, logger, metrics)
	recorder := rechargeapp.NewTransactionLogger(transactionRepo, publisher, cfg.Settlement.AuditWriteTimeout, logger, metrics)
	rechargeService := rechargeapp.NewRechargeApplicationService(
		registry,
		service.NewPriceResolver(packageRepo),
		ledger,
		gateway,
		recorder,
		guard,
		logger,
		metrics,
	)
	historyService := historyapp.NewHistoryApplicationService(transactionRepo, logger, metrics)

	// 期限切れ確保の回収
	sweeper, err := scheduler.NewReservationSweeper(
		cfg.Settlement.SweepSchedule,
		rechargeService,
		cfg.Settlement.ReservationMaxAge,
		cfg.Settlement.SweepBatchSize,
		logger,
	)
	if err != nil {
		log.Fatalf("Failed to create reservation sweeper: %v", err)
	}

	// REST APIルーターの初期化
	router := rest.NewRouter(cfg, logger, metrics, rest.Dependencies{
		Settler:        rechargeService,
		Ledger:         ledger,
		HistoryService: historyService,
		Tokens:         authapp.NewTokenIssuer(&cfg.JWT, logger),
		Health:         db,
	})

	// gRPCサーバーの初期化
	grpcSrv, err := grpcserver.NewServer(cfg, logger, rechargeService, ledger)
	if err != nil {
		log.Fatalf("Failed to create gRPC server: %v", err)
	}

	address := fmt.Sprintf(":%d", cfg.Server.Port)

	// グレースフルシャットダウンの設定
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	sweeper.Start()

	go func() {
		logger.Info(ctx, "REST API server starting", map[string]interface{}{
			"address":   address,
			"operators": registry.Len(),
		})
		if err := router.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "REST API server error", err, nil)
		}
	}()

	go func() {
		if err := grpcSrv.Start(); err != nil {
			logger.Error(ctx, "gRPC server error", err, nil)
		}
	}()

	<-quit
	logger.Info(ctx, "Shutting down servers", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := router.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Error shutting down REST API server", err, nil)
	}
	if err := grpcSrv.Stop(shutdownCtx); err != nil {
		logger.Error(ctx, "Error shutting down gRPC server", err, nil)
	}
	// 実行中の回収は確保の解放まで待つ
	if err := sweeper.Stop(shutdownCtx); err != nil {
		logger.Error(ctx, "Error stopping reservation sweeper", err, nil)
	}

	logger.Info(ctx, "Servers stopped", nil)
}
