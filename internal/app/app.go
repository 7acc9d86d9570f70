package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vidaplus/sghss/internal/audit"
	"github.com/vidaplus/sghss/internal/auth"
	"github.com/vidaplus/sghss/internal/config"
	"github.com/vidaplus/sghss/internal/database"
	"github.com/vidaplus/sghss/internal/handler"
	"github.com/vidaplus/sghss/internal/logger"
	"github.com/vidaplus/sghss/internal/metrics"
	"github.com/vidaplus/sghss/internal/middleware"
	"github.com/vidaplus/sghss/internal/patient"
	"github.com/vidaplus/sghss/internal/repository"
	"github.com/vidaplus/sghss/internal/security"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルを反映する
	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		return runHealthcheck(healthcheckPort())
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("log_level", cfg.LogLevel),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// healthcheckPort はConfigを読まずにサーバーの待ち受けポートを決める。
// 優先順位はSERVER_PORT、PORT、既定値3000。
func healthcheckPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "3000"
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = db.PingContext(pingCtx)
	pingCancel()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	identityRepo := repository.NewPostgresIdentityRepo(db)
	patientRepo := repository.NewPostgresPatientRepo(db)
	auditRepo := repository.NewPostgresAuditRepo(db)

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 認証サービスの初期化
	hasher, err := auth.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to create password hasher: %w", err)
	}
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: cfg.JWTSecret,
		TTL:    cfg.JWTExpiresIn,
		Issuer: cfg.JWTIssuer,
	}, identityRepo)
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}
	authService, err := auth.NewService(identityRepo, hasher, tokens, collector)
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}

	// 5. 監査レコーダーの起動
	recorder := audit.NewRecorder(auditRepo, slog.Default(), collector, audit.Config{
		QueueSize:    cfg.AuditQueueSize,
		WriteTimeout: cfg.AuditWriteTimeout,
	})
	recorder.Start(context.Background())

	// 6. 患者サービスとレート制限
	patientService := patient.NewService(patientRepo, security.NewTextSanitizer())

	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitLogin),
		collector,
	)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		RateLimiter:       rateLimiter,
		TokenVerifier:     tokens,
		AuditRecorder:     recorder,
		HTTPObserver:      collector,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),

		AuthService:    authService,
		PatientService: patientService,
		AuditQuerier:   recorder,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
		slog.Info("shutting down API server...")
	case err := <-serveErr:
		slog.Error("server listen error", slog.String("error", err.Error()))
		closeRecorder(recorder)
		return fmt.Errorf("server listen failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		closeRecorder(recorder)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// リクエストが止まってから残りの監査ログを書き切る
	closeRecorder(recorder)

	slog.Info("API server stopped gracefully")
	return nil
}

func closeRecorder(recorder *audit.Recorder) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := recorder.Close(ctx); err != nil {
		slog.Error("failed to drain audit queue", slog.String("error", err.Error()))
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
