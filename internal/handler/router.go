package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vidaplus/sghss/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	TrustProxyHeaders bool
	RateLimiter       *middleware.RateLimiter
	TokenVerifier     middleware.TokenVerifier
	AuditRecorder     middleware.AuditRecorder
	HTTPObserver      middleware.HTTPObserver

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface

	// 患者・監査
	PatientService PatientServiceInterface
	AuditQuerier   AuditQuerier
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	[RealIP] → Logging → [Metrics] → Recovery → SecurityHeaders → CORS
//	  認証必須ルート: AuthGate → RateLimit(General) → Audit
//
// /auth/register、/auth/login、/health、/metrics は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// X-Forwarded-For等はプロキシ配下でのみ信用する
	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPObserver != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPObserver))
	}
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	patientHandler := NewPatientHandler(deps.PatientService)
	auditHandler := NewAuditHandler(deps.AuditQuerier)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthGate(deps.TokenVerifier))
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Get("/me", authHandler.Me)
		})
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: AuthGate → RateLimit(General) → Audit
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthGate(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewAuditMiddleware(deps.AuditRecorder))

		r.Get("/audit", auditHandler.List)

		r.Route("/patients", func(r chi.Router) {
			r.Post("/", patientHandler.Create)
			r.Get("/", patientHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", patientHandler.Get)
				r.Patch("/", patientHandler.Update)
				r.Delete("/", patientHandler.Delete)
			})
		})
	})

	return r
}
