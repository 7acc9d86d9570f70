// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vidaplus/sghss/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	identityContextKey    = contextKey("identity")
	claimsContextKey      = contextKey("session_claims")
	requestInfoContextKey = contextKey("request_info")
)

// TokenVerifier はトークン検証に必要なインターフェース。
// auth.TokenServiceが実装する。
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*model.SessionClaims, *model.Identity, error)
}

// NewAuthGate はAuthorizationヘッダーのBearerトークンを検証するミドルウェアを返す。
// 検証に成功した場合のみIdentityとSessionClaimsをコンテキストに注入して次へ進む。
// 失敗理由にかかわらず401のレスポンスボディは同一で、理由はログにのみ残す。
func NewAuthGate(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				slog.Debug("auth gate rejected request",
					slog.String("path", r.URL.Path),
					slog.String("reason", "missing_bearer"),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			claims, identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				slog.Warn("auth gate rejected request",
					slog.String("path", r.URL.Path),
					slog.String("reason", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			if info := requestInfoFromContext(r.Context()); info != nil {
				info.userID = identity.ID
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			ctx = context.WithValue(ctx, claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken は "Bearer <token>" 形式のヘッダー値からトークンを取り出す。
// スキーム名の大文字小文字は区別しない。
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// IdentityFromContext はAuth Gateが注入したIdentityを取得する。
// ゲートを通過していないリクエストではnilを返す。
func IdentityFromContext(ctx context.Context) *model.Identity {
	identity, _ := ctx.Value(identityContextKey).(*model.Identity)
	return identity
}

// ClaimsFromContext はAuth Gateが注入したSessionClaimsを取得する。
func ClaimsFromContext(ctx context.Context) *model.SessionClaims {
	claims, _ := ctx.Value(claimsContextKey).(*model.SessionClaims)
	return claims
}

// ContextWithIdentity はコンテキストにIdentityを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// requestInfo はロギングミドルウェアが内側のミドルウェアから受け取る情報。
// Auth Gateはロギングより内側で動くため、ポインタ経由で書き戻す。
type requestInfo struct {
	userID string
}

func contextWithRequestInfo(ctx context.Context, info *requestInfo) context.Context {
	return context.WithValue(ctx, requestInfoContextKey, info)
}

func requestInfoFromContext(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoContextKey).(*requestInfo)
	return info
}
