package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"

	"github.com/vidaplus/sghss/internal/audit"
)

// maxAuditBodyBytes は監査ログ用に取り込むリクエストボディの上限。
// 上限を超えたボディはハンドラーへはそのまま渡し、監査ログには含めない。
const maxAuditBodyBytes = 64 << 10

// AuditRecorder は監査ログの記録に必要なインターフェース。
// audit.Recorderが実装する。Recordは呼び出し元をブロックしない。
type AuditRecorder interface {
	Record(action, actorID string, details map[string]any, sourceAddress string)
}

// NewAuditMiddleware は状態を変更するリクエストの成功時に監査ログを記録するミドルウェアを返す。
// Auth Gateの内側に配置し、Recoveryの内側で動かすこと。
//
// 記録するのは次のすべてを満たす場合のみ:
//   - ハンドラーがpanicせずに戻った
//   - レスポンスステータスが2xx
//   - リクエストのコンテキストがキャンセルされていない
//   - 認証済みIdentityがあり、audit.Classifyがラベルを返した
func NewAuditMiddleware(recorder AuditRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			action := audit.Classify(r.Method, r.URL.Path)
			if identity == nil || action == "" {
				next.ServeHTTP(w, r)
				return
			}

			body := captureBody(r)
			addr := ClientAddress(r)
			url := r.URL.RequestURI()

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			if rec.statusCode < 200 || rec.statusCode > 299 {
				return
			}
			if r.Context().Err() != nil {
				return
			}

			recorder.Record(action, identity.ID, map[string]any{
				"method": r.Method,
				"url":    url,
				"body":   audit.Redact(audit.StripNUL(body)),
			}, addr)
		})
	}
}

// captureBody はリクエストボディを先読みし、ハンドラー用に元へ戻す。
// JSONオブジェクトとして解釈できない場合や上限を超えた場合はnilを返す。
func captureBody(r *http.Request) map[string]any {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}

	captured, err := io.ReadAll(io.LimitReader(r.Body, maxAuditBodyBytes+1))
	r.Body = readCloser{
		Reader: io.MultiReader(bytes.NewReader(captured), r.Body),
		Closer: r.Body,
	}
	if err != nil || len(captured) > maxAuditBodyBytes {
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal(captured, &parsed); err != nil {
		return nil
	}
	return parsed
}

type readCloser struct {
	io.Reader
	io.Closer
}

// ClientAddress はリクエスト元のアドレスを返す。
// TRUST_PROXY_HEADERS有効時はchiのRealIPがRemoteAddrを書き換えた後の値になる。
// 取得できない場合は "unknown" を返す。
func ClientAddress(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	if host == "" {
		return "unknown"
	}
	return host
}
