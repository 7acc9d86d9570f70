package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/vidaplus/sghss/internal/model"
)

// AuditQuerier は監査ログ検索に必要なインターフェース。
// audit.Recorderが実装する。
type AuditQuerier interface {
	Query(ctx context.Context, filter model.AuditFilter) ([]*model.AuditEntry, error)
}

// AuditHandler は監査ログ参照のHTTPハンドラー。
type AuditHandler struct {
	querier AuditQuerier
}

// NewAuditHandler はAuditHandlerを生成する。
func NewAuditHandler(querier AuditQuerier) *AuditHandler {
	return &AuditHandler{querier: querier}
}

type auditActorResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Nome  string `json:"nome"`
}

// auditEntryResponse は監査ログ1件のAPIレスポンス。
// システム起因のエントリではuserIdとuserがnullになる。
type auditEntryResponse struct {
	ID        int64               `json:"id"`
	Action    string              `json:"action"`
	UserID    *string             `json:"userId"`
	Details   map[string]any      `json:"details"`
	IPAddress string              `json:"ipAddress"`
	Timestamp time.Time           `json:"timestamp"`
	User      *auditActorResponse `json:"user"`
}

// List は監査ログを新しい順に最大100件返す。
// GET /audit?userId=&action=
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.AuditFilter{
		ActorID: strings.TrimSpace(q.Get("userId")),
		Action:  strings.ToUpper(strings.TrimSpace(q.Get("action"))),
	}
	if filter.ActorID != "" && !isValidUUID(filter.ActorID) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("userId inválido"))
		return
	}

	entries, err := h.querier.Query(r.Context(), filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toAuditEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toAuditEntryResponse(e *model.AuditEntry) auditEntryResponse {
	resp := auditEntryResponse{
		ID:        e.ID,
		Action:    e.Action,
		UserID:    e.ActorID,
		Details:   e.Details,
		IPAddress: e.SourceAddress,
		Timestamp: e.Timestamp,
	}
	if resp.Details == nil {
		resp.Details = map[string]any{}
	}
	if e.Actor != nil {
		resp.User = &auditActorResponse{
			ID:    e.Actor.ID,
			Email: e.Actor.Email,
			Nome:  e.Actor.Nome,
		}
	}
	return resp
}
