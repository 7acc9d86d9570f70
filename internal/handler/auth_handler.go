// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vidaplus/sghss/internal/auth"
	"github.com/vidaplus/sghss/internal/middleware"
	"github.com/vidaplus/sghss/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.Identity, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
}

// AuthHandler は登録・ログイン・現在ユーザー取得のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nome     string `json:"nome"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// identityResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type identityResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Nome      string     `json:"nome"`
	Role      model.Role `json:"role"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

type loginResponse struct {
	AccessToken string           `json:"access_token"`
	User        identityResponse `json:"user"`
}

// Register はユーザー登録を処理する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if reason := validateRegister(&req); reason != "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(reason))
		return
	}

	identity, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Nome:     strings.TrimSpace(req.Nome),
		Role:     model.Role(req.Role),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := toIdentityResponse(identity)
	resp.CreatedAt = &identity.CreatedAt
	writeJSON(w, http.StatusCreated, resp)
}

// Login はメールアドレスとパスワードで認証し、アクセストークンを返す。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Email == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("e-mail e senha são obrigatórios"))
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: result.AccessToken,
		User:        toIdentityResponse(result.Identity),
	})
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	resp := toIdentityResponse(identity)
	resp.CreatedAt = &identity.CreatedAt
	writeJSON(w, http.StatusOK, resp)
}

// validateRegister は登録リクエストを検証し、不正な場合は理由を返す。
func validateRegister(req *registerRequest) string {
	switch {
	case !isValidEmail(req.Email):
		return "e-mail inválido"
	case utf8.RuneCountInString(req.Password) < minPasswordLength:
		return "a senha deve ter no mínimo 8 caracteres"
	case len(req.Password) > maxPasswordBytes:
		return "a senha deve ter no máximo 72 bytes"
	case strings.TrimSpace(req.Nome) == "":
		return "nome é obrigatório"
	case req.Role == "":
		return "role é obrigatório"
	case !model.Role(req.Role).Valid():
		return "role deve ser USER, DOCTOR ou ADMIN"
	}
	return ""
}

func toIdentityResponse(identity *model.Identity) identityResponse {
	return identityResponse{
		ID:    identity.ID,
		Email: identity.Email,
		Nome:  identity.Nome,
		Role:  identity.Role,
	}
}
