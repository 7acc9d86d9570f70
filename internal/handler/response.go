package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vidaplus/sghss/internal/middleware"
	"github.com/vidaplus/sghss/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限。
const maxRequestBodyBytes = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// decodeJSON はリクエストボディをvにデコードする。
// 未定義のフィールドを含む場合もデコード失敗として扱う。
// 失敗した場合は400を書き込んでfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	return true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// 想定外のエラーは詳細をログに残し、500の一般的なメッセージを返す。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrDuplicateIdentity):
		writeAPIErrorResponse(w, http.StatusConflict, model.NewDuplicateIdentityError())
	case errors.Is(err, model.ErrInvalidCredentials):
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
	case errors.Is(err, model.ErrUnauthenticated),
		errors.Is(err, model.ErrTokenInvalid),
		errors.Is(err, model.ErrTokenExpired),
		errors.Is(err, model.ErrSubjectNotFound):
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
	case errors.Is(err, model.ErrPatientNotFound):
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewPatientNotFoundError())
	case errors.Is(err, model.ErrDuplicatePatient):
		writeAPIErrorResponse(w, http.StatusConflict, model.NewDuplicatePatientError())
	default:
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
			return
		}
		slog.Error("internal server error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
	}
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeInvalidCreds, model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodePatientNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateIdentity, model.ErrCodeDuplicatePatient:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
