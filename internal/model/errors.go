// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ドメイン層のセンチネルエラー。
// サービス層はfmt.Errorfの%wでラップして返し、ハンドラーはerrors.Isで判定する。
var (
	ErrDuplicateIdentity  = errors.New("identity already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrTokenExpired       = errors.New("token expired")
	ErrSubjectNotFound    = errors.New("token subject not found")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrPatientNotFound    = errors.New("patient not found")
	ErrDuplicatePatient   = errors.New("patient cpf already registered")
	ErrStorage            = errors.New("storage error")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, patient, audit, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeDuplicateIdentity = "DUPLICATE_IDENTITY"
	ErrCodeInvalidCreds      = "INVALID_CREDENTIALS"
	ErrCodeUnauthenticated   = "UNAUTHENTICATED"
	ErrCodePatientNotFound   = "PATIENT_NOT_FOUND"
	ErrCodeDuplicatePatient  = "DUPLICATE_PATIENT"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("Dados inválidos: %s", reason),
		Category: "validation",
		Action:   "Corrija os campos informados e tente novamente.",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Não foi possível interpretar o corpo da requisição.",
		Category: "validation",
		Action:   "Envie um JSON válido.",
	}
}

// NewDuplicateIdentityError はメールアドレス重複エラーを生成する。
func NewDuplicateIdentityError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateIdentity,
		Message:  "E-mail já cadastrado",
		Category: "auth",
		Action:   "Utilize outro e-mail ou faça login.",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// メール未登録とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCreds,
		Message:  "Credenciais inválidas",
		Category: "auth",
		Action:   "Verifique o e-mail e a senha.",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
// トークン不正・期限切れ・ユーザー不在のいずれでも同一の内容を返す。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "Token inválido ou expirado",
		Category: "auth",
		Action:   "Faça login novamente.",
	}
}

// NewPatientNotFoundError は患者未検出エラーを生成する。
func NewPatientNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodePatientNotFound,
		Message:  "Paciente não encontrado",
		Category: "patient",
		Action:   "Verifique o ID do paciente.",
	}
}

// NewDuplicatePatientError はCPF重複エラーを生成する。
func NewDuplicatePatientError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicatePatient,
		Message:  "CPF já cadastrado",
		Category: "patient",
		Action:   "Verifique o CPF informado.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Muitas requisições. Tente novamente mais tarde.",
		Category: "system",
		Action:   "Aguarde o tempo indicado em Retry-After e tente novamente.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Erro interno do servidor.",
		Category: "system",
		Action:   "Tente novamente em instantes.",
	}
}
