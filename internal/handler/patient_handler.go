package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidaplus/sghss/internal/model"
	"github.com/vidaplus/sghss/internal/patient"
)

// PatientServiceInterface は患者ハンドラーが必要とするサービスインターフェース。
type PatientServiceInterface interface {
	Create(ctx context.Context, in patient.CreateInput) (*model.Patient, error)
	List(ctx context.Context) ([]*model.Patient, error)
	Get(ctx context.Context, id string) (*model.Patient, error)
	Update(ctx context.Context, id string, upd model.PatientUpdate) (*model.Patient, error)
	Delete(ctx context.Context, id string) error
}

// PatientHandler は患者記録のHTTPハンドラー。
type PatientHandler struct {
	service PatientServiceInterface
}

// NewPatientHandler はPatientHandlerを生成する。
func NewPatientHandler(service PatientServiceInterface) *PatientHandler {
	return &PatientHandler{service: service}
}

// patientRequest は患者登録・更新リクエストのボディ。
// 更新時は指定されたフィールドのみを変更する。
type patientRequest struct {
	Nome     *string `json:"nome"`
	CPF      *string `json:"cpf"`
	DataNasc *string `json:"dataNasc"`
	Telefone *string `json:"telefone"`
	Email    *string `json:"email"`
	Endereco *string `json:"endereco"`
}

// patientResponse は患者情報のAPIレスポンス。
type patientResponse struct {
	ID        string    `json:"id"`
	Nome      string    `json:"nome"`
	CPF       string    `json:"cpf"`
	DataNasc  string    `json:"dataNasc"`
	Telefone  *string   `json:"telefone"`
	Email     *string   `json:"email"`
	Endereco  *string   `json:"endereco"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Create は患者を登録する。
// POST /patients
func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req patientRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Nome == nil || req.CPF == nil || req.DataNasc == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("nome, cpf e dataNasc são obrigatórios"))
		return
	}
	upd, reason := req.toUpdate()
	if reason != "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(reason))
		return
	}

	p, err := h.service.Create(r.Context(), patient.CreateInput{
		Nome:     *upd.Nome,
		CPF:      *upd.CPF,
		DataNasc: *upd.DataNasc,
		Telefone: upd.Telefone,
		Email:    upd.Email,
		Endereco: upd.Endereco,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPatientResponse(p))
}

// List は有効な患者を新しい順に返す。
// GET /patients
func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	patients, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]patientResponse, 0, len(patients))
	for _, p := range patients {
		resp = append(resp, toPatientResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get は患者を1件返す。
// GET /patients/{id}
func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := patientID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPatientResponse(p))
}

// Update は患者記録を部分更新する。
// PATCH /patients/{id}
func (h *PatientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := patientID(w, r)
	if !ok {
		return
	}

	var req patientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	upd, reason := req.toUpdate()
	if reason != "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(reason))
		return
	}

	p, err := h.service.Update(r.Context(), id, upd)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPatientResponse(p))
}

// Delete は患者を論理削除する。
// DELETE /patients/{id}
func (h *PatientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := patientID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// patientID はURLパラメータの患者IDを検証して返す。
func patientID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !isValidUUID(id) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("id de paciente inválido"))
		return "", false
	}
	return id, true
}

// toUpdate はリクエストを検証し、指定されたフィールドだけを持つPatientUpdateに変換する。
func (req *patientRequest) toUpdate() (model.PatientUpdate, string) {
	var upd model.PatientUpdate

	if req.Nome != nil {
		nome := strings.TrimSpace(*req.Nome)
		if nome == "" {
			return upd, "nome é obrigatório"
		}
		upd.Nome = &nome
	}
	if req.CPF != nil {
		if !isValidCPF(*req.CPF) {
			return upd, "CPF deve estar no formato XXX.XXX.XXX-XX"
		}
		upd.CPF = req.CPF
	}
	if req.DataNasc != nil {
		d, ok := parseBirthDate(*req.DataNasc)
		if !ok {
			return upd, "data de nascimento inválida"
		}
		upd.DataNasc = &d
	}
	if req.Email != nil {
		if !isValidEmail(*req.Email) {
			return upd, "e-mail inválido"
		}
		upd.Email = req.Email
	}
	upd.Telefone = req.Telefone
	upd.Endereco = req.Endereco

	return upd, ""
}

func toPatientResponse(p *model.Patient) patientResponse {
	return patientResponse{
		ID:        p.ID,
		Nome:      p.Nome,
		CPF:       p.CPF,
		DataNasc:  p.DataNasc.Format(time.DateOnly),
		Telefone:  p.Telefone,
		Email:     p.Email,
		Endereco:  p.Endereco,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
