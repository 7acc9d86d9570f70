// Package patient は患者記録のCRUDと論理削除を提供する。
package patient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vidaplus/sghss/internal/model"
	"github.com/vidaplus/sghss/internal/repository"
	"github.com/vidaplus/sghss/internal/security"
)

// CreateInput は患者登録の内容。形式の検証はハンドラー側で済ませておくこと。
type CreateInput struct {
	Nome     string
	CPF      string
	DataNasc time.Time
	Telefone *string
	Email    *string
	Endereco *string
}

// Service は患者記録のビジネスロジックを提供する。
// 論理削除済みの患者はすべての操作でmodel.ErrPatientNotFoundとして扱う。
type Service struct {
	repo      repository.PatientRepository
	sanitizer security.TextSanitizer
}

// NewService はServiceを生成する。
func NewService(repo repository.PatientRepository, sanitizer security.TextSanitizer) *Service {
	return &Service{repo: repo, sanitizer: sanitizer}
}

// Create は患者を登録する。
// 有効な患者とCPFが重複する場合はmodel.ErrDuplicatePatientを返す。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Patient, error) {
	existing, err := s.repo.FindActiveByCPF(ctx, in.CPF)
	if err != nil {
		return nil, fmt.Errorf("failed to find patient by CPF: %w", err)
	}
	if existing != nil {
		return nil, model.ErrDuplicatePatient
	}

	p := &model.Patient{
		ID:       uuid.New().String(),
		Nome:     s.sanitizer.Sanitize(in.Nome),
		CPF:      in.CPF,
		DataNasc: in.DataNasc,
		Telefone: s.sanitizeOptional(in.Telefone),
		Email:    in.Email,
		Endereco: s.sanitizeOptional(in.Endereco),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, model.ErrDuplicatePatient) {
			return nil, model.ErrDuplicatePatient
		}
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	slog.Info("patient created", slog.String("patient_id", p.ID))
	return p, nil
}

// List は有効な患者を新しい順に返す。
func (s *Service) List(ctx context.Context) ([]*model.Patient, error) {
	patients, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	if patients == nil {
		patients = []*model.Patient{}
	}
	return patients, nil
}

// Get は有効な患者を取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Patient, error) {
	p, err := s.repo.FindActiveByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find patient: %w", err)
	}
	if p == nil {
		return nil, model.ErrPatientNotFound
	}
	return p, nil
}

// Update は指定されたフィールドのみを変更する。
// CPFを別の有効な患者のものに変更しようとした場合はmodel.ErrDuplicatePatientを返す。
func (s *Service) Update(ctx context.Context, id string, upd model.PatientUpdate) (*model.Patient, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.CPF != nil && *upd.CPF != p.CPF {
		other, err := s.repo.FindActiveByCPF(ctx, *upd.CPF)
		if err != nil {
			return nil, fmt.Errorf("failed to find patient by CPF: %w", err)
		}
		if other != nil && other.ID != p.ID {
			return nil, model.ErrDuplicatePatient
		}
		p.CPF = *upd.CPF
	}
	if upd.Nome != nil {
		p.Nome = s.sanitizer.Sanitize(*upd.Nome)
	}
	if upd.DataNasc != nil {
		p.DataNasc = *upd.DataNasc
	}
	if upd.Telefone != nil {
		p.Telefone = s.sanitizeOptional(upd.Telefone)
	}
	if upd.Email != nil {
		p.Email = upd.Email
	}
	if upd.Endereco != nil {
		p.Endereco = s.sanitizeOptional(upd.Endereco)
	}

	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, model.ErrPatientNotFound) || errors.Is(err, model.ErrDuplicatePatient) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}

	slog.Info("patient updated", slog.String("patient_id", p.ID))
	return p, nil
}

// Delete は患者を論理削除する。レコードは保持される。
// 未登録または削除済みの場合はmodel.ErrPatientNotFoundを返す。
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, model.ErrPatientNotFound) {
			return model.ErrPatientNotFound
		}
		return fmt.Errorf("failed to delete patient: %w", err)
	}

	slog.Info("patient soft deleted", slog.String("patient_id", id))
	return nil
}

func (s *Service) sanitizeOptional(v *string) *string {
	if v == nil {
		return nil
	}
	cleaned := s.sanitizer.Sanitize(*v)
	return &cleaned
}
