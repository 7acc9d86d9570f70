package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vidaplus/sghss/internal/model"
)

// PostgresPatientRepo はPostgreSQLを使用した患者リポジトリ。
type PostgresPatientRepo struct {
	db *sql.DB
}

// NewPostgresPatientRepo はPostgresPatientRepoを生成する。
func NewPostgresPatientRepo(db *sql.DB) *PostgresPatientRepo {
	return &PostgresPatientRepo{db: db}
}

const patientCPFConstraint = "patients_cpf_active_key"

const patientColumns = `id, nome, cpf, data_nasc, telefone, email, endereco, created_at, updated_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*model.Patient, error) {
	p := &model.Patient{}
	var (
		telefone, email, endereco sql.NullString
		deletedAt                 sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Nome, &p.CPF, &p.DataNasc, &telefone, &email, &endereco,
		&p.CreatedAt, &p.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	p.Telefone = nullableString(telefone)
	p.Email = nullableString(email)
	p.Endereco = nullableString(endereco)
	if deletedAt.Valid {
		t := deletedAt.Time
		p.DeletedAt = &t
	}
	return p, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Create は患者を作成する。
func (r *PostgresPatientRepo) Create(ctx context.Context, p *model.Patient) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO patients (id, nome, cpf, data_nasc, telefone, email, endereco)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		p.ID, p.Nome, p.CPF, p.DataNasc, p.Telefone, p.Email, p.Endereco,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err, patientCPFConstraint) {
		return model.ErrDuplicatePatient
	}
	if err != nil {
		return fmt.Errorf("failed to insert patient: %w", err)
	}
	return nil
}

// List は有効な患者をcreated_at降順で返す。
func (r *PostgresPatientRepo) List(ctx context.Context) ([]*model.Patient, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+patientColumns+` FROM patients
		 WHERE deleted_at IS NULL
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	var patients []*model.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patients: %w", err)
	}
	return patients, nil
}

// FindActiveByID は有効な患者を取得する。見つからない場合はnilを返す。
func (r *PostgresPatientRepo) FindActiveByID(ctx context.Context, id string) (*model.Patient, error) {
	p, err := scanPatient(r.db.QueryRowContext(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE id = $1 AND deleted_at IS NULL`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find patient by ID: %w", err)
	}
	return p, nil
}

// FindActiveByCPF はCPFで有効な患者を検索する。見つからない場合はnilを返す。
func (r *PostgresPatientRepo) FindActiveByCPF(ctx context.Context, cpf string) (*model.Patient, error) {
	p, err := scanPatient(r.db.QueryRowContext(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE cpf = $1 AND deleted_at IS NULL`,
		cpf,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find patient by CPF: %w", err)
	}
	return p, nil
}

// Update は有効な患者の全フィールドを上書きし、updated_atを更新する。
func (r *PostgresPatientRepo) Update(ctx context.Context, p *model.Patient) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE patients
		 SET nome = $2, cpf = $3, data_nasc = $4, telefone = $5, email = $6, endereco = $7,
		     updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING updated_at`,
		p.ID, p.Nome, p.CPF, p.DataNasc, p.Telefone, p.Email, p.Endereco,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrPatientNotFound
	}
	if isUniqueViolation(err, patientCPFConstraint) {
		return model.ErrDuplicatePatient
	}
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return nil
}

// SoftDelete はdeleted_atを設定する。レコードはテーブルに残る。
// 存在確認と削除を1文で行い、同時削除でも成功するのは1回のみ。
func (r *PostgresPatientRepo) SoftDelete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE patients SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to soft delete patient: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrPatientNotFound
	}
	return nil
}

// compile-time interface check
var _ PatientRepository = (*PostgresPatientRepo)(nil)
