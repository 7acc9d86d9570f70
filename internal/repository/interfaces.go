// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/vidaplus/sghss/internal/model"
)

// IdentityRepository は認証情報保持者（ユーザー）の永続化インターフェース。
type IdentityRepository interface {
	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	// 比較は保存値との完全一致（大文字小文字を区別）。
	FindByEmail(ctx context.Context, email string) (*model.Identity, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Identity, error)

	// Create はユーザーを作成する。
	// メールアドレスが既に存在する場合はmodel.ErrDuplicateIdentityを返す。
	Create(ctx context.Context, identity *model.Identity) error
}

// AuditRepository は監査ログの永続化インターフェース。
// 追記専用で、更新・削除の操作は提供しない。
type AuditRepository interface {
	// Create は監査ログを1件追記し、採番したIDをentryに設定する。
	Create(ctx context.Context, entry *model.AuditEntry) error

	// Query は条件に合う監査ログをtimestamp降順（同時刻はID降順）で最大limit件返す。
	// 各エントリには実行ユーザーの概要をJOINして設定する。
	Query(ctx context.Context, filter model.AuditFilter, limit int) ([]*model.AuditEntry, error)
}

// PatientRepository は患者記録の永続化インターフェース。
// 論理削除済みのレコードはFind系・Update・SoftDeleteの対象外とする。
type PatientRepository interface {
	// Create は患者を作成する。
	// 有効な患者とCPFが重複する場合はmodel.ErrDuplicatePatientを返す。
	Create(ctx context.Context, patient *model.Patient) error

	// List は有効な患者をcreated_at降順で返す。
	List(ctx context.Context) ([]*model.Patient, error)

	// FindActiveByID は有効な患者を取得する。見つからない場合はnilを返す。
	FindActiveByID(ctx context.Context, id string) (*model.Patient, error)

	// FindActiveByCPF はCPFで有効な患者を検索する。見つからない場合はnilを返す。
	FindActiveByCPF(ctx context.Context, cpf string) (*model.Patient, error)

	// Update は有効な患者の全フィールドを上書きする。
	// 対象が存在しない場合はmodel.ErrPatientNotFound、
	// CPFが他の有効な患者と重複する場合はmodel.ErrDuplicatePatientを返す。
	Update(ctx context.Context, patient *model.Patient) error

	// SoftDelete はdeleted_atを設定する。
	// 有効な患者が存在しない（未登録または削除済み）場合はmodel.ErrPatientNotFoundを返す。
	SoftDelete(ctx context.Context, id string) error
}
