package model

import "time"

// Patient は患者記録を表す。
// DeletedAtが設定されたレコードは論理削除済みで、
// すべての参照・更新経路で「存在しない」として扱う。
type Patient struct {
	ID        string
	Nome      string
	CPF       string
	DataNasc  time.Time
	Telefone  *string
	Email     *string
	Endereco  *string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Deleted は論理削除済みかどうかを返す。
func (p *Patient) Deleted() bool {
	return p.DeletedAt != nil
}

// PatientUpdate は患者記録の部分更新内容。nilのフィールドは変更しない。
type PatientUpdate struct {
	Nome     *string
	CPF      *string
	DataNasc *time.Time
	Telefone *string
	Email    *string
	Endereco *string
}
