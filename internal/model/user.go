// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの役割を表す。認可判定には使わず、メタデータとして保持する。
type Role string

const (
	// RoleUser は一般ユーザー。
	RoleUser Role = "USER"
	// RoleDoctor は医師。
	RoleDoctor Role = "DOCTOR"
	// RoleAdmin は管理者。
	RoleAdmin Role = "ADMIN"
)

// Valid は定義済みの役割かどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// Identity は登録済みの認証情報保持者（ユーザー）を表す。
// 作成後にIDは変わらず、物理削除もしない。
type Identity struct {
	ID           string
	Email        string
	PasswordHash string `json:"-"`
	Nome         string
	Role         Role
	CreatedAt    time.Time
}

// SessionClaims はトークンから復元されるセッション情報。
// 永続化せず、デコードしたリクエストのスコープ内でのみ使用する。
type SessionClaims struct {
	SubjectID string
	Email     string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}
