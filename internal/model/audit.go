package model

import "time"

// 監査アクションのラベル。
const (
	ActionLogin         = "LOGIN"
	ActionCreatePatient = "CREATE_PATIENT"
	ActionUpdatePatient = "UPDATE_PATIENT"
	ActionDeletePatient = "DELETE_PATIENT"
)

// AuditQueryLimit は監査ログ検索の最大件数。
const AuditQueryLimit = 100

// AuditEntry は追記専用の監査ログ1件を表す。
// 更新・削除の操作は存在しない。
type AuditEntry struct {
	ID            int64
	Action        string
	ActorID       *string // システム起因の場合のみnil
	Details       map[string]any
	SourceAddress string
	Timestamp     time.Time

	// Actor は検索時にJOINされる実行ユーザーの概要。書き込み時は使わない。
	Actor *AuditActor
}

// AuditActor は監査ログに付随する実行ユーザーの公開情報。
type AuditActor struct {
	ID    string
	Email string
	Nome  string
}

// AuditFilter は監査ログ検索の条件。空文字のフィールドは条件に含めない。
type AuditFilter struct {
	ActorID string
	Action  string
}
