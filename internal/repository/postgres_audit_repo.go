package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vidaplus/sghss/internal/model"
)

// PostgresAuditRepo はPostgreSQLを使用した監査ログリポジトリ。
// audit_logsテーブルはトリガーでUPDATE/DELETEを拒否する。
type PostgresAuditRepo struct {
	db *sql.DB
}

// NewPostgresAuditRepo はPostgresAuditRepoを生成する。
func NewPostgresAuditRepo(db *sql.DB) *PostgresAuditRepo {
	return &PostgresAuditRepo{db: db}
}

// Create は監査ログを1件追記する。
func (r *PostgresAuditRepo) Create(ctx context.Context, entry *model.AuditEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO audit_logs (action, user_id, details, ip_address, timestamp)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		entry.Action, entry.ActorID, string(raw), entry.SourceAddress, entry.Timestamp,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// buildAuditQuery はフィルタ条件からSELECT文と引数を組み立てる。
func buildAuditQuery(filter model.AuditFilter, limit int) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		conds = append(conds, fmt.Sprintf("a.user_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		conds = append(conds, fmt.Sprintf("a.action = $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT a.id, a.action, a.user_id, a.details, a.ip_address, a.timestamp,
		u.id, u.email, u.nome
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.user_id`)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	args = append(args, limit)
	fmt.Fprintf(&b, " ORDER BY a.timestamp DESC, a.id DESC LIMIT $%d", len(args))

	return b.String(), args
}

// Query は条件に合う監査ログを新しい順に最大limit件返す。
func (r *PostgresAuditRepo) Query(ctx context.Context, filter model.AuditFilter, limit int) ([]*model.AuditEntry, error) {
	query, args := buildAuditQuery(filter, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var entries []*model.AuditEntry
	for rows.Next() {
		entry := &model.AuditEntry{}
		var (
			actorID                    sql.NullString
			raw                        []byte
			userID, userEmail, userNom sql.NullString
		)
		if err := rows.Scan(
			&entry.ID, &entry.Action, &actorID, &raw, &entry.SourceAddress, &entry.Timestamp,
			&userID, &userEmail, &userNom,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if actorID.Valid {
			id := actorID.String
			entry.ActorID = &id
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
			}
		}
		if userID.Valid {
			entry.Actor = &model.AuditActor{
				ID:    userID.String,
				Email: userEmail.String,
				Nome:  userNom.String,
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}
	return entries, nil
}

// compile-time interface check
var _ AuditRepository = (*PostgresAuditRepo)(nil)
