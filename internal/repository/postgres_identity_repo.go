package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vidaplus/sghss/internal/model"
)

// PostgresIdentityRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

const identityColumns = `id, email, password_hash, nome, role, created_at`

func scanIdentity(row rowScanner) (*model.Identity, error) {
	identity := &model.Identity{}
	var role string
	err := row.Scan(&identity.ID, &identity.Email, &identity.PasswordHash, &identity.Nome, &role, &identity.CreatedAt)
	if err != nil {
		return nil, err
	}
	identity.Role = model.Role(role)
	return identity, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByEmail(ctx context.Context, email string) (*model.Identity, error) {
	identity, err := scanIdentity(r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM users WHERE email = $1`,
		email,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return identity, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByID(ctx context.Context, id string) (*model.Identity, error) {
	identity, err := scanIdentity(r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM users WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return identity, nil
}

// Create はユーザーを作成する。
// 同時登録の競合はusers_email_keyの一意制約で検出する。
func (r *PostgresIdentityRepo) Create(ctx context.Context, identity *model.Identity) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email, password_hash, nome, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		identity.ID, identity.Email, identity.PasswordHash, identity.Nome, string(identity.Role),
	).Scan(&identity.CreatedAt)
	if isUniqueViolation(err, "users_email_key") {
		return model.ErrDuplicateIdentity
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// compile-time interface check
var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
