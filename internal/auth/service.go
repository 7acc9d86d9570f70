package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vidaplus/sghss/internal/model"
	"github.com/vidaplus/sghss/internal/repository"
)

// ログイン試行の結果ラベル。
const (
	LoginResultSuccess            = "success"
	LoginResultInvalidCredentials = "invalid_credentials"
	LoginResultError              = "error"
)

// LoginObserver はログイン試行の結果を受け取る。
type LoginObserver interface {
	ObserveLogin(result string)
}

type noopLoginObserver struct{}

func (noopLoginObserver) ObserveLogin(string) {}

// RegisterInput は登録リクエストの内容。形式の検証はハンドラー側で済ませておくこと。
type RegisterInput struct {
	Email    string
	Password string
	Nome     string
	Role     model.Role
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	AccessToken string
	Identity    *model.Identity
	Claims      model.SessionClaims
}

// Service は登録とログインのビジネスロジックを提供する。
type Service struct {
	identities repository.IdentityRepository
	hasher     *PasswordHasher
	tokens     *TokenService
	observer   LoginObserver

	// dummyHash はメール未登録時にも照合を1回行うためのハッシュ。
	// 未登録とパスワード不一致で応答時間に差が出ないようにする。
	dummyHash string
}

// NewService はServiceを生成する。observerがnilの場合は何も記録しない。
func NewService(
	identities repository.IdentityRepository,
	hasher *PasswordHasher,
	tokens *TokenService,
	observer LoginObserver,
) (*Service, error) {
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	if observer == nil {
		observer = noopLoginObserver{}
	}
	return &Service{
		identities: identities,
		hasher:     hasher,
		tokens:     tokens,
		observer:   observer,
		dummyHash:  dummy,
	}, nil
}

// Register は新しいユーザーを作成する。
// メールアドレスが既に登録済みの場合はmodel.ErrDuplicateIdentityを返す。
// roleが未定義の値の場合は検証エラー（*model.APIError）を返す。
// 事前確認をすり抜けた同時登録もストアの一意制約で同じエラーになる。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Identity, error) {
	existing, err := s.identities.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.ErrDuplicateIdentity
	}

	if !in.Role.Valid() {
		return nil, model.NewValidationError("role deve ser USER, DOCTOR ou ADMIN")
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	identity := &model.Identity{
		ID:           uuid.New().String(),
		Email:        in.Email,
		PasswordHash: hashed,
		Nome:         in.Nome,
		Role:         in.Role,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, model.ErrDuplicateIdentity) {
			return nil, model.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", identity.ID),
		slog.String("role", string(identity.Role)),
	)
	return identity, nil
}

// Login はメールアドレスとパスワードを照合し、アクセストークンを発行する。
// メール未登録とパスワード不一致はどちらもmodel.ErrInvalidCredentialsを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	identity, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		s.observer.ObserveLogin(LoginResultError)
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if identity == nil {
		s.hasher.Verify(password, s.dummyHash)
		s.observer.ObserveLogin(LoginResultInvalidCredentials)
		return nil, model.ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, identity.PasswordHash) {
		s.observer.ObserveLogin(LoginResultInvalidCredentials)
		slog.Info("login rejected", slog.String("user_id", identity.ID))
		return nil, model.ErrInvalidCredentials
	}

	token, claims, err := s.tokens.Issue(model.SessionClaims{
		SubjectID: identity.ID,
		Email:     identity.Email,
		Role:      identity.Role,
	})
	if err != nil {
		s.observer.ObserveLogin(LoginResultError)
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.observer.ObserveLogin(LoginResultSuccess)
	slog.Info("user logged in", slog.String("user_id", identity.ID))
	return &LoginResult{
		AccessToken: token,
		Identity:    identity,
		Claims:      claims,
	}, nil
}
