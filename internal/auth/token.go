package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vidaplus/sghss/internal/model"
)

// IdentityLookup はトークンのsubjectを解決するための参照インターフェース。
type IdentityLookup interface {
	FindByID(ctx context.Context, id string) (*model.Identity, error)
}

// TokenConfig はトークンサービスの設定。
type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
	// Now は現在時刻を返す。nilの場合はtime.Nowを使う。
	Now func() time.Time
}

// tokenClaims はJWTのペイロード。
type tokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService はHS256署名のアクセストークンを発行・検証する。
// 発行したトークンはサーバー側に保存しない。
type TokenService struct {
	secret     []byte
	ttl        time.Duration
	issuer     string
	now        func() time.Time
	identities IdentityLookup
}

// NewTokenService はTokenServiceを生成する。
// 秘密鍵が空、またはTTLが0以下の場合はエラーを返す。
func NewTokenService(cfg TokenConfig, identities IdentityLookup) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("token TTL must be positive, got %s", cfg.TTL)
	}
	if identities == nil {
		return nil, errors.New("identity lookup is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenService{
		secret:     []byte(cfg.Secret),
		ttl:        cfg.TTL,
		issuer:     cfg.Issuer,
		now:        now,
		identities: identities,
	}, nil
}

// TTL はトークンの有効期間を返す。
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue はsubject、email、roleを埋め込んだトークンを発行する。
// IssuedAtとExpiresAtは発行時刻から設定し、設定後のclaimsを返す。
// JWTの時刻は秒精度のため、発行時刻は秒に切り捨てる。
func (s *TokenService) Issue(claims model.SessionClaims) (string, model.SessionClaims, error) {
	if claims.SubjectID == "" {
		return "", model.SessionClaims{}, errors.New("token subject must not be empty")
	}

	issuedAt := s.now().UTC().Truncate(time.Second)
	claims.IssuedAt = issuedAt
	claims.ExpiresAt = issuedAt.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &tokenClaims{
		Email: claims.Email,
		Role:  string(claims.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.SubjectID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", model.SessionClaims{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify はトークンの署名・有効期限・subjectの存在を検証する。
//
// 署名不正、アルゴリズム不一致、形式不正、発行者不一致はmodel.ErrTokenInvalid、
// 現在時刻がexp以降の場合はmodel.ErrTokenExpired、
// subjectが存在しない場合はmodel.ErrSubjectNotFoundを返す。
// ストア障害はmodel.ErrStorageでラップして返す。
func (s *TokenService) Verify(ctx context.Context, token string) (*model.SessionClaims, *model.Identity, error) {
	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", model.ErrTokenInvalid, err)
	}

	if parsed.Issuer != s.issuer {
		return nil, nil, fmt.Errorf("%w: issuer mismatch", model.ErrTokenInvalid)
	}
	if parsed.Subject == "" {
		return nil, nil, fmt.Errorf("%w: subject is required", model.ErrTokenInvalid)
	}
	if parsed.ExpiresAt == nil {
		return nil, nil, fmt.Errorf("%w: exp is required", model.ErrTokenInvalid)
	}

	// exp時刻ちょうどは期限切れとする
	expiresAt := parsed.ExpiresAt.Time
	if !s.now().Before(expiresAt) {
		return nil, nil, model.ErrTokenExpired
	}

	identity, err := s.identities.FindByID(ctx, parsed.Subject)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", model.ErrStorage, err)
	}
	if identity == nil {
		return nil, nil, model.ErrSubjectNotFound
	}

	claims := &model.SessionClaims{
		SubjectID: parsed.Subject,
		Email:     parsed.Email,
		Role:      model.Role(parsed.Role),
		ExpiresAt: expiresAt,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}
	return claims, identity, nil
}
