// Package auth はパスワードハッシュ、アクセストークン発行・検証、登録・ログインを提供する。
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost は既定のbcryptコスト。
const DefaultBcryptCost = 10

// ErrEmptyPassword は空パスワードのハッシュ化要求を表す。
var ErrEmptyPassword = errors.New("password must not be empty")

// PasswordHasher はbcryptによるパスワードハッシュ化と照合を行う。
// ソルトは呼び出しごとに生成されるため、同じ平文でも毎回異なるハッシュになる。
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher はPasswordHasherを生成する。
// costが0以下の場合はDefaultBcryptCostを使う。
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}
	return &PasswordHasher{cost: cost}, nil
}

// Hash は平文パスワードのハッシュを返す。
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify は平文とハッシュが一致するかを返す。
// 不正な形式のハッシュは不一致として扱う。
func (h *PasswordHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
