package handler

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// パスワード長の制約。bcryptは72バイトを超える入力を扱えない。
const (
	minPasswordLength = 8
	maxPasswordBytes  = 72
)

var cpfPattern = regexp.MustCompile(`^\d{3}\.\d{3}\.\d{3}-\d{2}$`)

// isValidEmail は表示名なしの単一アドレスとして解釈できるかを返す。
func isValidEmail(s string) bool {
	if s == "" || strings.TrimSpace(s) != s {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// isValidCPF はCPFが XXX.XXX.XXX-XX 形式かを返す。チェックディジットは検証しない。
func isValidCPF(s string) bool {
	return cpfPattern.MatchString(s)
}

// parseBirthDate は YYYY-MM-DD またはRFC 3339形式の生年月日を日付（UTC 0時）として返す。
func parseBirthDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// isValidUUID はハイフン区切り36文字のUUIDかを返す。
// uuid.Parseが受け付けるurn:uuid:形式などはPostgreSQLに渡さない。
func isValidUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
