// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は患者記録の自由入力項目（氏名・電話・住所）から
// HTMLを除去し、プレーンテキストとして保存できる形に整える。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキスト項目のサニタイズ機能のインターフェース。
type TextSanitizer interface {
	// Sanitize はタグを除去したプレーンテキストを返す。
	// エンティティはデコードし、NUL文字と前後の空白は除去する。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy   *bluemonday.Policy
	residual *strings.Replacer
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
// StrictPolicyで全タグを除去し、script/styleは中身ごと捨てる。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
		// エンティティのデコードで現れた山括弧は残さない
		residual: strings.NewReplacer("<", "", ">", ""),
	}
}

// Sanitize はタグを除去したプレーンテキストを返す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	// textカラムはNULを保存できない
	raw = strings.ReplaceAll(raw, "\x00", "")
	cleaned := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.TrimSpace(s.residual.Replace(cleaned))
}
