// Package audit は監査対象操作の分類と、監査ログの非同期記録・検索を提供する。
package audit

import (
	"net/http"
	"strings"

	"github.com/vidaplus/sghss/internal/model"
)

// RedactedValue はマスク後の値。
const RedactedValue = "***"

// redactedKeys はマスク対象のキー。
var redactedKeys = []string{"password"}

// Classify はHTTPメソッドとパスから監査アクションを決定する。
// 監査対象外の場合は空文字を返す。
// パス判定は部分一致で、ログインの判定を患者操作より優先する。
func Classify(method, path string) string {
	if strings.Contains(path, "/auth/login") {
		return model.ActionLogin
	}
	if !strings.Contains(path, "/patients") {
		return ""
	}
	switch strings.ToUpper(method) {
	case http.MethodPost:
		return model.ActionCreatePatient
	case http.MethodPatch, http.MethodPut:
		return model.ActionUpdatePatient
	case http.MethodDelete:
		return model.ActionDeletePatient
	}
	return ""
}

// Redact はbodyのシャローコピーを返し、パスワード類の値をRedactedValueに置き換える。
// 入力のマップは変更しない。入れ子のマップは走査しない。
func Redact(body map[string]any) map[string]any {
	out := make(map[string]any, len(body))
	for k, v := range body {
		out[k] = v
	}
	for _, key := range redactedKeys {
		if _, ok := out[key]; ok {
			out[key] = RedactedValue
		}
	}
	return out
}

// StripNUL はbodyを深くコピーし、キーと文字列値からNUL文字を取り除く。
// PostgreSQLのjsonbは\u0000を受け付けないため、記録前に通す。
// 入力のマップは変更しない。
func StripNUL(body map[string]any) map[string]any {
	out := make(map[string]any, len(body))
	for k, v := range body {
		out[stripNULString(k)] = stripNULValue(v)
	}
	return out
}

func stripNULValue(v any) any {
	switch t := v.(type) {
	case string:
		return stripNULString(t)
	case map[string]any:
		return StripNUL(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = stripNULValue(e)
		}
		return out
	default:
		return v
	}
}

func stripNULString(s string) string {
	if !strings.Contains(s, "\x00") {
		return s
	}
	return strings.ReplaceAll(s, "\x00", "")
}
