package http

import (
	"errors"
	"strings"

	"kakeibo/internal/auth"
	"kakeibo/internal/core"
)

// UI strings.
const (
	msgMissingFields      = "全ての項目を入力してください"
	msgPasswordMismatch   = "パスワードが一致しません"
	msgPasswordTooShort   = "パスワードは6文字以上で入力してください"
	msgEmailRegistered    = "このメールアドレスは既に登録されています"
	msgMissingCredentials = "メールアドレスとパスワードを入力してください"
	msgInvalidCredentials = "メールアドレスまたはパスワードが正しくありません"
	msgIncompleteForm     = "すべての項目を入力してください"
	msgInternal           = "エラーが発生しました。時間をおいて再度お試しください"
	msgNoData             = "データがありません"
	msgDeleteConfirm      = "この取引を削除してもよろしいですか？"

	labelIncome  = "売上"
	labelExpense = "支出"
)

// userMessage maps a domain error to the message shown to the user. The
// second result is false for errors the user cannot fix.
func userMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, auth.ErrMissingFields):
		return msgMissingFields, true
	case errors.Is(err, auth.ErrPasswordMismatch):
		return msgPasswordMismatch, true
	case errors.Is(err, auth.ErrPasswordTooShort):
		return msgPasswordTooShort, true
	case errors.Is(err, auth.ErrEmailAlreadyRegistered):
		return msgEmailRegistered, true
	case errors.Is(err, auth.ErrMissingCredentials):
		return msgMissingCredentials, true
	case errors.Is(err, auth.ErrInvalidCredentials):
		return msgInvalidCredentials, true
	case errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidAmount):
		return msgIncompleteForm, true
	default:
		return msgInternal, false
	}
}

// formatYen renders an amount with thousands separators and the 円 suffix,
// e.g. "3,000円" or "-1,234.5円".
func formatYen(m core.Money) string {
	s := m.String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	b.WriteString("円")
	return b.String()
}

// formatDate renders a date as YYYY/MM/DD.
func formatDate(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006/01/02")
}

func typeLabel(t core.TransactionType) string {
	if t == core.Income {
		return labelIncome
	}
	return labelExpense
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
