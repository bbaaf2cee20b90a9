package shared

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// GenericErrorMessage is shown when a server error carries nothing a user
// could act on.
const GenericErrorMessage = "Произошла ошибка при выполнении операции"

var (
	operationPrefixRe = regexp.MustCompile(`(?i)Операция\s+[\w-]+:\s*`)
	leadingPrefixRe   = regexp.MustCompile(`^[^:]+:\s*`)
	rawCodeRe         = regexp.MustCompile(`^[A-Z_]+$`)
)

// SanitizeMessage strips internal identifiers from an error message and
// returns fallback when the remainder is empty, too short or looks like a
// raw error code. Messages like "Операция 42: accounts: UNIQUE_VIOLATION"
// must never reach end users verbatim.
func SanitizeMessage(message, fallback string) string {
	cleaned := message
	if idx := strings.IndexByte(cleaned, '\n'); idx >= 0 {
		cleaned = cleaned[:idx]
	}
	cleaned = operationPrefixRe.ReplaceAllString(cleaned, "")
	cleaned = leadingPrefixRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	if utf8.RuneCountInString(cleaned) <= 5 || rawCodeRe.MatchString(cleaned) {
		return fallback
	}
	return cleaned
}

// UserSafeMessage renders err for end users, falling back to the generic
// localized message.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeMessage(err.Error(), GenericErrorMessage)
}
