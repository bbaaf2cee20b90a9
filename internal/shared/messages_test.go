package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeMessageStripsOperationPrefix(t *testing.T) {
	got := SanitizeMessage("Операция op-42: Недостаточно прав для удаления роли", GenericErrorMessage)
	require.Equal(t, "Недостаточно прав для удаления роли", got)
}

func TestSanitizeMessageStripsLeadingModulePrefix(t *testing.T) {
	got := SanitizeMessage("roles: Роль с таким названием уже существует", GenericErrorMessage)
	require.Equal(t, "Роль с таким названием уже существует", got)
}

func TestSanitizeMessageRejectsRawCodes(t *testing.T) {
	for _, raw := range []string{"UNIQUE_VIOLATION", "ERR", "Операция 7: FORBIDDEN", "db: ECONNRESET"} {
		require.Equal(t, GenericErrorMessage, SanitizeMessage(raw, GenericErrorMessage), "input %q", raw)
	}
}

func TestSanitizeMessageRejectsShortRemainder(t *testing.T) {
	require.Equal(t, GenericErrorMessage, SanitizeMessage("x: Сбой", GenericErrorMessage))
}

func TestSanitizeMessageKeepsFirstLineOnly(t *testing.T) {
	got := SanitizeMessage("Не удалось сохранить изменения\nstack: repository.go:42", GenericErrorMessage)
	require.Equal(t, "Не удалось сохранить изменения", got)
}

func TestUserSafeMessage(t *testing.T) {
	require.Equal(t, "", UserSafeMessage(nil))
	require.Equal(t, GenericErrorMessage, UserSafeMessage(errors.New("pgx: UNIQUE_VIOLATION")))
	require.Equal(t, "Пользователь уже приглашён в компанию", UserSafeMessage(errors.New("Пользователь уже приглашён в компанию")))
}
