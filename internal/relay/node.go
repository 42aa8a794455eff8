package relay

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidArguments  = errors.New("invalid pagination arguments")
	ErrInvalidCursor     = errors.New("invalid cursor")
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// Kind - вид сущности, адресуемой глобальным идентификатором.
// Закрытый набор: новый вид добавляется явно.
type Kind string

const (
	KindUser    Kind = "User"
	KindProfile Kind = "Profile"
	KindPost    Kind = "Post"
	KindComment Kind = "Comment"
	KindFollow  Kind = "Follow"
)

// ParseKind возвращает Kind для строки или false для неизвестного вида
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindUser, KindProfile, KindPost, KindComment, KindFollow:
		return Kind(s), true
	}
	return "", false
}

// EncodeID кодирует (вид, локальный ключ) в непрозрачный глобальный
// идентификатор. Функция детерминированная и без побочных эффектов;
// результат непригоден для сортировки.
func EncodeID(kind Kind, key int64) string {
	return base64.StdEncoding.EncodeToString([]byte(string(kind) + ":" + strconv.FormatInt(key, 10)))
}

// DecodeID разбирает глобальный идентификатор обратно в (вид, локальный ключ).
// Любая строка, не произведенная EncodeID, дает ErrInvalidIdentifier:
// некорректный base64, неизвестный вид, нечисловой ключ. Курсор пагинации
// здесь тоже отклоняется - у него другое пространство имен.
func DecodeID(s string) (Kind, int64, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q is not base64", ErrInvalidIdentifier, s)
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("%w: missing kind separator", ErrInvalidIdentifier)
	}
	kind, ok := ParseKind(parts[0])
	if !ok {
		return "", 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidIdentifier, parts[0])
	}
	key, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: non-numeric key %q", ErrInvalidIdentifier, parts[1])
	}
	return kind, key, nil
}
