package relay

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cursorPrefix отделяет пространство имен курсоров от глобальных
// идентификаторов: глобальный идентификатор никогда не начинается с него,
// а DecodeID отклонит "cursor" как неизвестный вид.
const cursorPrefix = "cursor:v1"

// Position - позиция элемента в упорядоченном потоке:
// первичный ключ сортировки плюс локальный id как детерминированный
// вторичный ключ при совпадении меток времени.
type Position struct {
	SortKey time.Time
	ID      int64
}

// EncodeCursor кодирует позицию в непрозрачный курсор, привязанный к
// конкретному потоку тегом tag. Курсор описывает позицию, а не сущность:
// удаление сущности не смещает соседние элементы мимо выданного курсора.
func EncodeCursor(tag string, pos Position) string {
	raw := fmt.Sprintf("%s:%s:%d:%d", cursorPrefix, tag, pos.SortKey.UnixNano(), pos.ID)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor разбирает курсор и проверяет, что он выдан потоком tag.
// Курсор чужого потока, глобальный идентификатор или произвольная строка
// дают ErrInvalidCursor.
func DecodeCursor(tag, s string) (Position, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %q is not base64", ErrInvalidCursor, s)
	}
	parts := strings.Split(string(raw), ":")
	// cursor : v1 : tag... : sortKey : id, тег может содержать двоеточия
	if len(parts) < 5 || parts[0]+":"+parts[1] != cursorPrefix {
		return Position{}, fmt.Errorf("%w: malformed cursor", ErrInvalidCursor)
	}
	gotTag := strings.Join(parts[2:len(parts)-2], ":")
	if gotTag != tag {
		return Position{}, fmt.Errorf("%w: cursor belongs to stream %q, not %q", ErrInvalidCursor, gotTag, tag)
	}
	nanos, err := strconv.ParseInt(parts[len(parts)-2], 10, 64)
	if err != nil {
		return Position{}, fmt.Errorf("%w: non-numeric sort key", ErrInvalidCursor)
	}
	id, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return Position{}, fmt.Errorf("%w: non-numeric tie-break id", ErrInvalidCursor)
	}
	return Position{SortKey: time.Unix(0, nanos).UTC(), ID: id}, nil
}
