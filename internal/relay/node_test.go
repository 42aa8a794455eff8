package relay

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeID(t *testing.T) {
	kinds := []Kind{KindUser, KindProfile, KindPost, KindComment, KindFollow}
	keys := []int64{0, 1, 42, 1<<62 + 7}

	for _, kind := range kinds {
		for _, key := range keys {
			id := EncodeID(kind, key)
			gotKind, gotKey, err := DecodeID(id)
			assert.NoError(t, err, "Ошибка декодирования для %s:%d", kind, key)
			assert.Equal(t, kind, gotKind, "Вид сущности не совпадает")
			assert.Equal(t, key, gotKey, "Локальный ключ не совпадает")
		}
	}
}

func TestEncodeIDDeterministic(t *testing.T) {
	assert.Equal(t, EncodeID(KindPost, 7), EncodeID(KindPost, 7), "Кодирование должно быть детерминированным")
	assert.NotEqual(t, EncodeID(KindPost, 7), EncodeID(KindComment, 7), "Разные виды не должны коллидировать")
	assert.NotEqual(t, EncodeID(KindPost, 7), EncodeID(KindPost, 8), "Разные ключи не должны коллидировать")
}

func TestDecodeIDInvalid(t *testing.T) {
	cases := map[string]string{
		"не base64":        "!!!не-base64!!!",
		"нет разделителя":  base64.StdEncoding.EncodeToString([]byte("User42")),
		"неизвестный вид":  base64.StdEncoding.EncodeToString([]byte("Hashtag:42")),
		"нечисловой ключ":  base64.StdEncoding.EncodeToString([]byte("User:abc")),
		"пустая строка":    "",
		"случайная строка": base64.StdEncoding.EncodeToString([]byte("garbage")),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := DecodeID(input)
			assert.ErrorIs(t, err, ErrInvalidIdentifier, "Ожидалась ошибка InvalidIdentifier")
		})
	}
}

func TestCursorIsNotAnIdentifier(t *testing.T) {
	cursor := EncodeCursor("posts", Position{SortKey: time.Now(), ID: 1})
	_, _, err := DecodeID(cursor)
	assert.ErrorIs(t, err, ErrInvalidIdentifier, "Курсор не должен приниматься как глобальный идентификатор")
}

func TestIdentifierIsNotACursor(t *testing.T) {
	id := EncodeID(KindPost, 42)
	_, err := DecodeCursor("posts", id)
	assert.ErrorIs(t, err, ErrInvalidCursor, "Глобальный идентификатор не должен приниматься как курсор")
}

func TestEncodeDecodeCursor(t *testing.T) {
	pos := Position{SortKey: time.Date(2024, 5, 1, 12, 30, 0, 123456789, time.UTC), ID: 99}
	cursor := EncodeCursor("timeline:7", pos)

	got, err := DecodeCursor("timeline:7", cursor)
	assert.NoError(t, err, "Ошибка декодирования курсора")
	assert.True(t, got.SortKey.Equal(pos.SortKey), "Ключ сортировки не совпадает")
	assert.Equal(t, pos.ID, got.ID, "Вторичный ключ не совпадает")
}

func TestDecodeCursorWrongStream(t *testing.T) {
	cursor := EncodeCursor("posts", Position{SortKey: time.Now(), ID: 5})
	_, err := DecodeCursor("timeline:7", cursor)
	assert.ErrorIs(t, err, ErrInvalidCursor, "Курсор чужого потока должен отклоняться")
}

func TestDecodeCursorMalformed(t *testing.T) {
	cases := []string{
		"",
		"!!!",
		base64.StdEncoding.EncodeToString([]byte("cursor:v1:posts")),
		base64.StdEncoding.EncodeToString([]byte("cursor:v2:posts:1:2")),
		base64.StdEncoding.EncodeToString([]byte("cursor:v1:posts:abc:2")),
		base64.StdEncoding.EncodeToString([]byte("cursor:v1:posts:1:abc")),
	}
	for _, input := range cases {
		_, err := DecodeCursor("posts", input)
		assert.ErrorIs(t, err, ErrInvalidCursor, "Ожидалась ошибка InvalidCursor для %q", input)
	}
}
