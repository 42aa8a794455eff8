package relay

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// sliceStream строит поток над срезом, упорядоченным по (created_at, id)
// по убыванию; backing-срез разделяется с тестом, что позволяет
// имитировать удаление элементов между страницами
func sliceStream(tag string, backing *[]Item[int]) Stream[int] {
	return Stream[int]{
		Tag: tag,
		Scan: func(ctx context.Context, pos *Position, backward bool, limit int) ([]Item[int], error) {
			items := make([]Item[int], len(*backing))
			copy(items, *backing)
			sort.Slice(items, func(i, j int) bool { return DescOrder(items[i].Pos, items[j].Pos) })

			var out []Item[int]
			for i := range items {
				idx := i
				if backward {
					idx = len(items) - 1 - i
				}
				p := items[idx].Pos
				if pos != nil {
					if backward && !DescOrder(p, *pos) {
						continue
					}
					if !backward && !DescOrder(*pos, p) {
						continue
					}
				}
				out = append(out, items[idx])
				if len(out) == limit {
					break
				}
			}
			return out, nil
		},
	}
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

// fixtureItems - семь элементов, среди них совпадающие метки времени:
// порядок потока детерминирован вторичным ключом
func fixtureItems() []Item[int] {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return []Item[int]{
		{Node: 1, Pos: Position{SortKey: base.Add(1 * time.Hour), ID: 1}},
		{Node: 2, Pos: Position{SortKey: base.Add(2 * time.Hour), ID: 2}},
		{Node: 3, Pos: Position{SortKey: base.Add(2 * time.Hour), ID: 3}},
		{Node: 4, Pos: Position{SortKey: base.Add(3 * time.Hour), ID: 4}},
		{Node: 5, Pos: Position{SortKey: base.Add(4 * time.Hour), ID: 5}},
		{Node: 6, Pos: Position{SortKey: base.Add(4 * time.Hour), ID: 6}},
		{Node: 7, Pos: Position{SortKey: base.Add(5 * time.Hour), ID: 7}},
	}
}

// streamOrder - ожидаемый порядок потока: новые раньше старых,
// при равном времени больший id раньше
func streamOrder() []int { return []int{7, 6, 5, 4, 3, 2, 1} }

func TestPaginateForwardCompleteness(t *testing.T) {
	items := fixtureItems()
	stream := sliceStream("test", &items)
	n := len(items)

	for _, k := range []int{1, n, n + 5} {
		var collected []int
		var after *string
		pages := 0
		for {
			conn, err := Paginate(context.Background(), stream, Args{First: intPtr(k), After: after})
			assert.NoError(t, err, "Ошибка пагинации при first=%d", k)
			for _, edge := range conn.Edges {
				collected = append(collected, edge.Node)
			}
			if !conn.PageInfo.HasNextPage {
				break
			}
			after = conn.PageInfo.EndCursor
			pages++
			if pages > n+1 {
				t.Fatalf("Пагинация не завершилась при first=%d", k)
			}
		}
		assert.Equal(t, streamOrder(), collected, "Полный обход при first=%d должен выдать все элементы без пропусков и дубликатов", k)
	}
}

func TestPaginateBackwardSymmetry(t *testing.T) {
	items := fixtureItems()
	stream := sliceStream("test", &items)

	// Полный проход вперед по одному, чтобы собрать курсоры всех позиций
	var cursors []string
	var after *string
	for {
		conn, err := Paginate(context.Background(), stream, Args{First: intPtr(1), After: after})
		assert.NoError(t, err)
		if len(conn.Edges) == 0 {
			break
		}
		cursors = append(cursors, conn.Edges[0].Cursor)
		if !conn.PageInfo.HasNextPage {
			break
		}
		after = conn.PageInfo.EndCursor
	}
	assert.Len(t, cursors, len(items), "Должен быть курсор на каждый элемент")

	// last=k перед позицией p совпадает с окном прямого прохода до p
	order := streamOrder()
	for p := 2; p < len(cursors); p++ {
		for _, k := range []int{1, 2, p} {
			conn, err := Paginate(context.Background(), stream, Args{Last: intPtr(k), Before: &cursors[p]})
			assert.NoError(t, err, "Ошибка обратной пагинации last=%d before=%d", k, p)

			expected := order[:p]
			if len(expected) > k {
				expected = expected[len(expected)-k:]
			}
			var got []int
			for _, edge := range conn.Edges {
				got = append(got, edge.Node)
			}
			assert.Equal(t, expected, got, "Обратная страница last=%d before=%d должна быть в порядке потока", k, p)
		}
	}
}

func TestPaginateBackwardFromEnd(t *testing.T) {
	items := fixtureItems()
	stream := sliceStream("test", &items)

	conn, err := Paginate(context.Background(), stream, Args{Last: intPtr(3)})
	assert.NoError(t, err)

	var got []int
	for _, edge := range conn.Edges {
		got = append(got, edge.Node)
	}
	assert.Equal(t, []int{3, 2, 1}, got, "Хвост потока в порядке потока, без разворота")
	assert.True(t, conn.PageInfo.HasPreviousPage, "Перед хвостом есть предыдущая страница")
	assert.False(t, conn.PageInfo.HasNextPage)
}

func TestPaginateProbeDoesNotLeak(t *testing.T) {
	items := fixtureItems()
	stream := sliceStream("test", &items)

	conn, err := Paginate(context.Background(), stream, Args{First: intPtr(3)})
	assert.NoError(t, err)
	assert.Len(t, conn.Edges, 3, "Проба за окном не должна попадать в результат")
	assert.True(t, conn.PageInfo.HasNextPage)
	assert.False(t, conn.PageInfo.HasPreviousPage)
}

func TestPaginateEmptyStream(t *testing.T) {
	var items []Item[int]
	stream := sliceStream("test", &items)

	conn, err := Paginate(context.Background(), stream, Args{First: intPtr(10)})
	assert.NoError(t, err)
	assert.Empty(t, conn.Edges, "Пустой поток дает пустую страницу")
	assert.False(t, conn.PageInfo.HasNextPage)
	assert.False(t, conn.PageInfo.HasPreviousPage)
	assert.Nil(t, conn.PageInfo.StartCursor)
	assert.Nil(t, conn.PageInfo.EndCursor)
}

func TestPaginateInvalidArguments(t *testing.T) {
	items := fixtureItems()
	stream := sliceStream("test", &items)
	cursor := EncodeCursor("test", items[0].Pos)

	cases := map[string]Args{
		"first и last вместе":   {First: intPtr(1), Last: intPtr(1)},
		"ни first, ни last":     {},
		"отрицательный first":   {First: intPtr(-1)},
		"отрицательный last":    {Last: intPtr(-1)},
		"before вместе с first": {First: intPtr(1), Before: &cursor},
		"after вместе с last":   {Last: intPtr(1), After: &cursor},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Paginate(context.Background(), stream, args)
			assert.ErrorIs(t, err, ErrInvalidArguments, "Ожидалась ошибка InvalidArguments")
		})
	}
}

func TestPaginateCrossStreamCursor(t *testing.T) {
	items := fixtureItems()
	posts := sliceStream("posts", &items)
	timeline := sliceStream("timeline:1", &items)

	conn, err := Paginate(context.Background(), posts, Args{First: intPtr(1)})
	assert.NoError(t, err)
	assert.NotEmpty(t, conn.Edges)

	_, err = Paginate(context.Background(), timeline, Args{First: intPtr(1), After: &conn.Edges[0].Cursor})
	assert.ErrorIs(t, err, ErrInvalidCursor, "Курсор allPosts не должен приниматься потоком timeline")
}

func TestPaginateMalformedCursor(t *testing.T) {
	items := fixtureItems()
	stream := sliceStream("test", &items)

	_, err := Paginate(context.Background(), stream, Args{First: intPtr(1), After: strPtr("мусор")})
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestPaginateAfterDeletedEntity(t *testing.T) {
	items := fixtureItems()
	stream := sliceStream("test", &items)

	conn, err := Paginate(context.Background(), stream, Args{First: intPtr(3)})
	assert.NoError(t, err)
	cursor := conn.PageInfo.EndCursor // указывает на элемент 5

	// Элемент 5 удален после выдачи курсора: возобновление идет сразу
	// после его прежней позиции, соседи не смещаются
	items = append(items[:4], items[5:]...)

	conn, err = Paginate(context.Background(), stream, Args{First: intPtr(2), After: cursor})
	assert.NoError(t, err)
	var got []int
	for _, edge := range conn.Edges {
		got = append(got, edge.Node)
	}
	assert.Equal(t, []int{4, 3}, got, "Курсор кодирует позицию, а не сущность")
}

func TestPaginateScanError(t *testing.T) {
	broken := Stream[int]{
		Tag: "broken",
		Scan: func(ctx context.Context, pos *Position, backward bool, limit int) ([]Item[int], error) {
			return nil, errors.New("ошибка хранилища")
		},
	}
	_, err := Paginate(context.Background(), broken, Args{First: intPtr(1)})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ошибка хранилища", "Ошибка хранилища должна прокидываться вызывающему")
}

func TestMerge(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id int64, hours int) Item[int] {
		return Item[int]{Node: int(id), Pos: Position{SortKey: base.Add(time.Duration(hours) * time.Hour), ID: id}}
	}
	a := []Item[int]{mk(6, 6), mk(3, 3), mk(1, 1)}
	b := []Item[int]{mk(5, 5), mk(2, 2)}
	c := []Item[int]{mk(4, 4)}

	merged := Merge([][]Item[int]{a, b, c}, DescOrder, 10)
	var got []int
	for _, item := range merged {
		got = append(got, item.Node)
	}
	assert.Equal(t, []int{6, 5, 4, 3, 2, 1}, got, "Слияние должно сохранять общий порядок")

	merged = Merge([][]Item[int]{a, b, c}, DescOrder, 3)
	assert.Len(t, merged, 3, "Слияние должно обрезаться по limit")
	assert.Equal(t, 6, merged[0].Node)

	assert.Empty(t, Merge[int](nil, DescOrder, 5), "Слияние без источников дает пустой результат")
}
