package relay

import (
	"context"
	"fmt"
)

// Item - элемент потока вместе со своей позицией
type Item[T any] struct {
	Node T
	Pos  Position
}

// ScanFunc выдает до limit элементов потока. При backward=false - элементы
// строго после after в порядке потока, при backward=true - строго до after в
// обратном порядке. after=nil означает начало (или конец) потока. Фильтр
// потока применяется внутри Scan, до оконной выборки.
type ScanFunc[T any] func(ctx context.Context, after *Position, backward bool, limit int) ([]Item[T], error)

// Stream - определение упорядоченного потока: тег идентичности
// (сортировка плюс фильтр) и функция сканирования. Курсоры сравнимы
// только внутри потока с тем же тегом.
type Stream[T any] struct {
	Tag  string
	Scan ScanFunc[T]
}

// Args - аргументы пагинации в контракте Relay
type Args struct {
	First  *int
	After  *string
	Last   *int
	Before *string
}

type Edge[T any] struct {
	Node   T
	Cursor string
}

type PageInfo struct {
	HasNextPage     bool
	HasPreviousPage bool
	StartCursor     *string
	EndCursor       *string
}

// Connection - страница ребер (узел, курсор) плюс флаги пагинации.
// Ребра всегда в порядке потока, в том числе при обратной выборке.
type Connection[T any] struct {
	Edges    []Edge[T]
	PageInfo PageInfo
}

// Paginate выполняет оконную выборку над потоком. Ровно один из First/Last,
// неотрицательный; After только с First, Before только с Last. Нарушения
// дают ErrInvalidArguments до обращения к хранилищу. Наличие следующей
// страницы определяется пробой одного элемента за окном, без включения его
// в результат.
func Paginate[T any](ctx context.Context, stream Stream[T], args Args) (*Connection[T], error) {
	if err := validateArgs(args); err != nil {
		return nil, err
	}

	var (
		limit    int
		pos      *Position
		backward bool
	)
	if args.First != nil {
		limit = *args.First
		if args.After != nil {
			p, err := DecodeCursor(stream.Tag, *args.After)
			if err != nil {
				return nil, err
			}
			pos = &p
		}
	} else {
		limit = *args.Last
		backward = true
		if args.Before != nil {
			p, err := DecodeCursor(stream.Tag, *args.Before)
			if err != nil {
				return nil, err
			}
			pos = &p
		}
	}

	items, err := stream.Scan(ctx, pos, backward, limit+1)
	if err != nil {
		return nil, fmt.Errorf("scan stream %q: %w", stream.Tag, err)
	}

	probed := len(items) > limit
	if probed {
		items = items[:limit]
	}
	if backward {
		reverse(items)
	}

	conn := &Connection[T]{Edges: make([]Edge[T], len(items))}
	for i, it := range items {
		conn.Edges[i] = Edge[T]{Node: it.Node, Cursor: EncodeCursor(stream.Tag, it.Pos)}
	}
	if backward {
		conn.PageInfo.HasPreviousPage = probed
		conn.PageInfo.HasNextPage = args.Before != nil
	} else {
		conn.PageInfo.HasNextPage = probed
		conn.PageInfo.HasPreviousPage = args.After != nil
	}
	if len(conn.Edges) > 0 {
		conn.PageInfo.StartCursor = &conn.Edges[0].Cursor
		conn.PageInfo.EndCursor = &conn.Edges[len(conn.Edges)-1].Cursor
	}
	return conn, nil
}

func validateArgs(args Args) error {
	switch {
	case args.First != nil && args.Last != nil:
		return fmt.Errorf("%w: first and last are mutually exclusive", ErrInvalidArguments)
	case args.First == nil && args.Last == nil:
		return fmt.Errorf("%w: either first or last is required", ErrInvalidArguments)
	case args.First != nil && *args.First < 0:
		return fmt.Errorf("%w: first must be non-negative", ErrInvalidArguments)
	case args.Last != nil && *args.Last < 0:
		return fmt.Errorf("%w: last must be non-negative", ErrInvalidArguments)
	case args.First != nil && args.Before != nil:
		return fmt.Errorf("%w: before is only valid with last", ErrInvalidArguments)
	case args.Last != nil && args.After != nil:
		return fmt.Errorf("%w: after is only valid with first", ErrInvalidArguments)
	}
	return nil
}

func reverse[T any](items []Item[T]) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
