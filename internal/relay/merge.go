package relay

import "container/heap"

// DescOrder сообщает, стоит ли a раньше b в порядке убывания
// (created_at, id) - порядок хронологических потоков
func DescOrder(a, b Position) bool {
	if !a.SortKey.Equal(b.SortKey) {
		return a.SortKey.After(b.SortKey)
	}
	return a.ID > b.ID
}

// AscOrder - обратный порядок, используется при обходе потока с хвоста
func AscOrder(a, b Position) bool {
	return DescOrder(b, a)
}

// Merge сливает уже упорядоченные источники в один поток того же порядка
// и возвращает первые limit элементов. less определяет порядок выдачи:
// less(a, b) истинно, если a выдается раньше b. Слияние ограничено головами
// источников, полной материализации не происходит.
func Merge[T any](sources [][]Item[T], less func(a, b Position) bool, limit int) []Item[T] {
	h := &mergeHeap[T]{less: less}
	for _, src := range sources {
		if len(src) > 0 {
			h.entries = append(h.entries, mergeEntry[T]{items: src})
		}
	}
	heap.Init(h)

	var out []Item[T]
	for len(out) < limit && h.Len() > 0 {
		e := &h.entries[0]
		out = append(out, e.items[e.next])
		e.next++
		if e.next == len(e.items) {
			heap.Pop(h)
		} else {
			heap.Fix(h, 0)
		}
	}
	return out
}

type mergeEntry[T any] struct {
	items []Item[T]
	next  int
}

type mergeHeap[T any] struct {
	entries []mergeEntry[T]
	less    func(a, b Position) bool
}

func (h *mergeHeap[T]) Len() int { return len(h.entries) }

func (h *mergeHeap[T]) Less(i, j int) bool {
	a := h.entries[i].items[h.entries[i].next]
	b := h.entries[j].items[h.entries[j].next]
	return h.less(a.Pos, b.Pos)
}

func (h *mergeHeap[T]) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }

func (h *mergeHeap[T]) Push(x any) { h.entries = append(h.entries, x.(mergeEntry[T])) }

func (h *mergeHeap[T]) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	h.entries = old[:n-1]
	return e
}
