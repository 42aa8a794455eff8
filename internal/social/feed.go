package social

import (
	"context"
	"fmt"

	"github.com/ButyrinIA/socialgraph/internal/models"
	"github.com/ButyrinIA/socialgraph/internal/relay"
	"github.com/ButyrinIA/socialgraph/internal/storage"
)

// MaxFanOut ограничивает число подписок, участвующих в слиянии ленты.
// Лента - это ограниченное слияние поверх постранично отсканированных
// потоков авторов, а не полный проход таблицы.
const MaxFanOut = 1000

// Feed собирает персональную ленту просмотра: обратно-хронологическое
// слияние постов всех, на кого подписан пользователь. Лента вычисляется
// при чтении из текущего состояния графа (read-committed): подписка,
// добавленная посреди пагинации, может проявиться на следующих страницах.
type Feed struct {
	store     storage.Storage
	maxFanOut int
}

func NewFeed(store storage.Storage) *Feed {
	return &Feed{store: store, maxFanOut: MaxFanOut}
}

// Stream - поток ленты для viewerID, потребляемый движком пагинации.
// Фильтр видимости применяется до оконной выборки: публичные посты и посты
// для подписчиков включаются (наблюдатель по построению подписчик),
// приватные исключаются. Пустое множество подписок дает пустой поток.
func (f *Feed) Stream(viewerID int64) relay.Stream[models.Post] {
	return relay.Stream[models.Post]{
		Tag:  fmt.Sprintf("timeline:%d", viewerID),
		Scan: f.scan(viewerID),
	}
}

func (f *Feed) scan(viewerID int64) relay.ScanFunc[models.Post] {
	return func(ctx context.Context, pos *relay.Position, backward bool, limit int) ([]relay.Item[models.Post], error) {
		authorIDs, err := f.store.ListFollowingIDs(ctx, viewerID, f.maxFanOut)
		if err != nil {
			return nil, fmt.Errorf("resolve following set: %w", err)
		}
		if len(authorIDs) == 0 {
			return nil, nil
		}

		visible := []models.Visibility{models.VisibilityPublic, models.VisibilityFollowersOnly}
		sources := make([][]relay.Item[models.Post], 0, len(authorIDs))
		for _, authorID := range authorIDs {
			id := authorID
			posts, err := f.store.ScanPosts(ctx, storage.PostFilter{
				AuthorID:     &id,
				Visibilities: visible,
			}, pos, backward, limit)
			if err != nil {
				return nil, fmt.Errorf("scan posts of author %d: %w", id, err)
			}
			if len(posts) == 0 {
				continue
			}
			items := make([]relay.Item[models.Post], len(posts))
			for i, p := range posts {
				items[i] = relay.Item[models.Post]{
					Node: p,
					Pos:  relay.Position{SortKey: p.CreatedAt, ID: p.ID},
				}
			}
			sources = append(sources, items)
		}

		// Каждый источник уже упорядочен: k-путевое слияние по
		// (created_at, id) сохраняет общий порядок потока
		less := relay.DescOrder
		if backward {
			less = relay.AscOrder
		}
		return relay.Merge(sources, less, limit), nil
	}
}
