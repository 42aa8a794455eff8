package social

import (
	"context"
	"fmt"

	"github.com/ButyrinIA/socialgraph/internal/models"
	"github.com/ButyrinIA/socialgraph/internal/relay"
	"github.com/ButyrinIA/socialgraph/internal/storage"
)

// FollowGraph - направленный граф подписок поверх хранилища.
// Единственность ребра (follower, following) обеспечивает ограничение
// уникальности хранилища, поэтому конкурентные вызовы сходятся к одному
// из двух терминальных состояний без дубликатов.
type FollowGraph struct {
	store storage.Storage
}

func NewFollowGraph(store storage.Storage) *FollowGraph {
	return &FollowGraph{store: store}
}

// Follow создает ребро подписки. Идемпотентен: существующее ребро
// возвращается без создания дубликата. Подписка на себя отклоняется до
// обращения к хранилищу.
func (g *FollowGraph) Follow(ctx context.Context, followerID, followingID int64) (*models.Follow, bool, error) {
	if followerID == followingID {
		return nil, false, fmt.Errorf("%w: user %d", storage.ErrSelfFollow, followerID)
	}
	if _, err := g.store.GetUser(ctx, followingID); err != nil {
		return nil, false, err
	}
	return g.store.UpsertFollow(ctx, followerID, followingID)
}

// Unfollow удаляет ребро подписки. Идемпотентен: отсутствие ребра - успех
func (g *FollowGraph) Unfollow(ctx context.Context, followerID, followingID int64) error {
	return g.store.DeleteFollow(ctx, followerID, followingID)
}

// FollowingStream - поток исходящих ребер пользователя, по created_at
// по убыванию; потребляется движком пагинации
func (g *FollowGraph) FollowingStream(userID int64) relay.Stream[models.Follow] {
	return followStream(g.store, userID, storage.DirectionFollowing)
}

// FollowersStream - поток входящих ребер пользователя
func (g *FollowGraph) FollowersStream(userID int64) relay.Stream[models.Follow] {
	return followStream(g.store, userID, storage.DirectionFollowers)
}

func followStream(store storage.Storage, userID int64, dir storage.FollowDirection) relay.Stream[models.Follow] {
	return relay.Stream[models.Follow]{
		Tag: fmt.Sprintf("%s:%d", dir, userID),
		Scan: func(ctx context.Context, pos *relay.Position, backward bool, limit int) ([]relay.Item[models.Follow], error) {
			follows, err := store.ScanFollows(ctx, userID, dir, pos, backward, limit)
			if err != nil {
				return nil, err
			}
			items := make([]relay.Item[models.Follow], len(follows))
			for i, f := range follows {
				items[i] = relay.Item[models.Follow]{
					Node: f,
					Pos:  relay.Position{SortKey: f.CreatedAt, ID: f.ID},
				}
			}
			return items, nil
		},
	}
}
