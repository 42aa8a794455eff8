package social

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ButyrinIA/socialgraph/internal/models"
	"github.com/ButyrinIA/socialgraph/internal/relay"
	"github.com/ButyrinIA/socialgraph/internal/storage"
)

// PostsStream - поток постов по убыванию created_at с необязательным
// фильтром по автору и видимости. Тег несет идентичность фильтра, поэтому
// курсор, выданный с одним фильтром, отклоняется при другом.
func PostsStream(store storage.Storage, filter storage.PostFilter) relay.Stream[models.Post] {
	return relay.Stream[models.Post]{
		Tag: postsTag(filter),
		Scan: func(ctx context.Context, pos *relay.Position, backward bool, limit int) ([]relay.Item[models.Post], error) {
			posts, err := store.ScanPosts(ctx, filter, pos, backward, limit)
			if err != nil {
				return nil, err
			}
			items := make([]relay.Item[models.Post], len(posts))
			for i, p := range posts {
				items[i] = relay.Item[models.Post]{
					Node: p,
					Pos:  relay.Position{SortKey: p.CreatedAt, ID: p.ID},
				}
			}
			return items, nil
		},
	}
}

// CommentsStream - поток комментариев поста по убыванию created_at
func CommentsStream(store storage.Storage, postID int64) relay.Stream[models.Comment] {
	return relay.Stream[models.Comment]{
		Tag: fmt.Sprintf("comments:%d", postID),
		Scan: func(ctx context.Context, pos *relay.Position, backward bool, limit int) ([]relay.Item[models.Comment], error) {
			comments, err := store.ScanComments(ctx, postID, pos, backward, limit)
			if err != nil {
				return nil, err
			}
			items := make([]relay.Item[models.Comment], len(comments))
			for i, c := range comments {
				items[i] = relay.Item[models.Comment]{
					Node: c,
					Pos:  relay.Position{SortKey: c.CreatedAt, ID: c.ID},
				}
			}
			return items, nil
		},
	}
}

// NotificationsStream - поток уведомлений получателя по убыванию created_at
func NotificationsStream(store storage.Storage, recipientID int64) relay.Stream[models.Notification] {
	return relay.Stream[models.Notification]{
		Tag: fmt.Sprintf("notifications:%d", recipientID),
		Scan: func(ctx context.Context, pos *relay.Position, backward bool, limit int) ([]relay.Item[models.Notification], error) {
			notifications, err := store.ScanNotifications(ctx, recipientID, pos, backward, limit)
			if err != nil {
				return nil, err
			}
			items := make([]relay.Item[models.Notification], len(notifications))
			for i, n := range notifications {
				items[i] = relay.Item[models.Notification]{
					Node: n,
					Pos:  relay.Position{SortKey: n.CreatedAt, ID: n.ID},
				}
			}
			return items, nil
		},
	}
}

func postsTag(filter storage.PostFilter) string {
	tag := "posts"
	if filter.AuthorID != nil {
		tag += fmt.Sprintf(":author=%d", *filter.AuthorID)
	}
	if len(filter.Visibilities) > 0 {
		values := make([]string, len(filter.Visibilities))
		for i, v := range filter.Visibilities {
			values[i] = string(v)
		}
		sort.Strings(values)
		tag += ":vis=" + strings.Join(values, ",")
	}
	return tag
}
