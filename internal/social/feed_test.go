package social

import (
	"context"
	"testing"
	"time"

	"github.com/ButyrinIA/socialgraph/internal/models"
	"github.com/ButyrinIA/socialgraph/internal/relay"
	"github.com/ButyrinIA/socialgraph/internal/storage"
	"github.com/ButyrinIA/socialgraph/internal/storage/memory"
	"github.com/stretchr/testify/assert"
)

func createPost(t *testing.T, store storage.Storage, authorID int64, content string, vis models.Visibility, at time.Time) *models.Post {
	t.Helper()
	post := &models.Post{AuthorID: authorID, Content: content, Visibility: vis, CreatedAt: at}
	assert.NoError(t, store.CreatePost(context.Background(), post), "Ошибка при создании поста")
	return post
}

func collectContents(conn *relay.Connection[models.Post]) []string {
	var out []string
	for _, edge := range conn.Edges {
		out = append(out, edge.Node.Content)
	}
	return out
}

func TestTimelineOrderingAndVisibility(t *testing.T) {
	store := memory.New()
	graph := NewFollowGraph(store)
	feed := NewFeed(store)
	ctx := context.Background()

	viewer := createUser(t, store, "viewer")
	a := createUser(t, store, "a")
	b := createUser(t, store, "b")

	_, _, err := graph.Follow(ctx, viewer.ID, a.ID)
	assert.NoError(t, err)
	_, _, err = graph.Follow(ctx, viewer.ID, b.ID)
	assert.NoError(t, err)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	createPost(t, store, a.ID, "t1", models.VisibilityPublic, base.Add(1*time.Hour))
	createPost(t, store, b.ID, "t2", models.VisibilityPublic, base.Add(2*time.Hour))
	createPost(t, store, a.ID, "t3", models.VisibilityPublic, base.Add(3*time.Hour))
	createPost(t, store, a.ID, "t4", models.VisibilityPrivate, base.Add(4*time.Hour))
	createPost(t, store, a.ID, "t5", models.VisibilityFollowersOnly, base.Add(5*time.Hour))

	first := 10
	conn, err := relay.Paginate(ctx, feed.Stream(viewer.ID), relay.Args{First: &first})
	assert.NoError(t, err, "Ошибка сборки ленты")
	assert.Equal(t, []string{"t5", "t3", "t2", "t1"}, collectContents(conn),
		"Лента: обратная хронология, приватный пост исключен, пост для подписчиков включен")
	assert.False(t, conn.PageInfo.HasNextPage)
}

func TestTimelineEmptyFollowingSet(t *testing.T) {
	store := memory.New()
	feed := NewFeed(store)

	viewer := createUser(t, store, "loner")
	createPost(t, store, viewer.ID, "own", models.VisibilityPublic, time.Now())

	first := 10
	conn, err := relay.Paginate(context.Background(), feed.Stream(viewer.ID), relay.Args{First: &first})
	assert.NoError(t, err, "Пустое множество подписок - не ошибка")
	assert.Empty(t, conn.Edges, "Лента без подписок пуста")
	assert.False(t, conn.PageInfo.HasNextPage)
	assert.False(t, conn.PageInfo.HasPreviousPage)
}

func TestTimelineAuthorWithoutPosts(t *testing.T) {
	store := memory.New()
	graph := NewFollowGraph(store)
	feed := NewFeed(store)
	ctx := context.Background()

	viewer := createUser(t, store, "viewer")
	a := createUser(t, store, "a")
	silent := createUser(t, store, "silent")

	_, _, err := graph.Follow(ctx, viewer.ID, a.ID)
	assert.NoError(t, err)
	_, _, err = graph.Follow(ctx, viewer.ID, silent.ID)
	assert.NoError(t, err)

	createPost(t, store, a.ID, "only", models.VisibilityPublic, time.Now())

	first := 10
	conn, err := relay.Paginate(ctx, feed.Stream(viewer.ID), relay.Args{First: &first})
	assert.NoError(t, err, "Автор без постов не должен ломать слияние")
	assert.Equal(t, []string{"only"}, collectContents(conn))
}

func TestTimelinePagination(t *testing.T) {
	store := memory.New()
	graph := NewFollowGraph(store)
	feed := NewFeed(store)
	ctx := context.Background()

	viewer := createUser(t, store, "viewer")
	a := createUser(t, store, "a")
	b := createUser(t, store, "b")
	_, _, err := graph.Follow(ctx, viewer.ID, a.ID)
	assert.NoError(t, err)
	_, _, err = graph.Follow(ctx, viewer.ID, b.ID)
	assert.NoError(t, err)

	// Чередующиеся посты двух авторов, шесть штук
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	expected := []string{"p6", "p5", "p4", "p3", "p2", "p1"}
	for i := 1; i <= 6; i++ {
		author := a.ID
		if i%2 == 0 {
			author = b.ID
		}
		createPost(t, store, author, "p"+string(rune('0'+i)), models.VisibilityPublic, base.Add(time.Duration(i)*time.Minute))
	}

	var collected []string
	var after *string
	first := 2
	for {
		conn, err := relay.Paginate(ctx, feed.Stream(viewer.ID), relay.Args{First: &first, After: after})
		assert.NoError(t, err, "Ошибка постраничного обхода ленты")
		collected = append(collected, collectContents(conn)...)
		if !conn.PageInfo.HasNextPage {
			break
		}
		after = conn.PageInfo.EndCursor
	}
	assert.Equal(t, expected, collected, "Постраничный обход ленты должен выдать все посты в глобальном порядке")
}

func TestTimelineBackwardPage(t *testing.T) {
	store := memory.New()
	graph := NewFollowGraph(store)
	feed := NewFeed(store)
	ctx := context.Background()

	viewer := createUser(t, store, "viewer")
	a := createUser(t, store, "a")
	_, _, err := graph.Follow(ctx, viewer.ID, a.ID)
	assert.NoError(t, err)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 4; i++ {
		createPost(t, store, a.ID, "p"+string(rune('0'+i)), models.VisibilityPublic, base.Add(time.Duration(i)*time.Minute))
	}

	last := 2
	conn, err := relay.Paginate(ctx, feed.Stream(viewer.ID), relay.Args{Last: &last})
	assert.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, collectContents(conn), "Хвост ленты в порядке потока")
	assert.True(t, conn.PageInfo.HasPreviousPage)
}

func TestTimelineExcludesDeletedPosts(t *testing.T) {
	store := memory.New()
	graph := NewFollowGraph(store)
	feed := NewFeed(store)
	ctx := context.Background()

	viewer := createUser(t, store, "viewer")
	a := createUser(t, store, "a")
	_, _, err := graph.Follow(ctx, viewer.ID, a.ID)
	assert.NoError(t, err)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	createPost(t, store, a.ID, "keep", models.VisibilityPublic, base.Add(1*time.Hour))
	doomed := createPost(t, store, a.ID, "doomed", models.VisibilityPublic, base.Add(2*time.Hour))
	assert.NoError(t, store.DeletePost(ctx, doomed.ID))

	first := 10
	conn, err := relay.Paginate(ctx, feed.Stream(viewer.ID), relay.Args{First: &first})
	assert.NoError(t, err)
	assert.Equal(t, []string{"keep"}, collectContents(conn), "Удаленный пост не должен попадать в ленту")
}

func TestTimelineFanOutCap(t *testing.T) {
	store := memory.New()
	graph := NewFollowGraph(store)
	feed := NewFeed(store)
	feed.maxFanOut = 2
	ctx := context.Background()

	viewer := createUser(t, store, "viewer")
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		author := createUser(t, store, "author"+string(rune('a'+i)))
		_, _, err := graph.Follow(ctx, viewer.ID, author.ID)
		assert.NoError(t, err)
		createPost(t, store, author.ID, "post", models.VisibilityPublic, base.Add(time.Duration(i)*time.Minute))
	}

	first := 10
	conn, err := relay.Paginate(ctx, feed.Stream(viewer.ID), relay.Args{First: &first})
	assert.NoError(t, err)
	assert.Len(t, conn.Edges, 2, "В слиянии участвует не больше maxFanOut авторов")
}

func TestTimelineReadCommitted(t *testing.T) {
	store := memory.New()
	graph := NewFollowGraph(store)
	feed := NewFeed(store)
	ctx := context.Background()

	viewer := createUser(t, store, "viewer")
	a := createUser(t, store, "a")
	b := createUser(t, store, "b")
	_, _, err := graph.Follow(ctx, viewer.ID, a.ID)
	assert.NoError(t, err)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	createPost(t, store, a.ID, "a1", models.VisibilityPublic, base.Add(3*time.Hour))
	createPost(t, store, b.ID, "b1", models.VisibilityPublic, base.Add(1*time.Hour))

	first := 1
	conn, err := relay.Paginate(ctx, feed.Stream(viewer.ID), relay.Args{First: &first})
	assert.NoError(t, err)
	assert.Equal(t, []string{"a1"}, collectContents(conn))

	// Подписка посреди пагинации: следующая страница видит новое
	// состояние графа - посты b появляются в хвосте
	_, _, err = graph.Follow(ctx, viewer.ID, b.ID)
	assert.NoError(t, err)

	conn, err = relay.Paginate(ctx, feed.Stream(viewer.ID), relay.Args{First: &first, After: conn.PageInfo.EndCursor})
	assert.NoError(t, err)
	assert.Equal(t, []string{"b1"}, collectContents(conn), "Лента read-committed: новая подписка видна на следующих страницах")
}
