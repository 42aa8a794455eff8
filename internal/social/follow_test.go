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

func createUser(t *testing.T, store storage.Storage, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, CreatedAt: time.Now()}
	profile := &models.Profile{CreatedAt: user.CreatedAt}
	assert.NoError(t, store.CreateUser(context.Background(), user, profile), "Ошибка при создании пользователя")
	return user
}

func TestFollowIdempotent(t *testing.T) {
	store := memory.New()
	graph := NewFollowGraph(store)
	ctx := context.Background()

	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")

	first, created, err := graph.Follow(ctx, alice.ID, bob.ID)
	assert.NoError(t, err, "Ошибка при создании подписки")
	assert.True(t, created, "Первый вызов должен создать ребро")

	second, created, err := graph.Follow(ctx, alice.ID, bob.ID)
	assert.NoError(t, err, "Повторная подписка не должна быть ошибкой")
	assert.False(t, created, "Повторный вызов не должен создавать дубликат")
	assert.Equal(t, first.ID, second.ID, "Оба вызова должны вернуть одно ребро")

	follows, err := store.ScanFollows(ctx, alice.ID, storage.DirectionFollowing, nil, false, 10)
	assert.NoError(t, err)
	assert.Len(t, follows, 1, "После двух follow должно остаться ровно одно ребро")
}

func TestUnfollowIdempotent(t *testing.T) {
	store := memory.New()
	graph := NewFollowGraph(store)
	ctx := context.Background()

	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")

	// Отписка при отсутствии ребра - не ошибка
	assert.NoError(t, graph.Unfollow(ctx, alice.ID, bob.ID), "Отписка без подписки должна быть успешной")

	_, _, err := graph.Follow(ctx, alice.ID, bob.ID)
	assert.NoError(t, err)
	assert.NoError(t, graph.Unfollow(ctx, alice.ID, bob.ID))
	assert.NoError(t, graph.Unfollow(ctx, alice.ID, bob.ID), "Повторная отписка должна быть успешной")

	follows, err := store.ScanFollows(ctx, alice.ID, storage.DirectionFollowing, nil, false, 10)
	assert.NoError(t, err)
	assert.Empty(t, follows, "Ребро должно быть удалено")
}

func TestSelfFollowRejected(t *testing.T) {
	store := memory.New()
	graph := NewFollowGraph(store)

	alice := createUser(t, store, "alice")

	_, _, err := graph.Follow(context.Background(), alice.ID, alice.ID)
	assert.ErrorIs(t, err, storage.ErrSelfFollow, "Подписка на себя должна отклоняться")
}

func TestFollowUnknownTarget(t *testing.T) {
	store := memory.New()
	graph := NewFollowGraph(store)

	alice := createUser(t, store, "alice")

	_, _, err := graph.Follow(context.Background(), alice.ID, alice.ID+1000)
	assert.ErrorIs(t, err, storage.ErrNotFound, "Подписка на несуществующего пользователя должна давать NotFound")
}

func TestFollowStreams(t *testing.T) {
	store := memory.New()
	graph := NewFollowGraph(store)
	ctx := context.Background()

	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")
	carol := createUser(t, store, "carol")

	_, _, err := graph.Follow(ctx, alice.ID, bob.ID)
	assert.NoError(t, err)
	_, _, err = graph.Follow(ctx, alice.ID, carol.ID)
	assert.NoError(t, err)
	_, _, err = graph.Follow(ctx, bob.ID, carol.ID)
	assert.NoError(t, err)

	first := 10
	conn, err := relay.Paginate(ctx, graph.FollowingStream(alice.ID), relay.Args{First: &first})
	assert.NoError(t, err, "Ошибка пагинации исходящих ребер")
	assert.Len(t, conn.Edges, 2, "У alice две подписки")

	conn, err = relay.Paginate(ctx, graph.FollowersStream(carol.ID), relay.Args{First: &first})
	assert.NoError(t, err, "Ошибка пагинации входящих ребер")
	assert.Len(t, conn.Edges, 2, "На carol подписаны двое")

	// Курсор потока подписок не принимается потоком подписчиков
	cursor := conn.Edges[0].Cursor
	_, err = relay.Paginate(ctx, graph.FollowingStream(carol.ID), relay.Args{First: &first, After: &cursor})
	assert.ErrorIs(t, err, relay.ErrInvalidCursor, "Курсор чужого потока должен отклоняться")
}
