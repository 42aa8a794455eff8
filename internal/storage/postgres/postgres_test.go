package postgres

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/ButyrinIA/socialgraph/internal/models"
	"github.com/ButyrinIA/socialgraph/internal/relay"
	"github.com/ButyrinIA/socialgraph/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresStorage(t *testing.T) {
	log.SetOutput(os.Stdout)

	// Запуск тестового контейнера PostgreSQL
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:13",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "user",
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "socialgraph",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}
	postgresC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Не удалось запустить контейнер PostgreSQL: %v", err)
	}
	defer postgresC.Terminate(ctx)

	// Получение DSN
	host, err := postgresC.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить хост контейнера: %v", err)
	}
	port, err := postgresC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить порт контейнера: %v", err)
	}
	dsn := "postgres://user:password@" + host + ":" + port.Port() + "/socialgraph?sslmode=disable"

	// Инициализация хранилища
	store, err := New(dsn)
	if err != nil {
		t.Fatalf("Не удалось инициализировать PostgresStorage: %v", err)
	}
	defer store.Close()

	newUser := func(t *testing.T, username string) *models.User {
		t.Helper()
		user := &models.User{Username: username, CreatedAt: time.Now()}
		profile := &models.Profile{CreatedAt: user.CreatedAt}
		assert.NoError(t, store.CreateUser(ctx, user, profile), "Ошибка при создании пользователя")
		return user
	}

	t.Run("CreateUser and GetUser", func(t *testing.T) {
		user := newUser(t, "alice")
		assert.NotZero(t, user.ID, "BIGSERIAL должен выдать id")

		retrieved, err := store.GetUser(ctx, user.ID)
		assert.NoError(t, err, "Ошибка при получении пользователя")
		assert.Equal(t, "alice", retrieved.Username)

		byName, err := store.GetUserByUsername(ctx, "alice")
		assert.NoError(t, err)
		assert.Equal(t, user.ID, byName.ID)
	})

	t.Run("CreateUser Duplicate Username", func(t *testing.T) {
		user := &models.User{Username: "alice", CreatedAt: time.Now()}
		err := store.CreateUser(ctx, user, &models.Profile{CreatedAt: time.Now()})
		assert.ErrorIs(t, err, storage.ErrUsernameTaken, "Повторное имя должно упереться в уникальный индекс")
	})

	t.Run("CreatePost and GetPost", func(t *testing.T) {
		author := newUser(t, "author1")
		post := &models.Post{
			AuthorID:   author.ID,
			Content:    "Тестовый пост",
			Visibility: models.VisibilityPublic,
			CreatedAt:  time.Now(),
		}
		err := store.CreatePost(ctx, post)
		assert.NoError(t, err, "Ошибка при создании поста")

		retrieved, err := store.GetPost(ctx, post.ID)
		assert.NoError(t, err, "Ошибка при получении поста")
		assert.Equal(t, post.Content, retrieved.Content, "Содержимое поста не совпадает")
		assert.Equal(t, models.VisibilityPublic, retrieved.Visibility)
	})

	t.Run("GetPost Not Found", func(t *testing.T) {
		_, err := store.GetPost(ctx, 999999)
		assert.ErrorIs(t, err, storage.ErrNotFound, "Ожидалась ошибка для несуществующего поста")
	})

	t.Run("DeletePost Soft Delete", func(t *testing.T) {
		author := newUser(t, "author2")
		post := &models.Post{AuthorID: author.ID, Content: "обреченный", Visibility: models.VisibilityPublic, CreatedAt: time.Now()}
		assert.NoError(t, store.CreatePost(ctx, post))

		assert.NoError(t, store.DeletePost(ctx, post.ID))
		_, err := store.GetPost(ctx, post.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound, "Удаленный пост недоступен")

		err = store.DeletePost(ctx, post.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound, "Повторное удаление - not found")
	})

	t.Run("ScanPosts Keyset Pagination", func(t *testing.T) {
		author := newUser(t, "author3")
		base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		var created []models.Post
		for i := 1; i <= 4; i++ {
			post := &models.Post{AuthorID: author.ID, Content: "p", Visibility: models.VisibilityPublic, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
			assert.NoError(t, store.CreatePost(ctx, post))
			created = append(created, *post)
		}

		posts, err := store.ScanPosts(ctx, storage.PostFilter{AuthorID: &author.ID}, nil, false, 2)
		assert.NoError(t, err, "Ошибка при скане постов")
		assert.Len(t, posts, 2)
		assert.Equal(t, created[3].ID, posts[0].ID, "Скан идет в обратной хронологии")
		assert.Equal(t, created[2].ID, posts[1].ID)

		pos := &relay.Position{SortKey: posts[1].CreatedAt, ID: posts[1].ID}
		next, err := store.ScanPosts(ctx, storage.PostFilter{AuthorID: &author.ID}, pos, false, 10)
		assert.NoError(t, err)
		assert.Len(t, next, 2, "Вторая страница - остаток")
		assert.Equal(t, created[1].ID, next[0].ID)
		assert.Equal(t, created[0].ID, next[1].ID)

		back, err := store.ScanPosts(ctx, storage.PostFilter{AuthorID: &author.ID}, pos, true, 10)
		assert.NoError(t, err)
		assert.Len(t, back, 1, "Назад от позиции - строго новее")
		assert.Equal(t, created[3].ID, back[0].ID)
	})

	t.Run("ScanPosts Visibility Filter", func(t *testing.T) {
		author := newUser(t, "author4")
		for _, vis := range []models.Visibility{models.VisibilityPublic, models.VisibilityFollowersOnly, models.VisibilityPrivate} {
			post := &models.Post{AuthorID: author.ID, Content: "v", Visibility: vis, CreatedAt: time.Now()}
			assert.NoError(t, store.CreatePost(ctx, post))
		}
		posts, err := store.ScanPosts(ctx, storage.PostFilter{
			AuthorID:     &author.ID,
			Visibilities: []models.Visibility{models.VisibilityPublic, models.VisibilityFollowersOnly},
		}, nil, false, 10)
		assert.NoError(t, err)
		assert.Len(t, posts, 2, "Приватный пост отфильтрован")
	})

	t.Run("CreateComment Bumps Counter", func(t *testing.T) {
		author := newUser(t, "author5")
		post := &models.Post{AuthorID: author.ID, Content: "пост", Visibility: models.VisibilityPublic, CreatedAt: time.Now()}
		assert.NoError(t, store.CreatePost(ctx, post))

		comment := &models.Comment{PostID: post.ID, AuthorID: author.ID, Content: "Тестовый комментарий", CreatedAt: time.Now()}
		err := store.CreateComment(ctx, comment)
		assert.NoError(t, err, "Ошибка при создании комментария")

		retrieved, err := store.GetPost(ctx, post.ID)
		assert.NoError(t, err)
		assert.Equal(t, 1, retrieved.CommentCount, "Счетчик комментариев не увеличился")

		comments, err := store.ScanComments(ctx, post.ID, nil, false, 10)
		assert.NoError(t, err, "Ошибка при получении комментариев")
		assert.Len(t, comments, 1, "Ожидался один комментарий")
		assert.Equal(t, comment.ID, comments[0].ID)

		missing := &models.Comment{PostID: 999999, AuthorID: author.ID, Content: "куда?", CreatedAt: time.Now()}
		assert.ErrorIs(t, store.CreateComment(ctx, missing), storage.ErrNotFound)
	})

	t.Run("UpsertFollow Idempotent", func(t *testing.T) {
		alice := newUser(t, "f-alice")
		bob := newUser(t, "f-bob")

		follow, created, err := store.UpsertFollow(ctx, alice.ID, bob.ID)
		assert.NoError(t, err, "Ошибка при подписке")
		assert.True(t, created)

		again, created, err := store.UpsertFollow(ctx, alice.ID, bob.ID)
		assert.NoError(t, err)
		assert.False(t, created, "Повторная подписка не создает новое ребро")
		assert.Equal(t, follow.ID, again.ID)

		follows, err := store.ScanFollows(ctx, alice.ID, storage.DirectionFollowing, nil, false, 10)
		assert.NoError(t, err)
		assert.Len(t, follows, 1)

		ids, err := store.ListFollowingIDs(ctx, alice.ID, 100)
		assert.NoError(t, err)
		assert.Equal(t, []int64{bob.ID}, ids)

		assert.NoError(t, store.DeleteFollow(ctx, alice.ID, bob.ID))
		assert.NoError(t, store.DeleteFollow(ctx, alice.ID, bob.ID), "Повторная отписка - не ошибка")
	})

	t.Run("UpsertReaction Once", func(t *testing.T) {
		author := newUser(t, "r-author")
		post := &models.Post{AuthorID: author.ID, Content: "пост", Visibility: models.VisibilityPublic, CreatedAt: time.Now()}
		assert.NoError(t, store.CreatePost(ctx, post))

		_, created, err := store.UpsertReaction(ctx, post.ID, author.ID, models.ReactionLike)
		assert.NoError(t, err, "Ошибка при реакции")
		assert.True(t, created)

		_, created, err = store.UpsertReaction(ctx, post.ID, author.ID, models.ReactionLike)
		assert.NoError(t, err)
		assert.False(t, created)

		retrieved, err := store.GetPost(ctx, post.ID)
		assert.NoError(t, err)
		assert.Equal(t, 1, retrieved.LikeCount, "Повторный лайк не меняет счетчик")
	})

	t.Run("Notifications Scan", func(t *testing.T) {
		recipient := newUser(t, "n-recipient")
		actor := newUser(t, "n-actor")
		base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		for i := 1; i <= 3; i++ {
			n := &models.Notification{
				RecipientID: recipient.ID,
				ActorID:     actor.ID,
				Type:        models.NotificationFollow,
				CreatedAt:   base.Add(time.Duration(i) * time.Minute),
			}
			assert.NoError(t, store.CreateNotification(ctx, n), "Ошибка при создании уведомления")
		}

		notifications, err := store.ScanNotifications(ctx, recipient.ID, nil, false, 2)
		assert.NoError(t, err)
		assert.Len(t, notifications, 2, "Лимит соблюдается")
		assert.True(t, notifications[0].CreatedAt.After(notifications[1].CreatedAt), "Обратная хронология")
	})
}
