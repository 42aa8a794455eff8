package memory

import (
	"context"
	"testing"
	"time"

	"github.com/ButyrinIA/socialgraph/internal/models"
	"github.com/ButyrinIA/socialgraph/internal/relay"
	"github.com/ButyrinIA/socialgraph/internal/storage"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestMemoryStorage(t *testing.T) {
	store := New()
	ctx := context.Background()

	t.Run("Создание и получение пользователя", func(t *testing.T) {
		user := &models.User{Username: "alice", CreatedAt: time.Now()}
		profile := &models.Profile{Bio: strPtr("привет"), CreatedAt: user.CreatedAt}
		err := store.CreateUser(ctx, user, profile)
		assert.NoError(t, err, "Ошибка при создании пользователя")
		assert.NotZero(t, user.ID)
		assert.Equal(t, user.ID, profile.UserID)

		got, err := store.GetUser(ctx, user.ID)
		assert.NoError(t, err)
		assert.Equal(t, "alice", got.Username)

		byName, err := store.GetUserByUsername(ctx, "alice")
		assert.NoError(t, err)
		assert.Equal(t, user.ID, byName.ID)

		p, err := store.GetProfile(ctx, profile.ID)
		assert.NoError(t, err)
		assert.Equal(t, "привет", *p.Bio)
	})

	t.Run("Занятое имя пользователя", func(t *testing.T) {
		user := &models.User{Username: "alice", CreatedAt: time.Now()}
		err := store.CreateUser(ctx, user, &models.Profile{})
		assert.ErrorIs(t, err, storage.ErrUsernameTaken)
	})

	t.Run("Несуществующий пользователь", func(t *testing.T) {
		_, err := store.GetUser(ctx, 99999)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = store.GetUserByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Пакетная загрузка профилей", func(t *testing.T) {
		bob := &models.User{Username: "bob", CreatedAt: time.Now()}
		err := store.CreateUser(ctx, bob, &models.Profile{Bio: strPtr("боб")})
		assert.NoError(t, err)

		alice, err := store.GetUserByUsername(ctx, "alice")
		assert.NoError(t, err)

		profiles, err := store.GetProfilesByUserIDs(ctx, []int64{alice.ID, bob.ID, 99999})
		assert.NoError(t, err)
		assert.Len(t, profiles, 2, "Неизвестный пользователь не попадает в результат")
		assert.Equal(t, "боб", *profiles[bob.ID].Bio)
	})
}

func TestMemoryStoragePosts(t *testing.T) {
	store := New()
	ctx := context.Background()

	author := &models.User{Username: "author", CreatedAt: time.Now()}
	assert.NoError(t, store.CreateUser(ctx, author, &models.Profile{}))

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mkPost := func(content string, vis models.Visibility, at time.Time) *models.Post {
		post := &models.Post{AuthorID: author.ID, Content: content, Visibility: vis, CreatedAt: at}
		assert.NoError(t, store.CreatePost(ctx, post), "Ошибка при создании поста")
		return post
	}

	p1 := mkPost("p1", models.VisibilityPublic, base.Add(1*time.Minute))
	p2 := mkPost("p2", models.VisibilityPrivate, base.Add(2*time.Minute))
	// совпадающее время - порядок добивается по id
	p3 := mkPost("p3", models.VisibilityPublic, base.Add(3*time.Minute))
	p4 := mkPost("p4", models.VisibilityPublic, base.Add(3*time.Minute))

	t.Run("Скан в обратной хронологии с добивкой по id", func(t *testing.T) {
		posts, err := store.ScanPosts(ctx, storage.PostFilter{}, nil, false, 10)
		assert.NoError(t, err)
		contents := make([]string, len(posts))
		for i, p := range posts {
			contents[i] = p.Content
		}
		assert.Equal(t, []string{"p4", "p3", "p2", "p1"}, contents)
	})

	t.Run("Фильтр по видимости", func(t *testing.T) {
		posts, err := store.ScanPosts(ctx, storage.PostFilter{
			Visibilities: []models.Visibility{models.VisibilityPublic},
		}, nil, false, 10)
		assert.NoError(t, err)
		assert.Len(t, posts, 3)
		for _, p := range posts {
			assert.Equal(t, models.VisibilityPublic, p.Visibility)
		}
	})

	t.Run("Скан вперед от позиции", func(t *testing.T) {
		pos := &relay.Position{SortKey: p3.CreatedAt, ID: p3.ID}
		posts, err := store.ScanPosts(ctx, storage.PostFilter{}, pos, false, 10)
		assert.NoError(t, err)
		assert.Len(t, posts, 2)
		assert.Equal(t, "p2", posts[0].Content, "Вперед - строго старше позиции")
		assert.Equal(t, "p1", posts[1].Content)
	})

	t.Run("Скан назад от позиции", func(t *testing.T) {
		pos := &relay.Position{SortKey: p2.CreatedAt, ID: p2.ID}
		posts, err := store.ScanPosts(ctx, storage.PostFilter{}, pos, true, 10)
		assert.NoError(t, err)
		assert.Len(t, posts, 2)
		assert.Equal(t, "p3", posts[0].Content, "Назад - строго новее позиции, в обратном порядке")
		assert.Equal(t, "p4", posts[1].Content)
	})

	t.Run("Мягкое удаление", func(t *testing.T) {
		assert.NoError(t, store.DeletePost(ctx, p4.ID))

		_, err := store.GetPost(ctx, p4.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound, "Удаленный пост недоступен по id")

		err = store.DeletePost(ctx, p4.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound, "Повторное удаление - not found")

		posts, err := store.ScanPosts(ctx, storage.PostFilter{}, nil, false, 10)
		assert.NoError(t, err)
		assert.Len(t, posts, 3, "Удаленный пост исключен из сканов")
	})

	_ = p1
}

func TestMemoryStorageComments(t *testing.T) {
	store := New()
	ctx := context.Background()

	author := &models.User{Username: "author", CreatedAt: time.Now()}
	assert.NoError(t, store.CreateUser(ctx, author, &models.Profile{}))
	post := &models.Post{AuthorID: author.ID, Content: "пост", Visibility: models.VisibilityPublic, CreatedAt: time.Now()}
	assert.NoError(t, store.CreatePost(ctx, post))

	t.Run("Комментарий увеличивает счетчик", func(t *testing.T) {
		comment := &models.Comment{PostID: post.ID, AuthorID: author.ID, Content: "первый", CreatedAt: time.Now()}
		assert.NoError(t, store.CreateComment(ctx, comment))
		assert.NotZero(t, comment.ID)

		got, err := store.GetPost(ctx, post.ID)
		assert.NoError(t, err)
		assert.Equal(t, 1, got.CommentCount)

		c, err := store.GetComment(ctx, comment.ID)
		assert.NoError(t, err)
		assert.Equal(t, "первый", c.Content)
	})

	t.Run("Комментарий к несуществующему посту", func(t *testing.T) {
		comment := &models.Comment{PostID: 99999, AuthorID: author.ID, Content: "куда?", CreatedAt: time.Now()}
		err := store.CreateComment(ctx, comment)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Скан комментариев поста", func(t *testing.T) {
		base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		for i := 1; i <= 3; i++ {
			c := &models.Comment{PostID: post.ID, AuthorID: author.ID, Content: "c", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
			assert.NoError(t, store.CreateComment(ctx, c))
		}
		comments, err := store.ScanComments(ctx, post.ID, nil, false, 2)
		assert.NoError(t, err)
		assert.Len(t, comments, 2, "Лимит соблюдается")
		assert.True(t, comments[0].CreatedAt.After(comments[1].CreatedAt) ||
			(comments[0].CreatedAt.Equal(comments[1].CreatedAt) && comments[0].ID > comments[1].ID))
	})
}

func TestMemoryStorageFollows(t *testing.T) {
	store := New()
	ctx := context.Background()

	t.Run("Уникальность пары подписки", func(t *testing.T) {
		follow, created, err := store.UpsertFollow(ctx, 1, 2)
		assert.NoError(t, err)
		assert.True(t, created)

		again, created, err := store.UpsertFollow(ctx, 1, 2)
		assert.NoError(t, err)
		assert.False(t, created, "Повторная подписка не создает новую запись")
		assert.Equal(t, follow.ID, again.ID)

		reverse, created, err := store.UpsertFollow(ctx, 2, 1)
		assert.NoError(t, err)
		assert.True(t, created, "Обратное направление - отдельная запись")
		assert.NotEqual(t, follow.ID, reverse.ID)
	})

	t.Run("Сканы по направлениям", func(t *testing.T) {
		_, _, err := store.UpsertFollow(ctx, 1, 3)
		assert.NoError(t, err)

		following, err := store.ScanFollows(ctx, 1, storage.DirectionFollowing, nil, false, 10)
		assert.NoError(t, err)
		assert.Len(t, following, 2)

		followers, err := store.ScanFollows(ctx, 1, storage.DirectionFollowers, nil, false, 10)
		assert.NoError(t, err)
		assert.Len(t, followers, 1)

		ids, err := store.ListFollowingIDs(ctx, 1, 100)
		assert.NoError(t, err)
		assert.Equal(t, []int64{2, 3}, ids)
	})

	t.Run("Удаление подписки идемпотентно", func(t *testing.T) {
		assert.NoError(t, store.DeleteFollow(ctx, 1, 2))
		assert.NoError(t, store.DeleteFollow(ctx, 1, 2), "Повторное удаление - не ошибка")

		ids, err := store.ListFollowingIDs(ctx, 1, 100)
		assert.NoError(t, err)
		assert.Equal(t, []int64{3}, ids)
	})
}

func TestMemoryStorageReactions(t *testing.T) {
	store := New()
	ctx := context.Background()

	author := &models.User{Username: "author", CreatedAt: time.Now()}
	assert.NoError(t, store.CreateUser(ctx, author, &models.Profile{}))
	post := &models.Post{AuthorID: author.ID, Content: "пост", Visibility: models.VisibilityPublic, CreatedAt: time.Now()}
	assert.NoError(t, store.CreatePost(ctx, post))

	t.Run("Лайк увеличивает счетчик один раз", func(t *testing.T) {
		_, created, err := store.UpsertReaction(ctx, post.ID, 42, models.ReactionLike)
		assert.NoError(t, err)
		assert.True(t, created)

		_, created, err = store.UpsertReaction(ctx, post.ID, 42, models.ReactionLike)
		assert.NoError(t, err)
		assert.False(t, created)

		got, err := store.GetPost(ctx, post.ID)
		assert.NoError(t, err)
		assert.Equal(t, 1, got.LikeCount, "Повторный лайк не меняет счетчик")
	})

	t.Run("Реакция на несуществующий пост", func(t *testing.T) {
		_, _, err := store.UpsertReaction(ctx, 99999, 42, models.ReactionLike)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestMemoryStorageNotifications(t *testing.T) {
	store := New()
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		n := &models.Notification{RecipientID: 7, ActorID: 8, Type: models.NotificationFollow, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		assert.NoError(t, store.CreateNotification(ctx, n))
	}
	other := &models.Notification{RecipientID: 9, ActorID: 8, Type: models.NotificationFollow, CreatedAt: base}
	assert.NoError(t, store.CreateNotification(ctx, other))

	notifications, err := store.ScanNotifications(ctx, 7, nil, false, 10)
	assert.NoError(t, err)
	assert.Len(t, notifications, 3, "Только уведомления получателя")
	assert.True(t, notifications[0].CreatedAt.After(notifications[2].CreatedAt))
}

func TestMemoryStorageClose(t *testing.T) {
	store := New()
	ctx := context.Background()

	user := &models.User{Username: "alice", CreatedAt: time.Now()}
	assert.NoError(t, store.CreateUser(ctx, user, &models.Profile{}))

	assert.NoError(t, store.Close())

	_, err := store.GetUser(ctx, user.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound, "После Close хранилище пустое")
}
