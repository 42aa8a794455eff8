package graphql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ButyrinIA/socialgraph/internal/models"
	"github.com/ButyrinIA/socialgraph/internal/relay"
	"github.com/ButyrinIA/socialgraph/internal/storage"
	"github.com/ButyrinIA/socialgraph/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// мок для интерфейса storage.Storage
type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) CreateUser(ctx context.Context, user *models.User, profile *models.Profile) error {
	args := m.Called(ctx, user, profile)
	return args.Error(0)
}

func (m *mockStorage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockStorage) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *mockStorage) GetProfilesByUserIDs(ctx context.Context, userIDs []int64) (map[int64]*models.Profile, error) {
	args := m.Called(ctx, userIDs)
	return args.Get(0).(map[int64]*models.Profile), args.Error(1)
}

func (m *mockStorage) CreatePost(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *mockStorage) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *mockStorage) DeletePost(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockStorage) ScanPosts(ctx context.Context, filter storage.PostFilter, pos *relay.Position, backward bool, limit int) ([]models.Post, error) {
	args := m.Called(ctx, filter, pos, backward, limit)
	return args.Get(0).([]models.Post), args.Error(1)
}

func (m *mockStorage) CreateComment(ctx context.Context, comment *models.Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *mockStorage) GetComment(ctx context.Context, id int64) (*models.Comment, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *mockStorage) ScanComments(ctx context.Context, postID int64, pos *relay.Position, backward bool, limit int) ([]models.Comment, error) {
	args := m.Called(ctx, postID, pos, backward, limit)
	return args.Get(0).([]models.Comment), args.Error(1)
}

func (m *mockStorage) UpsertFollow(ctx context.Context, followerID, followingID int64) (*models.Follow, bool, error) {
	args := m.Called(ctx, followerID, followingID)
	return args.Get(0).(*models.Follow), args.Bool(1), args.Error(2)
}

func (m *mockStorage) DeleteFollow(ctx context.Context, followerID, followingID int64) error {
	args := m.Called(ctx, followerID, followingID)
	return args.Error(0)
}

func (m *mockStorage) GetFollow(ctx context.Context, id int64) (*models.Follow, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*models.Follow), args.Error(1)
}

func (m *mockStorage) ScanFollows(ctx context.Context, userID int64, dir storage.FollowDirection, pos *relay.Position, backward bool, limit int) ([]models.Follow, error) {
	args := m.Called(ctx, userID, dir, pos, backward, limit)
	return args.Get(0).([]models.Follow), args.Error(1)
}

func (m *mockStorage) ListFollowingIDs(ctx context.Context, userID int64, limit int) ([]int64, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]int64), args.Error(1)
}

func (m *mockStorage) UpsertReaction(ctx context.Context, postID, userID int64, reactionType string) (*models.Reaction, bool, error) {
	args := m.Called(ctx, postID, userID, reactionType)
	return args.Get(0).(*models.Reaction), args.Bool(1), args.Error(2)
}

func (m *mockStorage) CreateNotification(ctx context.Context, notification *models.Notification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}

func (m *mockStorage) ScanNotifications(ctx context.Context, recipientID int64, pos *relay.Position, backward bool, limit int) ([]models.Notification, error) {
	args := m.Called(ctx, recipientID, pos, backward, limit)
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *mockStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}

func authCtx(userID int64) context.Context {
	return context.WithValue(context.Background(), UserIDKey, userID)
}

func seedUser(t *testing.T, store storage.Storage, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, CreatedAt: time.Now()}
	assert.NoError(t, store.CreateUser(context.Background(), user, &models.Profile{CreatedAt: time.Now()}))
	return user
}

func TestNode(t *testing.T) {
	store := memory.New()
	resolver := NewResolver(store, nil)
	query := resolver.Query()
	ctx := context.Background()

	user := seedUser(t, store, "alice")

	t.Run("Известный пользователь", func(t *testing.T) {
		node, err := query.Node(ctx, relay.EncodeID(relay.KindUser, user.ID))
		assert.NoError(t, err)
		u, ok := node.(*User)
		assert.True(t, ok, "Ожидался тип User")
		assert.Equal(t, "alice", u.Username)
	})

	t.Run("Несуществующая сущность - null без ошибки", func(t *testing.T) {
		node, err := query.Node(ctx, relay.EncodeID(relay.KindPost, 99999))
		assert.NoError(t, err)
		assert.Nil(t, node)
	})

	t.Run("Мусорный идентификатор", func(t *testing.T) {
		node, err := query.Node(ctx, "не-base64!!!")
		assert.ErrorIs(t, err, relay.ErrInvalidIdentifier)
		assert.Nil(t, node)
	})

	t.Run("Курсор не проходит как идентификатор", func(t *testing.T) {
		cursor := relay.EncodeCursor("posts", relay.Position{SortKey: time.Now(), ID: 1})
		node, err := query.Node(ctx, cursor)
		assert.Error(t, err)
		assert.Nil(t, node)
	})
}

func TestUserQuery(t *testing.T) {
	store := memory.New()
	resolver := NewResolver(store, nil)
	query := resolver.Query()
	ctx := context.Background()

	seedUser(t, store, "alice")

	result, err := query.User(ctx, "alice")
	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, "alice", result.Username)

	missing, err := query.User(ctx, "ghost")
	assert.NoError(t, err, "Неизвестное имя - null, а не ошибка")
	assert.Nil(t, missing)
}

func TestPostQuery_StorageError(t *testing.T) {
	store := &mockStorage{}
	store.On("GetPost", mock.Anything, int64(1)).Return((*models.Post)(nil), errors.New("ошибка хранилища"))

	resolver := NewResolver(store, nil)
	query := resolver.Query()

	result, err := query.Post(context.Background(), relay.EncodeID(relay.KindPost, 1))
	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, "failed to get post: ошибка хранилища", err.Error())
	store.AssertExpectations(t)
}

func TestCreateUser_Validation(t *testing.T) {
	resolver := NewResolver(memory.New(), nil)
	mutation := resolver.Mutation()

	result, err := mutation.CreateUser(context.Background(), "", nil)
	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, "username must be between 1 and 50 characters", err.Error())

	long := make([]byte, 51)
	for i := range long {
		long[i] = 'a'
	}
	result, err = mutation.CreateUser(context.Background(), string(long), nil)
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	store := memory.New()
	resolver := NewResolver(store, nil)
	mutation := resolver.Mutation()

	_, err := mutation.CreateUser(context.Background(), "alice", nil)
	assert.NoError(t, err)

	result, err := mutation.CreateUser(context.Background(), "alice", nil)
	assert.ErrorIs(t, err, storage.ErrUsernameTaken)
	assert.Nil(t, result)
}

func TestCreatePost(t *testing.T) {
	store := memory.New()
	resolver := NewResolver(store, nil)
	mutation := resolver.Mutation()

	author := seedUser(t, store, "author")

	result, err := mutation.CreatePost(authCtx(author.ID), "Тестовый пост", nil)
	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, "Тестовый пост", result.Content)
	assert.Equal(t, models.VisibilityPublic, result.Visibility, "Видимость по умолчанию - публичная")

	_, err = mutation.CreatePost(context.Background(), "без токена", nil)
	assert.Error(t, err, "Без userID в контексте мутация запрещена")
	assert.Equal(t, "unauthenticated", err.Error())

	long := make([]byte, 5001)
	_, err = mutation.CreatePost(authCtx(author.ID), string(long), nil)
	assert.Error(t, err)
	assert.Equal(t, "content exceeds 5000 characters", err.Error())
}

func TestDeletePost_AuthorOnly(t *testing.T) {
	store := memory.New()
	resolver := NewResolver(store, nil)
	mutation := resolver.Mutation()

	author := seedUser(t, store, "author")
	stranger := seedUser(t, store, "stranger")

	post, err := mutation.CreatePost(authCtx(author.ID), "пост", nil)
	assert.NoError(t, err)

	ok, err := mutation.DeletePost(authCtx(stranger.ID), post.ID)
	assert.Error(t, err, "Чужой пост удалить нельзя")
	assert.False(t, ok)
	assert.Equal(t, "only the author can delete a post", err.Error())

	ok, err = mutation.DeletePost(authCtx(author.ID), post.ID)
	assert.NoError(t, err)
	assert.True(t, ok)

	query := resolver.Query()
	deleted, err := query.Post(context.Background(), post.ID)
	assert.NoError(t, err)
	assert.Nil(t, deleted, "Удаленный пост - null")
}

func TestCreateComment(t *testing.T) {
	store := memory.New()
	resolver := NewResolver(store, nil)
	mutation := resolver.Mutation()

	author := seedUser(t, store, "author")
	commenter := seedUser(t, store, "commenter")

	post, err := mutation.CreatePost(authCtx(author.ID), "пост", nil)
	assert.NoError(t, err)

	comment, err := mutation.CreateComment(authCtx(commenter.ID), post.ID, "Тестовый комментарий")
	assert.NoError(t, err)
	assert.NotNil(t, comment)
	assert.Equal(t, "Тестовый комментарий", comment.Content)

	// Автор поста получает уведомление о комментарии
	notifications, err := store.ScanNotifications(context.Background(), author.ID, nil, false, 10)
	assert.NoError(t, err)
	assert.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationComment, notifications[0].Type)

	// Комментарий к собственному посту уведомления не создает
	_, err = mutation.CreateComment(authCtx(author.ID), post.ID, "сам себе")
	assert.NoError(t, err)
	notifications, err = store.ScanNotifications(context.Background(), author.ID, nil, false, 10)
	assert.NoError(t, err)
	assert.Len(t, notifications, 1)

	long := make([]byte, 2001)
	_, err = mutation.CreateComment(authCtx(commenter.ID), post.ID, string(long))
	assert.Error(t, err)
	assert.Equal(t, "comment content exceeds 2000 characters", err.Error())
}

func TestFollowMutation(t *testing.T) {
	store := memory.New()
	resolver := NewResolver(store, nil)
	mutation := resolver.Mutation()
	ctx := context.Background()

	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	bobID := relay.EncodeID(relay.KindUser, bob.ID)

	follow, err := mutation.Follow(authCtx(alice.ID), bobID)
	assert.NoError(t, err)
	assert.NotNil(t, follow)

	// Боб получает уведомление о подписке
	notifications, err := store.ScanNotifications(ctx, bob.ID, nil, false, 10)
	assert.NoError(t, err)
	assert.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationFollow, notifications[0].Type)

	// Повторная подписка не создает второе уведомление
	_, err = mutation.Follow(authCtx(alice.ID), bobID)
	assert.NoError(t, err)
	notifications, err = store.ScanNotifications(ctx, bob.ID, nil, false, 10)
	assert.NoError(t, err)
	assert.Len(t, notifications, 1)

	// Подписка на себя запрещена
	_, err = mutation.Follow(authCtx(alice.ID), relay.EncodeID(relay.KindUser, alice.ID))
	assert.ErrorIs(t, err, storage.ErrSelfFollow)

	ok, err := mutation.Unfollow(authCtx(alice.ID), bobID)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestReactToPost(t *testing.T) {
	store := memory.New()
	resolver := NewResolver(store, nil)
	mutation := resolver.Mutation()
	ctx := context.Background()

	author := seedUser(t, store, "author")
	fan := seedUser(t, store, "fan")

	post, err := mutation.CreatePost(authCtx(author.ID), "пост", nil)
	assert.NoError(t, err)

	liked, err := mutation.ReactToPost(authCtx(fan.ID), post.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, liked.LikeCount)

	// Идемпотентность: повторный лайк не меняет счетчик и не шлет уведомление
	liked, err = mutation.ReactToPost(authCtx(fan.ID), post.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, liked.LikeCount)

	notifications, err := store.ScanNotifications(ctx, author.ID, nil, false, 10)
	assert.NoError(t, err)
	assert.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationLike, notifications[0].Type)
}

func TestTimelineQuery(t *testing.T) {
	store := memory.New()
	resolver := NewResolver(store, nil)
	mutation := resolver.Mutation()
	query := resolver.Query()

	viewer := seedUser(t, store, "viewer")
	author := seedUser(t, store, "author")

	_, err := mutation.Follow(authCtx(viewer.ID), relay.EncodeID(relay.KindUser, author.ID))
	assert.NoError(t, err)
	_, err = mutation.CreatePost(authCtx(author.ID), "в ленту", nil)
	assert.NoError(t, err)

	first := 10
	conn, err := query.Timeline(authCtx(viewer.ID), &first, nil, nil, nil)
	assert.NoError(t, err)
	assert.Len(t, conn.Edges, 1)
	assert.Equal(t, "в ленту", conn.Edges[0].Node.Content)

	_, err = query.Timeline(context.Background(), &first, nil, nil, nil)
	assert.Error(t, err, "Лента требует аутентификации")
}

func TestViewerID_TypedKeyOnly(t *testing.T) {
	resolver := NewResolver(memory.New(), nil)
	query := resolver.Query()

	// Одноименный ключ чужого типа не должен проходить за аутентификацию
	type foreignKey string
	ctx := context.WithValue(context.Background(), foreignKey("userID"), int64(7))

	first := 1
	_, err := query.Timeline(ctx, &first, nil, nil, nil)
	assert.Error(t, err)
	assert.Equal(t, "unauthenticated", err.Error())
}

func TestTimeline_InvalidArgs(t *testing.T) {
	store := memory.New()
	resolver := NewResolver(store, nil)
	query := resolver.Query()

	viewer := seedUser(t, store, "viewer")

	_, err := query.Timeline(authCtx(viewer.ID), nil, nil, nil, nil)
	assert.ErrorIs(t, err, relay.ErrInvalidArguments, "Без first и last пагинация запрещена")
}

func TestAllPostsQuery(t *testing.T) {
	store := memory.New()
	resolver := NewResolver(store, nil)
	mutation := resolver.Mutation()
	query := resolver.Query()

	author := seedUser(t, store, "author")
	public := models.VisibilityPublic
	private := models.VisibilityPrivate
	_, err := mutation.CreatePost(authCtx(author.ID), "открытый", &public)
	assert.NoError(t, err)
	_, err = mutation.CreatePost(authCtx(author.ID), "закрытый", &private)
	assert.NoError(t, err)

	first := 10
	authorID := relay.EncodeID(relay.KindUser, author.ID)
	conn, err := query.AllPosts(context.Background(), &authorID, &public, &first, nil, nil, nil)
	assert.NoError(t, err)
	assert.Len(t, conn.Edges, 1)
	assert.Equal(t, "открытый", conn.Edges[0].Node.Content)
}

func TestUserProfileField(t *testing.T) {
	store := memory.New()
	loader := NewProfileLoader(store)
	resolver := NewResolver(store, loader)
	userResolver := resolver.User()

	user := seedUser(t, store, "alice")

	profile, err := userResolver.Profile(context.Background(), toUser(user))
	assert.NoError(t, err)
	assert.NotNil(t, profile)
	assert.NotEmpty(t, profile.ID, "Профиль несет глобальный идентификатор")
}

func TestUserProfileField_NoLoader(t *testing.T) {
	resolver := NewResolver(memory.New(), nil)
	userResolver := resolver.User()

	user := &User{LocalID: 1}
	result, err := userResolver.Profile(context.Background(), user)
	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, "profileLoader not found in context", err.Error())
}

func TestCommentAdded(t *testing.T) {
	store := memory.New()
	resolver := NewResolver(store, nil)
	mutation := resolver.Mutation()
	subscription := resolver.Subscription()

	author := seedUser(t, store, "author")
	post, err := mutation.CreatePost(authCtx(author.ID), "пост", nil)
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := subscription.CommentAdded(ctx, post.ID)
	assert.NoError(t, err)
	assert.NotNil(t, ch)

	_, err = mutation.CreateComment(authCtx(author.ID), post.ID, "Тестовый комментарий")
	assert.NoError(t, err)

	select {
	case received := <-ch:
		assert.Equal(t, "Тестовый комментарий", received.Content)
	case <-time.After(time.Second):
		t.Fatal("Таймаут ожидания подписки")
	}

	cancel()
	time.Sleep(100 * time.Millisecond)
	_, open := <-ch
	assert.False(t, open, "Канал должен быть закрыт")
}

func TestCommentAdded_InvalidID(t *testing.T) {
	resolver := NewResolver(memory.New(), nil)
	subscription := resolver.Subscription()

	ch, err := subscription.CommentAdded(context.Background(), "мусор")
	assert.Error(t, err)
	assert.Nil(t, ch)
}
