package storage

import (
	"context"
	"errors"

	"github.com/ButyrinIA/socialgraph/internal/models"
	"github.com/ButyrinIA/socialgraph/internal/relay"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrSelfFollow    = errors.New("self follow is not allowed")
	ErrUsernameTaken = errors.New("username is already taken")
)

// FollowDirection выбирает сторону ребер подписки при сканировании
type FollowDirection string

const (
	// DirectionFollowing - ребра, где пользователь является подписчиком
	DirectionFollowing FollowDirection = "following"
	// DirectionFollowers - ребра, где на пользователя подписаны
	DirectionFollowers FollowDirection = "followers"
)

// PostFilter сужает сканирование постов. Nil-поля не фильтруют.
// Мягко удаленные посты исключаются всегда.
type PostFilter struct {
	AuthorID     *int64
	Visibilities []models.Visibility
}

// Storage - адаптер хранилища социального графа. Все сканы упорядочены по
// (created_at, id) по убыванию и позиционируются позицией из выданного
// курсора: backward=false выдает элементы строго после pos в порядке потока,
// backward=true - строго до pos в обратном порядке. Create-методы назначают
// ID и записывают его в переданную структуру. Соединение с хранилищем -
// разделяемый ресурс, передаваемый извне и закрываемый через Close.
type Storage interface {
	CreateUser(ctx context.Context, user *models.User, profile *models.Profile) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	GetProfile(ctx context.Context, id int64) (*models.Profile, error)
	GetProfilesByUserIDs(ctx context.Context, userIDs []int64) (map[int64]*models.Profile, error)

	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	DeletePost(ctx context.Context, id int64) error
	ScanPosts(ctx context.Context, filter PostFilter, pos *relay.Position, backward bool, limit int) ([]models.Post, error)

	CreateComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, id int64) (*models.Comment, error)
	ScanComments(ctx context.Context, postID int64, pos *relay.Position, backward bool, limit int) ([]models.Comment, error)

	// UpsertFollow идемпотентен: при существующем ребре возвращает его и
	// created=false. Единственность пары (follower, following) обеспечивает
	// хранилище, а не блокировки процесса.
	UpsertFollow(ctx context.Context, followerID, followingID int64) (follow *models.Follow, created bool, err error)
	// DeleteFollow идемпотентен: отсутствие ребра не является ошибкой
	DeleteFollow(ctx context.Context, followerID, followingID int64) error
	GetFollow(ctx context.Context, id int64) (*models.Follow, error)
	ScanFollows(ctx context.Context, userID int64, dir FollowDirection, pos *relay.Position, backward bool, limit int) ([]models.Follow, error)
	ListFollowingIDs(ctx context.Context, userID int64, limit int) ([]int64, error)

	// UpsertReaction идемпотентен по паре (post, user, type); при первом
	// создании инкрементирует счетчик лайков поста
	UpsertReaction(ctx context.Context, postID, userID int64, reactionType string) (reaction *models.Reaction, created bool, err error)

	CreateNotification(ctx context.Context, notification *models.Notification) error
	ScanNotifications(ctx context.Context, recipientID int64, pos *relay.Position, backward bool, limit int) ([]models.Notification, error)

	Close() error
}
