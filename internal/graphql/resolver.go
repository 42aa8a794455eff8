package graphql

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ButyrinIA/socialgraph/internal/models"
	"github.com/ButyrinIA/socialgraph/internal/relay"
	"github.com/ButyrinIA/socialgraph/internal/social"
	"github.com/ButyrinIA/socialgraph/internal/storage"
	"github.com/graph-gophers/dataloader/v7"
)

//go:generate go run github.com/99designs/gqlgen generate

// contextKey - собственный тип ключей контекста, чтобы не пересекаться
// с чужими строковыми ключами
type contextKey string

const (
	// UserIDKey - идентификатор аутентифицированного пользователя (int64)
	UserIDKey contextKey = "userID"
	// ProfileLoaderKey - dataloader профилей на один запрос
	ProfileLoaderKey contextKey = "profileLoader"
)

// Resolver - основная структура, реализующая ResolverRoot
type Resolver struct {
	Storage             storage.Storage
	Follows             *social.FollowGraph
	Feed                *social.Feed
	ProfileLoader       *dataloader.Loader[int64, *models.Profile]
	SubscriptionHandler *subscriptionHandler
}

// NewResolver создает новый Resolver
func NewResolver(store storage.Storage, profileLoader *dataloader.Loader[int64, *models.Profile]) *Resolver {
	return &Resolver{
		Storage:             store,
		Follows:             social.NewFollowGraph(store),
		Feed:                social.NewFeed(store),
		ProfileLoader:       profileLoader,
		SubscriptionHandler: newSubscriptionHandler(),
	}
}

func (r *Resolver) Query() QueryResolver               { return &queryResolver{r} }
func (r *Resolver) Mutation() MutationResolver         { return &mutationResolver{r} }
func (r *Resolver) Subscription() SubscriptionResolver { return r.SubscriptionHandler }
func (r *Resolver) User() UserResolver                 { return &userResolver{r} }
func (r *Resolver) Post() PostResolver                 { return &postResolver{r} }
func (r *Resolver) Comment() CommentResolver           { return &commentResolver{r} }
func (r *Resolver) Follow() FollowResolver             { return &followResolver{r} }
func (r *Resolver) Notification() NotificationResolver { return &notificationResolver{r} }

type queryResolver struct{ *Resolver }
type mutationResolver struct{ *Resolver }
type userResolver struct{ *Resolver }
type postResolver struct{ *Resolver }
type commentResolver struct{ *Resolver }
type followResolver struct{ *Resolver }
type notificationResolver struct{ *Resolver }

// viewerID достает идентификатор аутентифицированного пользователя,
// положенный в контекст middleware сервера
func viewerID(ctx context.Context) (int64, error) {
	id, ok := ctx.Value(UserIDKey).(int64)
	if !ok {
		return 0, errors.New("unauthenticated")
	}
	return id, nil
}

// decodeAs декодирует глобальный идентификатор и проверяет вид
func decodeAs(id string, kind relay.Kind) (int64, error) {
	k, key, err := relay.DecodeID(id)
	if err != nil {
		return 0, err
	}
	if k != kind {
		return 0, fmt.Errorf("%w: expected %s identifier, got %s", relay.ErrInvalidIdentifier, kind, k)
	}
	return key, nil
}

func pageArgs(first *int, after *string, last *int, before *string) relay.Args {
	return relay.Args{First: first, After: after, Last: last, Before: before}
}

// Node реализует запрос node: декодированный вид выбирает ветку закрытого
// объединения; ненайденная сущность - null, а не ошибка
func (r *queryResolver) Node(ctx context.Context, id string) (Node, error) {
	kind, key, err := relay.DecodeID(id)
	if err != nil {
		return nil, err
	}
	switch kind {
	case relay.KindUser:
		user, err := r.Storage.GetUser(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return toUser(user), nil
	case relay.KindProfile:
		profile, err := r.Storage.GetProfile(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return toProfile(profile), nil
	case relay.KindPost:
		post, err := r.Storage.GetPost(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return toPost(post), nil
	case relay.KindComment:
		comment, err := r.Storage.GetComment(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return toComment(comment), nil
	case relay.KindFollow:
		follow, err := r.Storage.GetFollow(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return toFollow(follow), nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", relay.ErrInvalidIdentifier, kind)
}

// User реализует запрос user
func (r *queryResolver) User(ctx context.Context, username string) (*User, error) {
	user, err := r.Storage.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return toUser(user), nil
}

// Post реализует запрос post
func (r *queryResolver) Post(ctx context.Context, id string) (*Post, error) {
	key, err := decodeAs(id, relay.KindPost)
	if err != nil {
		return nil, err
	}
	post, err := r.Storage.GetPost(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return toPost(post), nil
}

// AllPosts реализует запрос allPosts
func (r *queryResolver) AllPosts(ctx context.Context, authorID *string, visibility *models.Visibility, first *int, after *string, last *int, before *string) (*PostConnection, error) {
	var filter storage.PostFilter
	if authorID != nil {
		key, err := decodeAs(*authorID, relay.KindUser)
		if err != nil {
			return nil, err
		}
		filter.AuthorID = &key
	}
	if visibility != nil {
		filter.Visibilities = []models.Visibility{*visibility}
	}
	conn, err := relay.Paginate(ctx, social.PostsStream(r.Storage, filter), pageArgs(first, after, last, before))
	if err != nil {
		return nil, err
	}
	return toPostConnection(conn), nil
}

// Timeline реализует запрос timeline: лента наблюдателя
func (r *queryResolver) Timeline(ctx context.Context, first *int, after *string, last *int, before *string) (*PostConnection, error) {
	viewer, err := viewerID(ctx)
	if err != nil {
		return nil, err
	}
	conn, err := relay.Paginate(ctx, r.Feed.Stream(viewer), pageArgs(first, after, last, before))
	if err != nil {
		return nil, err
	}
	return toPostConnection(conn), nil
}

// Notifications реализует запрос notifications
func (r *queryResolver) Notifications(ctx context.Context, first *int, after *string, last *int, before *string) (*NotificationConnection, error) {
	viewer, err := viewerID(ctx)
	if err != nil {
		return nil, err
	}
	conn, err := relay.Paginate(ctx, social.NotificationsStream(r.Storage, viewer), pageArgs(first, after, last, before))
	if err != nil {
		return nil, err
	}
	return toNotificationConnection(conn), nil
}

// CreateUser реализует мутацию createUser
func (r *mutationResolver) CreateUser(ctx context.Context, username string, displayName *string) (*User, error) {
	if username == "" || len(username) > 50 {
		return nil, errors.New("username must be between 1 and 50 characters")
	}
	now := time.Now()
	user := &models.User{Username: username, CreatedAt: now}
	profile := &models.Profile{DisplayName: displayName, CreatedAt: now}
	if err := r.Storage.CreateUser(ctx, user, profile); err != nil {
		return nil, err
	}
	return toUser(user), nil
}

// CreatePost реализует мутацию createPost
func (r *mutationResolver) CreatePost(ctx context.Context, content string, visibility *models.Visibility) (*Post, error) {
	if len(content) > 5000 {
		return nil, errors.New("content exceeds 5000 characters")
	}
	viewer, err := viewerID(ctx)
	if err != nil {
		return nil, err
	}
	vis := models.VisibilityPublic
	if visibility != nil {
		if !models.ValidVisibility(*visibility) {
			return nil, fmt.Errorf("unknown visibility %q", *visibility)
		}
		vis = *visibility
	}
	post := &models.Post{
		AuthorID:   viewer,
		Content:    content,
		Visibility: vis,
		CreatedAt:  time.Now(),
	}
	if err := r.Storage.CreatePost(ctx, post); err != nil {
		return nil, err
	}
	return toPost(post), nil
}

// DeletePost реализует мутацию deletePost: мягкое удаление автором
func (r *mutationResolver) DeletePost(ctx context.Context, id string) (bool, error) {
	viewer, err := viewerID(ctx)
	if err != nil {
		return false, err
	}
	key, err := decodeAs(id, relay.KindPost)
	if err != nil {
		return false, err
	}
	post, err := r.Storage.GetPost(ctx, key)
	if err != nil {
		return false, err
	}
	if post.AuthorID != viewer {
		return false, errors.New("only the author can delete a post")
	}
	if err := r.Storage.DeletePost(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

// CreateComment реализует мутацию createComment
func (r *mutationResolver) CreateComment(ctx context.Context, postID string, content string) (*Comment, error) {
	if len(content) > 2000 {
		return nil, errors.New("comment content exceeds 2000 characters")
	}
	viewer, err := viewerID(ctx)
	if err != nil {
		return nil, err
	}
	key, err := decodeAs(postID, relay.KindPost)
	if err != nil {
		return nil, err
	}
	post, err := r.Storage.GetPost(ctx, key)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID:    key,
		AuthorID:  viewer,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := r.Storage.CreateComment(ctx, comment); err != nil {
		return nil, err
	}

	if post.AuthorID != viewer {
		r.notify(ctx, &models.Notification{
			RecipientID: post.AuthorID,
			ActorID:     viewer,
			Type:        models.NotificationComment,
			PostID:      &key,
			CreatedAt:   comment.CreatedAt,
		})
	}

	result := toComment(comment)
	r.SubscriptionHandler.publish(key, result)
	return result, nil
}

// Follow реализует мутацию follow
func (r *mutationResolver) Follow(ctx context.Context, userID string) (*Follow, error) {
	viewer, err := viewerID(ctx)
	if err != nil {
		return nil, err
	}
	key, err := decodeAs(userID, relay.KindUser)
	if err != nil {
		return nil, err
	}
	follow, created, err := r.Follows.Follow(ctx, viewer, key)
	if err != nil {
		return nil, err
	}
	if created {
		r.notify(ctx, &models.Notification{
			RecipientID: key,
			ActorID:     viewer,
			Type:        models.NotificationFollow,
			CreatedAt:   follow.CreatedAt,
		})
	}
	return toFollow(follow), nil
}

// Unfollow реализует мутацию unfollow
func (r *mutationResolver) Unfollow(ctx context.Context, userID string) (bool, error) {
	viewer, err := viewerID(ctx)
	if err != nil {
		return false, err
	}
	key, err := decodeAs(userID, relay.KindUser)
	if err != nil {
		return false, err
	}
	if err := r.Follows.Unfollow(ctx, viewer, key); err != nil {
		return false, err
	}
	return true, nil
}

// ReactToPost реализует мутацию reactToPost: идемпотентный лайк
func (r *mutationResolver) ReactToPost(ctx context.Context, postID string) (*Post, error) {
	viewer, err := viewerID(ctx)
	if err != nil {
		return nil, err
	}
	key, err := decodeAs(postID, relay.KindPost)
	if err != nil {
		return nil, err
	}
	reaction, created, err := r.Storage.UpsertReaction(ctx, key, viewer, models.ReactionLike)
	if err != nil {
		return nil, err
	}
	post, err := r.Storage.GetPost(ctx, key)
	if err != nil {
		return nil, err
	}
	if created && post.AuthorID != viewer {
		r.notify(ctx, &models.Notification{
			RecipientID: post.AuthorID,
			ActorID:     viewer,
			Type:        models.NotificationLike,
			PostID:      &key,
			CreatedAt:   reaction.CreatedAt,
		})
	}
	return toPost(post), nil
}

// notify записывает уведомление; сбой записи не роняет мутацию
func (r *mutationResolver) notify(ctx context.Context, n *models.Notification) {
	_ = r.Storage.CreateNotification(ctx, n)
}

// Profile реализует поле profile в User через dataloader
func (r *userResolver) Profile(ctx context.Context, obj *User) (*Profile, error) {
	loader, ok := ctx.Value(ProfileLoaderKey).(*dataloader.Loader[int64, *models.Profile])
	if !ok {
		loader = r.ProfileLoader
	}
	if loader == nil {
		return nil, errors.New("profileLoader not found in context")
	}
	profile, err := loader.Load(ctx, obj.LocalID)()
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil {
		return nil, nil
	}
	return toProfile(profile), nil
}

// Posts реализует поле posts в User
func (r *userResolver) Posts(ctx context.Context, obj *User, first *int, after *string, last *int, before *string) (*PostConnection, error) {
	filter := storage.PostFilter{AuthorID: &obj.LocalID}
	conn, err := relay.Paginate(ctx, social.PostsStream(r.Storage, filter), pageArgs(first, after, last, before))
	if err != nil {
		return nil, err
	}
	return toPostConnection(conn), nil
}

// Followers реализует поле followers в User
func (r *userResolver) Followers(ctx context.Context, obj *User, first *int, after *string, last *int, before *string) (*FollowConnection, error) {
	conn, err := relay.Paginate(ctx, r.Follows.FollowersStream(obj.LocalID), pageArgs(first, after, last, before))
	if err != nil {
		return nil, err
	}
	return toFollowConnection(conn), nil
}

// Following реализует поле following в User
func (r *userResolver) Following(ctx context.Context, obj *User, first *int, after *string, last *int, before *string) (*FollowConnection, error) {
	conn, err := relay.Paginate(ctx, r.Follows.FollowingStream(obj.LocalID), pageArgs(first, after, last, before))
	if err != nil {
		return nil, err
	}
	return toFollowConnection(conn), nil
}

// Author реализует поле author в Post
func (r *postResolver) Author(ctx context.Context, obj *Post) (*User, error) {
	user, err := r.Storage.GetUser(ctx, obj.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post author: %w", err)
	}
	return toUser(user), nil
}

// Comments реализует поле comments в Post
func (r *postResolver) Comments(ctx context.Context, obj *Post, first *int, after *string, last *int, before *string) (*CommentConnection, error) {
	conn, err := relay.Paginate(ctx, social.CommentsStream(r.Storage, obj.LocalID), pageArgs(first, after, last, before))
	if err != nil {
		return nil, err
	}
	return toCommentConnection(conn), nil
}

// Author реализует поле author в Comment
func (r *commentResolver) Author(ctx context.Context, obj *Comment) (*User, error) {
	user, err := r.Storage.GetUser(ctx, obj.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get comment author: %w", err)
	}
	return toUser(user), nil
}

// Follower реализует поле follower в Follow
func (r *followResolver) Follower(ctx context.Context, obj *Follow) (*User, error) {
	user, err := r.Storage.GetUser(ctx, obj.FollowerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get follower: %w", err)
	}
	return toUser(user), nil
}

// Following реализует поле following в Follow
func (r *followResolver) Following(ctx context.Context, obj *Follow) (*User, error) {
	user, err := r.Storage.GetUser(ctx, obj.FollowingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get following: %w", err)
	}
	return toUser(user), nil
}

// Actor реализует поле actor в Notification
func (r *notificationResolver) Actor(ctx context.Context, obj *Notification) (*User, error) {
	user, err := r.Storage.GetUser(ctx, obj.ActorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification actor: %w", err)
	}
	return toUser(user), nil
}

// subscriptionHandler реализует SubscriptionResolver
type subscriptionHandler struct {
	mu              sync.RWMutex
	commentChannels map[int64][]chan *Comment
}

func newSubscriptionHandler() *subscriptionHandler {
	return &subscriptionHandler{commentChannels: make(map[int64][]chan *Comment)}
}

// CommentAdded реализует подписку commentAdded
func (s *subscriptionHandler) CommentAdded(ctx context.Context, postID string) (<-chan *Comment, error) {
	key, err := decodeAs(postID, relay.KindPost)
	if err != nil {
		return nil, err
	}

	ch := make(chan *Comment, 1)
	s.mu.Lock()
	s.commentChannels[key] = append(s.commentChannels[key], ch)
	s.mu.Unlock()

	// Очистка канала после завершения подписки
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		subscribers := s.commentChannels[key]
		for i, sub := range subscribers {
			if sub == ch {
				s.commentChannels[key] = append(subscribers[:i], subscribers[i+1:]...)
				break
			}
		}
		if len(s.commentChannels[key]) == 0 {
			delete(s.commentChannels, key)
		}
		s.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// publish рассылает комментарий подписчикам поста без блокировки
func (s *subscriptionHandler) publish(postID int64, comment *Comment) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.commentChannels[postID] {
		select {
		case ch <- comment:
		default:
		}
	}
}
