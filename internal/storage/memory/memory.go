package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ButyrinIA/socialgraph/internal/models"
	"github.com/ButyrinIA/socialgraph/internal/relay"
	"github.com/ButyrinIA/socialgraph/internal/storage"
)

type pairKey struct {
	a, b int64
}

type MemoryStorage struct {
	mu            sync.RWMutex
	nextID        int64
	users         map[int64]*models.User
	usersByName   map[string]*models.User
	profiles      map[int64]*models.Profile
	profilesByUID map[int64]*models.Profile
	posts         map[int64]*models.Post
	comments      map[int64]*models.Comment
	follows       map[int64]*models.Follow
	followsByPair map[pairKey]*models.Follow
	reactions     map[int64]*models.Reaction
	notifications map[int64]*models.Notification
}

func New() *MemoryStorage {
	return &MemoryStorage{
		users:         make(map[int64]*models.User),
		usersByName:   make(map[string]*models.User),
		profiles:      make(map[int64]*models.Profile),
		profilesByUID: make(map[int64]*models.Profile),
		posts:         make(map[int64]*models.Post),
		comments:      make(map[int64]*models.Comment),
		follows:       make(map[int64]*models.Follow),
		followsByPair: make(map[pairKey]*models.Follow),
		reactions:     make(map[int64]*models.Reaction),
		notifications: make(map[int64]*models.Notification),
	}
}

// allocate выдает следующий локальный ключ; вызывается под mu
func (s *MemoryStorage) allocate() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStorage) CreateUser(ctx context.Context, user *models.User, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByName[user.Username]; exists {
		return fmt.Errorf("%w: %q", storage.ErrUsernameTaken, user.Username)
	}
	user.ID = s.allocate()
	u := *user
	s.users[u.ID] = &u
	s.usersByName[u.Username] = &u

	profile.ID = s.allocate()
	profile.UserID = u.ID
	p := *profile
	s.profiles[p.ID] = &p
	s.profilesByUID[p.UserID] = &p
	return nil
}

func (s *MemoryStorage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, fmt.Errorf("%w: user %d", storage.ErrNotFound, id)
	}
	u := *user
	return &u, nil
}

func (s *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByName[username]
	if !exists {
		return nil, fmt.Errorf("%w: user %q", storage.ErrNotFound, username)
	}
	u := *user
	return &u, nil
}

func (s *MemoryStorage) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, exists := s.profiles[id]
	if !exists {
		return nil, fmt.Errorf("%w: profile %d", storage.ErrNotFound, id)
	}
	p := *profile
	return &p, nil
}

func (s *MemoryStorage) GetProfilesByUserIDs(ctx context.Context, userIDs []int64) (map[int64]*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[int64]*models.Profile, len(userIDs))
	for _, uid := range userIDs {
		if profile, exists := s.profilesByUID[uid]; exists {
			p := *profile
			result[uid] = &p
		}
	}
	return result, nil
}

func (s *MemoryStorage) CreatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post.ID = s.allocate()
	p := *post
	s.posts[p.ID] = &p
	return nil
}

func (s *MemoryStorage) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, exists := s.posts[id]
	if !exists || post.IsDeleted {
		return nil, fmt.Errorf("%w: post %d", storage.ErrNotFound, id)
	}
	p := *post
	return &p, nil
}

func (s *MemoryStorage) DeletePost(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, exists := s.posts[id]
	if !exists || post.IsDeleted {
		return fmt.Errorf("%w: post %d", storage.ErrNotFound, id)
	}
	post.IsDeleted = true
	return nil
}

func (s *MemoryStorage) ScanPosts(ctx context.Context, filter storage.PostFilter, pos *relay.Position, backward bool, limit int) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var posts []models.Post
	for _, post := range s.posts {
		if post.IsDeleted {
			continue
		}
		if filter.AuthorID != nil && post.AuthorID != *filter.AuthorID {
			continue
		}
		if len(filter.Visibilities) > 0 && !containsVisibility(filter.Visibilities, post.Visibility) {
			continue
		}
		posts = append(posts, *post)
	}
	return window(posts, postPosition, pos, backward, limit), nil
}

func (s *MemoryStorage) CreateComment(ctx context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, exists := s.posts[comment.PostID]
	if !exists || post.IsDeleted {
		return fmt.Errorf("%w: post %d", storage.ErrNotFound, comment.PostID)
	}
	comment.ID = s.allocate()
	c := *comment
	s.comments[c.ID] = &c
	post.CommentCount++
	return nil
}

func (s *MemoryStorage) GetComment(ctx context.Context, id int64) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comment, exists := s.comments[id]
	if !exists {
		return nil, fmt.Errorf("%w: comment %d", storage.ErrNotFound, id)
	}
	c := *comment
	return &c, nil
}

func (s *MemoryStorage) ScanComments(ctx context.Context, postID int64, pos *relay.Position, backward bool, limit int) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var comments []models.Comment
	for _, comment := range s.comments {
		if comment.PostID == postID {
			comments = append(comments, *comment)
		}
	}
	return window(comments, commentPosition, pos, backward, limit), nil
}

func (s *MemoryStorage) UpsertFollow(ctx context.Context, followerID, followingID int64) (*models.Follow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{followerID, followingID}
	if existing, exists := s.followsByPair[key]; exists {
		f := *existing
		return &f, false, nil
	}
	follow := &models.Follow{
		ID:          s.allocate(),
		FollowerID:  followerID,
		FollowingID: followingID,
		CreatedAt:   time.Now(),
	}
	s.follows[follow.ID] = follow
	s.followsByPair[key] = follow
	f := *follow
	return &f, true, nil
}

func (s *MemoryStorage) DeleteFollow(ctx context.Context, followerID, followingID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{followerID, followingID}
	if follow, exists := s.followsByPair[key]; exists {
		delete(s.follows, follow.ID)
		delete(s.followsByPair, key)
	}
	return nil
}

func (s *MemoryStorage) GetFollow(ctx context.Context, id int64) (*models.Follow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	follow, exists := s.follows[id]
	if !exists {
		return nil, fmt.Errorf("%w: follow %d", storage.ErrNotFound, id)
	}
	f := *follow
	return &f, nil
}

func (s *MemoryStorage) ScanFollows(ctx context.Context, userID int64, dir storage.FollowDirection, pos *relay.Position, backward bool, limit int) ([]models.Follow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var follows []models.Follow
	for _, follow := range s.follows {
		if dir == storage.DirectionFollowing && follow.FollowerID == userID {
			follows = append(follows, *follow)
		} else if dir == storage.DirectionFollowers && follow.FollowingID == userID {
			follows = append(follows, *follow)
		}
	}
	return window(follows, followPosition, pos, backward, limit), nil
}

func (s *MemoryStorage) ListFollowingIDs(ctx context.Context, userID int64, limit int) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for _, follow := range s.follows {
		if follow.FollowerID == userID {
			ids = append(ids, follow.FollowingID)
			if len(ids) == limit {
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStorage) UpsertReaction(ctx context.Context, postID, userID int64, reactionType string) (*models.Reaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, exists := s.posts[postID]
	if !exists || post.IsDeleted {
		return nil, false, fmt.Errorf("%w: post %d", storage.ErrNotFound, postID)
	}
	for _, reaction := range s.reactions {
		if reaction.PostID == postID && reaction.UserID == userID && reaction.Type == reactionType {
			r := *reaction
			return &r, false, nil
		}
	}
	reaction := &models.Reaction{
		ID:        s.allocate(),
		PostID:    postID,
		UserID:    userID,
		Type:      reactionType,
		CreatedAt: time.Now(),
	}
	s.reactions[reaction.ID] = reaction
	post.LikeCount++
	r := *reaction
	return &r, true, nil
}

func (s *MemoryStorage) CreateNotification(ctx context.Context, notification *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notification.ID = s.allocate()
	n := *notification
	s.notifications[n.ID] = &n
	return nil
}

func (s *MemoryStorage) ScanNotifications(ctx context.Context, recipientID int64, pos *relay.Position, backward bool, limit int) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var notifications []models.Notification
	for _, notification := range s.notifications {
		if notification.RecipientID == recipientID {
			notifications = append(notifications, *notification)
		}
	}
	return window(notifications, notificationPosition, pos, backward, limit), nil
}

func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = make(map[int64]*models.User)
	s.usersByName = make(map[string]*models.User)
	s.profiles = make(map[int64]*models.Profile)
	s.profilesByUID = make(map[int64]*models.Profile)
	s.posts = make(map[int64]*models.Post)
	s.comments = make(map[int64]*models.Comment)
	s.follows = make(map[int64]*models.Follow)
	s.followsByPair = make(map[pairKey]*models.Follow)
	s.reactions = make(map[int64]*models.Reaction)
	s.notifications = make(map[int64]*models.Notification)
	return nil
}

func postPosition(p models.Post) relay.Position {
	return relay.Position{SortKey: p.CreatedAt, ID: p.ID}
}

func commentPosition(c models.Comment) relay.Position {
	return relay.Position{SortKey: c.CreatedAt, ID: c.ID}
}

func followPosition(f models.Follow) relay.Position {
	return relay.Position{SortKey: f.CreatedAt, ID: f.ID}
}

func notificationPosition(n models.Notification) relay.Position {
	return relay.Position{SortKey: n.CreatedAt, ID: n.ID}
}

func containsVisibility(set []models.Visibility, v models.Visibility) bool {
	for _, item := range set {
		if item == v {
			return true
		}
	}
	return false
}

// window сортирует элементы по (created_at, id) по убыванию и вырезает окно
// относительно позиции: вперед - строго старше pos в порядке потока, назад -
// строго новее pos в обратном порядке
func window[T any](items []T, posOf func(T) relay.Position, pos *relay.Position, backward bool, limit int) []T {
	sort.Slice(items, func(i, j int) bool {
		a, b := posOf(items[i]), posOf(items[j])
		if !a.SortKey.Equal(b.SortKey) {
			return a.SortKey.After(b.SortKey)
		}
		return a.ID > b.ID
	})

	var out []T
	for i := range items {
		idx := i
		if backward {
			// обратный обход - от хвоста потока к голове
			idx = len(items) - 1 - i
		}
		p := posOf(items[idx])
		if pos != nil {
			if backward && !streamBefore(p, *pos) {
				continue
			}
			if !backward && !streamBefore(*pos, p) {
				continue
			}
		}
		out = append(out, items[idx])
		if len(out) == limit {
			break
		}
	}
	return out
}

// streamBefore сообщает, стоит ли a раньше b в порядке потока
// (created_at по убыванию, id по убыванию при совпадении времени)
func streamBefore(a, b relay.Position) bool {
	if !a.SortKey.Equal(b.SortKey) {
		return a.SortKey.After(b.SortKey)
	}
	return a.ID > b.ID
}
