package models

import "time"

// Visibility определяет, кому виден пост
type Visibility string

const (
	VisibilityPublic        Visibility = "PUBLIC"
	VisibilityFollowersOnly Visibility = "FOLLOWERS_ONLY"
	VisibilityPrivate       Visibility = "PRIVATE"
)

// ValidVisibility проверяет, что значение входит в допустимый набор
func ValidVisibility(v Visibility) bool {
	switch v {
	case VisibilityPublic, VisibilityFollowersOnly, VisibilityPrivate:
		return true
	}
	return false
}

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

type Profile struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	DisplayName *string   `json:"displayName"`
	Bio         *string   `json:"bio"`
	AvatarURL   *string   `json:"avatarUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Post struct {
	ID           int64      `json:"id"`
	AuthorID     int64      `json:"authorId"`
	Content      string     `json:"content"`
	Visibility   Visibility `json:"visibility"`
	CommentCount int        `json:"commentCount"`
	LikeCount    int        `json:"likeCount"`
	IsDeleted    bool       `json:"isDeleted"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"postId"`
	AuthorID  int64     `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Follow struct {
	ID          int64     `json:"id"`
	FollowerID  int64     `json:"followerId"`
	FollowingID int64     `json:"followingId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ReactionLike - единственный поддерживаемый тип реакции
const ReactionLike = "LIKE"

type Reaction struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"postId"`
	UserID    int64     `json:"userId"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// Типы уведомлений
const (
	NotificationLike    = "LIKE"
	NotificationComment = "COMMENT"
	NotificationFollow  = "FOLLOW"
)

type Notification struct {
	ID          int64     `json:"id"`
	RecipientID int64     `json:"recipientId"`
	ActorID     int64     `json:"actorId"`
	Type        string    `json:"type"`
	PostID      *int64    `json:"postId"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`
}
