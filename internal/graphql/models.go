package graphql

import "github.com/ButyrinIA/socialgraph/internal/models"

// Node - закрытое объединение сущностей, адресуемых глобальным
// идентификатором; диспетчеризация по декодированному виду
type Node interface {
	IsNode()
}

type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"createdAt"`

	// локальный ключ для резолверов полей, в схему не входит
	LocalID int64 `json:"-"`
}

func (User) IsNode() {}

type Profile struct {
	ID          string  `json:"id"`
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
	AvatarURL   *string `json:"avatarUrl"`
	CreatedAt   string  `json:"createdAt"`
}

func (Profile) IsNode() {}

type Post struct {
	ID           string            `json:"id"`
	Content      string            `json:"content"`
	Visibility   models.Visibility `json:"visibility"`
	CommentCount int               `json:"commentCount"`
	LikeCount    int               `json:"likeCount"`
	CreatedAt    string            `json:"createdAt"`

	LocalID  int64 `json:"-"`
	AuthorID int64 `json:"-"`
}

func (Post) IsNode() {}

type Comment struct {
	ID        string `json:"id"`
	PostID    string `json:"postId"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`

	LocalID  int64 `json:"-"`
	AuthorID int64 `json:"-"`
}

func (Comment) IsNode() {}

type Follow struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`

	LocalID     int64 `json:"-"`
	FollowerID  int64 `json:"-"`
	FollowingID int64 `json:"-"`
}

func (Follow) IsNode() {}

type Notification struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	PostID    *string `json:"postId"`
	IsRead    bool    `json:"isRead"`
	CreatedAt string  `json:"createdAt"`

	ActorID int64 `json:"-"`
}

type PageInfo struct {
	HasNextPage     bool    `json:"hasNextPage"`
	HasPreviousPage bool    `json:"hasPreviousPage"`
	StartCursor     *string `json:"startCursor"`
	EndCursor       *string `json:"endCursor"`
}

type PostEdge struct {
	Node   *Post  `json:"node"`
	Cursor string `json:"cursor"`
}

type PostConnection struct {
	Edges    []*PostEdge `json:"edges"`
	PageInfo *PageInfo   `json:"pageInfo"`
}

type CommentEdge struct {
	Node   *Comment `json:"node"`
	Cursor string   `json:"cursor"`
}

type CommentConnection struct {
	Edges    []*CommentEdge `json:"edges"`
	PageInfo *PageInfo      `json:"pageInfo"`
}

type FollowEdge struct {
	Node   *Follow `json:"node"`
	Cursor string  `json:"cursor"`
}

type FollowConnection struct {
	Edges    []*FollowEdge `json:"edges"`
	PageInfo *PageInfo     `json:"pageInfo"`
}

type NotificationEdge struct {
	Node   *Notification `json:"node"`
	Cursor string        `json:"cursor"`
}

type NotificationConnection struct {
	Edges    []*NotificationEdge `json:"edges"`
	PageInfo *PageInfo           `json:"pageInfo"`
}
