package graphql

import (
	"encoding/base64"
	"strconv"
	"time"

	"github.com/ButyrinIA/socialgraph/internal/models"
	"github.com/ButyrinIA/socialgraph/internal/relay"
)

// Конвертация internal/models в типы схемы: глобальные идентификаторы
// вместо локальных ключей, метки времени в RFC3339

func toUser(u *models.User) *User {
	return &User{
		ID:        relay.EncodeID(relay.KindUser, u.ID),
		Username:  u.Username,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
		LocalID:   u.ID,
	}
}

func toProfile(p *models.Profile) *Profile {
	return &Profile{
		ID:          relay.EncodeID(relay.KindProfile, p.ID),
		DisplayName: p.DisplayName,
		Bio:         p.Bio,
		AvatarURL:   p.AvatarURL,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

func toPost(p *models.Post) *Post {
	return &Post{
		ID:           relay.EncodeID(relay.KindPost, p.ID),
		Content:      p.Content,
		Visibility:   p.Visibility,
		CommentCount: p.CommentCount,
		LikeCount:    p.LikeCount,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
		LocalID:      p.ID,
		AuthorID:     p.AuthorID,
	}
}

func toComment(c *models.Comment) *Comment {
	return &Comment{
		ID:        relay.EncodeID(relay.KindComment, c.ID),
		PostID:    relay.EncodeID(relay.KindPost, c.PostID),
		Content:   c.Content,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		LocalID:   c.ID,
		AuthorID:  c.AuthorID,
	}
}

func toFollow(f *models.Follow) *Follow {
	return &Follow{
		ID:          relay.EncodeID(relay.KindFollow, f.ID),
		CreatedAt:   f.CreatedAt.Format(time.RFC3339),
		LocalID:     f.ID,
		FollowerID:  f.FollowerID,
		FollowingID: f.FollowingID,
	}
}

func toNotification(n *models.Notification) *Notification {
	var postID *string
	if n.PostID != nil {
		id := relay.EncodeID(relay.KindPost, *n.PostID)
		postID = &id
	}
	// Уведомления не входят в закрытый набор видов node(): их идентификатор
	// непрозрачен, но DecodeID его отклонит
	gid := base64.StdEncoding.EncodeToString([]byte("Notification:" + strconv.FormatInt(n.ID, 10)))
	return &Notification{
		ID:        gid,
		Type:      n.Type,
		PostID:    postID,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
		ActorID:   n.ActorID,
	}
}

func toPageInfo(info relay.PageInfo) *PageInfo {
	return &PageInfo{
		HasNextPage:     info.HasNextPage,
		HasPreviousPage: info.HasPreviousPage,
		StartCursor:     info.StartCursor,
		EndCursor:       info.EndCursor,
	}
}

func toPostConnection(conn *relay.Connection[models.Post]) *PostConnection {
	edges := make([]*PostEdge, len(conn.Edges))
	for i, e := range conn.Edges {
		node := e.Node
		edges[i] = &PostEdge{Node: toPost(&node), Cursor: e.Cursor}
	}
	return &PostConnection{Edges: edges, PageInfo: toPageInfo(conn.PageInfo)}
}

func toCommentConnection(conn *relay.Connection[models.Comment]) *CommentConnection {
	edges := make([]*CommentEdge, len(conn.Edges))
	for i, e := range conn.Edges {
		node := e.Node
		edges[i] = &CommentEdge{Node: toComment(&node), Cursor: e.Cursor}
	}
	return &CommentConnection{Edges: edges, PageInfo: toPageInfo(conn.PageInfo)}
}

func toFollowConnection(conn *relay.Connection[models.Follow]) *FollowConnection {
	edges := make([]*FollowEdge, len(conn.Edges))
	for i, e := range conn.Edges {
		node := e.Node
		edges[i] = &FollowEdge{Node: toFollow(&node), Cursor: e.Cursor}
	}
	return &FollowConnection{Edges: edges, PageInfo: toPageInfo(conn.PageInfo)}
}

func toNotificationConnection(conn *relay.Connection[models.Notification]) *NotificationConnection {
	edges := make([]*NotificationEdge, len(conn.Edges))
	for i, e := range conn.Edges {
		node := e.Node
		edges[i] = &NotificationEdge{Node: toNotification(&node), Cursor: e.Cursor}
	}
	return &NotificationConnection{Edges: edges, PageInfo: toPageInfo(conn.PageInfo)}
}
