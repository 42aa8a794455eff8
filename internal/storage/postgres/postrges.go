package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ButyrinIA/socialgraph/internal/models"
	"github.com/ButyrinIA/socialgraph/internal/relay"
	"github.com/ButyrinIA/socialgraph/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStorage struct {
	pool *pgxpool.Pool
}

func New(dsn string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	_, err = pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS profiles (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL UNIQUE REFERENCES users(id),
			display_name TEXT,
			bio TEXT,
			avatar_url TEXT,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS posts (
			id BIGSERIAL PRIMARY KEY,
			author_id BIGINT NOT NULL REFERENCES users(id),
			content TEXT NOT NULL,
			visibility TEXT NOT NULL,
			comment_count INT NOT NULL DEFAULT 0,
			like_count INT NOT NULL DEFAULT 0,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at DESC, id DESC) WHERE NOT is_deleted;
		CREATE INDEX IF NOT EXISTS idx_posts_author_created ON posts(author_id, created_at DESC, id DESC) WHERE NOT is_deleted;
		CREATE TABLE IF NOT EXISTS comments (
			id BIGSERIAL PRIMARY KEY,
			post_id BIGINT NOT NULL REFERENCES posts(id),
			author_id BIGINT NOT NULL REFERENCES users(id),
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_comments_post_created ON comments(post_id, created_at DESC, id DESC);
		CREATE TABLE IF NOT EXISTS follows (
			id BIGSERIAL PRIMARY KEY,
			follower_id BIGINT NOT NULL REFERENCES users(id),
			following_id BIGINT NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (follower_id, following_id)
		);
		CREATE INDEX IF NOT EXISTS idx_follows_follower ON follows(follower_id, created_at DESC, id DESC);
		CREATE INDEX IF NOT EXISTS idx_follows_following ON follows(following_id, created_at DESC, id DESC);
		CREATE TABLE IF NOT EXISTS reactions (
			id BIGSERIAL PRIMARY KEY,
			post_id BIGINT NOT NULL REFERENCES posts(id),
			user_id BIGINT NOT NULL REFERENCES users(id),
			type TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (post_id, user_id, type)
		);
		CREATE TABLE IF NOT EXISTS notifications (
			id BIGSERIAL PRIMARY KEY,
			recipient_id BIGINT NOT NULL REFERENCES users(id),
			actor_id BIGINT NOT NULL REFERENCES users(id),
			type TEXT NOT NULL,
			post_id BIGINT,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, created_at DESC, id DESC);
	`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// keysetArgs раскладывает позицию курсора в пару nullable-параметров
// для сравнения кортежей в запросе
func keysetArgs(pos *relay.Position) (*time.Time, *int64) {
	if pos == nil {
		return nil, nil
	}
	t := pos.SortKey
	id := pos.ID
	return &t, &id
}

// direction возвращает оператор сравнения кортежа и порядок сортировки:
// вперед - элементы строго старше позиции в порядке потока, назад - строго
// новее в обратном порядке
func direction(backward bool) (op, order string) {
	if backward {
		return ">", "ASC"
	}
	return "<", "DESC"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStorage) CreateUser(ctx context.Context, user *models.User, profile *models.Profile) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO users (username, created_at) VALUES ($1, $2)
		RETURNING id`,
		user.Username, user.CreatedAt).Scan(&user.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %q", storage.ErrUsernameTaken, user.Username)
	}
	if err != nil {
		return err
	}

	profile.UserID = user.ID
	err = tx.QueryRow(ctx, `
		INSERT INTO profiles (user_id, display_name, bio, avatar_url, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		profile.UserID, profile.DisplayName, profile.Bio, profile.AvatarURL, profile.CreatedAt).Scan(&profile.ID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStorage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, created_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Username, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, created_at FROM users WHERE username=$1`, username).
		Scan(&u.ID, &u.Username, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %q", storage.ErrNotFound, username)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStorage) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	var p models.Profile
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, display_name, bio, avatar_url, created_at
		FROM profiles WHERE id=$1`, id).
		Scan(&p.ID, &p.UserID, &p.DisplayName, &p.Bio, &p.AvatarURL, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: profile %d", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStorage) GetProfilesByUserIDs(ctx context.Context, userIDs []int64) (map[int64]*models.Profile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, display_name, bio, avatar_url, created_at
		FROM profiles WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64]*models.Profile, len(userIDs))
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.ID, &p.UserID, &p.DisplayName, &p.Bio, &p.AvatarURL, &p.CreatedAt); err != nil {
			return nil, err
		}
		result[p.UserID] = &p
	}
	return result, rows.Err()
}

func (s *PostgresStorage) CreatePost(ctx context.Context, post *models.Post) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO posts (author_id, content, visibility, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		post.AuthorID, post.Content, post.Visibility, post.CreatedAt).Scan(&post.ID)
}

func (s *PostgresStorage) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var p models.Post
	err := s.pool.QueryRow(ctx, `
		SELECT id, author_id, content, visibility, comment_count, like_count, is_deleted, created_at
		FROM posts WHERE id=$1 AND NOT is_deleted`, id).
		Scan(&p.ID, &p.AuthorID, &p.Content, &p.Visibility, &p.CommentCount, &p.LikeCount, &p.IsDeleted, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: post %d", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStorage) DeletePost(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE posts SET is_deleted = TRUE WHERE id=$1 AND NOT is_deleted`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: post %d", storage.ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStorage) ScanPosts(ctx context.Context, filter storage.PostFilter, pos *relay.Position, backward bool, limit int) ([]models.Post, error) {
	op, order := direction(backward)
	posTime, posID := keysetArgs(pos)
	query := fmt.Sprintf(`
		SELECT id, author_id, content, visibility, comment_count, like_count, is_deleted, created_at
		FROM posts
		WHERE NOT is_deleted
		AND ($1::BIGINT IS NULL OR author_id = $1)
		AND (CARDINALITY($2::TEXT[]) = 0 OR visibility = ANY($2))
		AND ($3::TIMESTAMPTZ IS NULL OR (created_at, id) %s ($3, $4))
		ORDER BY created_at %s, id %s
		LIMIT $5`, op, order, order)

	visibilities := make([]string, len(filter.Visibilities))
	for i, v := range filter.Visibilities {
		visibilities[i] = string(v)
	}
	rows, err := s.pool.Query(ctx, query, filter.AuthorID, visibilities, posTime, posID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Content, &p.Visibility, &p.CommentCount, &p.LikeCount, &p.IsDeleted, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *PostgresStorage) CreateComment(ctx context.Context, comment *models.Comment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE posts SET comment_count = comment_count + 1
		WHERE id=$1 AND NOT is_deleted`, comment.PostID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: post %d", storage.ErrNotFound, comment.PostID)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO comments (post_id, author_id, content, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		comment.PostID, comment.AuthorID, comment.Content, comment.CreatedAt).Scan(&comment.ID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStorage) GetComment(ctx context.Context, id int64) (*models.Comment, error) {
	var c models.Comment
	err := s.pool.QueryRow(ctx, `
		SELECT id, post_id, author_id, content, created_at
		FROM comments WHERE id=$1`, id).
		Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: comment %d", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStorage) ScanComments(ctx context.Context, postID int64, pos *relay.Position, backward bool, limit int) ([]models.Comment, error) {
	op, order := direction(backward)
	posTime, posID := keysetArgs(pos)
	query := fmt.Sprintf(`
		SELECT id, post_id, author_id, content, created_at
		FROM comments
		WHERE post_id=$1
		AND ($2::TIMESTAMPTZ IS NULL OR (created_at, id) %s ($2, $3))
		ORDER BY created_at %s, id %s
		LIMIT $4`, op, order, order)

	rows, err := s.pool.Query(ctx, query, postID, posTime, posID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *PostgresStorage) UpsertFollow(ctx context.Context, followerID, followingID int64) (*models.Follow, bool, error) {
	var f models.Follow
	err := s.pool.QueryRow(ctx, `
		INSERT INTO follows (follower_id, following_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (follower_id, following_id) DO NOTHING
		RETURNING id, follower_id, following_id, created_at`,
		followerID, followingID, time.Now()).
		Scan(&f.ID, &f.FollowerID, &f.FollowingID, &f.CreatedAt)
	if err == nil {
		return &f, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	// Ребро уже существует - возвращаем его
	err = s.pool.QueryRow(ctx, `
		SELECT id, follower_id, following_id, created_at
		FROM follows WHERE follower_id=$1 AND following_id=$2`,
		followerID, followingID).
		Scan(&f.ID, &f.FollowerID, &f.FollowingID, &f.CreatedAt)
	if err != nil {
		return nil, false, err
	}
	return &f, false, nil
}

func (s *PostgresStorage) DeleteFollow(ctx context.Context, followerID, followingID int64) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM follows WHERE follower_id=$1 AND following_id=$2`,
		followerID, followingID)
	return err
}

func (s *PostgresStorage) GetFollow(ctx context.Context, id int64) (*models.Follow, error) {
	var f models.Follow
	err := s.pool.QueryRow(ctx, `
		SELECT id, follower_id, following_id, created_at
		FROM follows WHERE id=$1`, id).
		Scan(&f.ID, &f.FollowerID, &f.FollowingID, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: follow %d", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *PostgresStorage) ScanFollows(ctx context.Context, userID int64, dir storage.FollowDirection, pos *relay.Position, backward bool, limit int) ([]models.Follow, error) {
	side := "follower_id"
	if dir == storage.DirectionFollowers {
		side = "following_id"
	}
	op, order := direction(backward)
	posTime, posID := keysetArgs(pos)
	query := fmt.Sprintf(`
		SELECT id, follower_id, following_id, created_at
		FROM follows
		WHERE %s=$1
		AND ($2::TIMESTAMPTZ IS NULL OR (created_at, id) %s ($2, $3))
		ORDER BY created_at %s, id %s
		LIMIT $4`, side, op, order, order)

	rows, err := s.pool.Query(ctx, query, userID, posTime, posID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var follows []models.Follow
	for rows.Next() {
		var f models.Follow
		if err := rows.Scan(&f.ID, &f.FollowerID, &f.FollowingID, &f.CreatedAt); err != nil {
			return nil, err
		}
		follows = append(follows, f)
	}
	return follows, rows.Err()
}

func (s *PostgresStorage) ListFollowingIDs(ctx context.Context, userID int64, limit int) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT following_id FROM follows
		WHERE follower_id=$1
		ORDER BY following_id
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStorage) UpsertReaction(ctx context.Context, postID, userID int64, reactionType string) (*models.Reaction, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM posts WHERE id=$1 AND NOT is_deleted)`, postID).Scan(&exists)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, fmt.Errorf("%w: post %d", storage.ErrNotFound, postID)
	}

	var r models.Reaction
	created := true
	err = tx.QueryRow(ctx, `
		INSERT INTO reactions (post_id, user_id, type, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (post_id, user_id, type) DO NOTHING
		RETURNING id, post_id, user_id, type, created_at`,
		postID, userID, reactionType, time.Now()).
		Scan(&r.ID, &r.PostID, &r.UserID, &r.Type, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		created = false
		err = tx.QueryRow(ctx, `
			SELECT id, post_id, user_id, type, created_at
			FROM reactions WHERE post_id=$1 AND user_id=$2 AND type=$3`,
			postID, userID, reactionType).
			Scan(&r.ID, &r.PostID, &r.UserID, &r.Type, &r.CreatedAt)
	}
	if err != nil {
		return nil, false, err
	}

	if created {
		if _, err := tx.Exec(ctx, `
			UPDATE posts SET like_count = like_count + 1 WHERE id=$1`, postID); err != nil {
			return nil, false, err
		}
	}
	return &r, created, tx.Commit(ctx)
}

func (s *PostgresStorage) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO notifications (recipient_id, actor_id, type, post_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		notification.RecipientID, notification.ActorID, notification.Type,
		notification.PostID, notification.IsRead, notification.CreatedAt).Scan(&notification.ID)
}

func (s *PostgresStorage) ScanNotifications(ctx context.Context, recipientID int64, pos *relay.Position, backward bool, limit int) ([]models.Notification, error) {
	op, order := direction(backward)
	posTime, posID := keysetArgs(pos)
	query := fmt.Sprintf(`
		SELECT id, recipient_id, actor_id, type, post_id, is_read, created_at
		FROM notifications
		WHERE recipient_id=$1
		AND ($2::TIMESTAMPTZ IS NULL OR (created_at, id) %s ($2, $3))
		ORDER BY created_at %s, id %s
		LIMIT $4`, op, order, order)

	rows, err := s.pool.Query(ctx, query, recipientID, posTime, posID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.ActorID, &n.Type, &n.PostID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}
