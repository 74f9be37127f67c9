package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ButyrinIA/thread/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		parent_id TEXT,
		user_id TEXT NOT NULL,
		user_data JSONB NOT NULL,
		sections JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		reaction_count INTEGER NOT NULL DEFAULT 0,
		retweet_count INTEGER NOT NULL DEFAULT 0,
		quote_count INTEGER NOT NULL DEFAULT 0,
		reactions JSONB NOT NULL DEFAULT '[]',
		retweet_of_id TEXT,
		client_key TEXT UNIQUE
	);
	CREATE TABLE IF NOT EXISTS post_reactions (
		post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		emoji TEXT NOT NULL,
		PRIMARY KEY (post_id, user_id)
	);
	CREATE INDEX IF NOT EXISTS idx_posts_parent_id ON posts(parent_id);
	CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts(user_id);
	CREATE INDEX IF NOT EXISTS idx_posts_retweet_of ON posts(retweet_of_id, user_id);
`

const columns = `id, parent_id, user_data, sections, created_at, reaction_count,
	retweet_count, quote_count, reactions, retweet_of_id, client_key`

type PostgresStorage struct {
	pool *pgxpool.Pool
}

func New(dsn string) (*PostgresStorage, error) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type row struct {
	parentID    *string
	userData    []byte
	sections    []byte
	reactions   []byte
	retweetOfID *string
	clientKey   *string
}

func encode(post *models.Post) (*row, error) {
	userData, err := json.Marshal(post.User)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}
	sections := post.Sections
	if sections == nil {
		sections = []models.Section{}
	}
	sectionData, err := json.Marshal(sections)
	if err != nil {
		return nil, fmt.Errorf("encode sections: %w", err)
	}
	reactions := post.Reactions
	if reactions == nil {
		reactions = models.Reactions{}
	}
	reactionData, err := json.Marshal(reactions)
	if err != nil {
		return nil, fmt.Errorf("encode reactions: %w", err)
	}

	r := &row{
		parentID:  post.ParentID,
		userData:  userData,
		sections:  sectionData,
		reactions: reactionData,
		clientKey: nullable(post.ClientKey),
	}
	if post.RetweetOf != nil {
		r.retweetOfID = &post.RetweetOf.ID
	}
	return r, nil
}

func scanPost(s pgx.Row) (*models.Post, error) {
	var (
		p models.Post
		r row
	)
	err := s.Scan(&p.ID, &r.parentID, &r.userData, &r.sections, &p.CreatedAt, &p.ReactionCount,
		&p.RetweetCount, &p.QuoteCount, &r.reactions, &r.retweetOfID, &r.clientKey)
	if err != nil {
		return nil, err
	}

	p.ParentID = r.parentID
	if err := json.Unmarshal(r.userData, &p.User); err != nil {
		return nil, fmt.Errorf("decode user of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal(r.sections, &p.Sections); err != nil {
		return nil, fmt.Errorf("decode sections of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal(r.reactions, &p.Reactions); err != nil {
		return nil, fmt.Errorf("decode reactions of %s: %w", p.ID, err)
	}
	if r.retweetOfID != nil {
		p.RetweetOf = &models.Post{ID: *r.retweetOfID}
	}
	if r.clientKey != nil {
		p.ClientKey = *r.clientKey
	}
	return &p, nil
}

func collect(rows pgx.Rows) ([]*models.Post, error) {
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

func (s *PostgresStorage) CreatePost(ctx context.Context, post *models.Post) error {
	r, err := encode(post)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO posts (`+columns+`, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		post.ID, r.parentID, r.userData, r.sections, post.CreatedAt, post.ReactionCount,
		post.RetweetCount, post.QuoteCount, r.reactions, r.retweetOfID, r.clientKey, post.User.ID)
	return err
}

func (s *PostgresStorage) GetPost(ctx context.Context, id string) (*models.Post, error) {
	p, err := scanPost(s.pool.QueryRow(ctx, `SELECT `+columns+` FROM posts WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	return p, err
}

func (s *PostgresStorage) GetPosts(ctx context.Context, ids []string) ([]*models.Post, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+columns+` FROM posts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *PostgresStorage) GetPostByClientKey(ctx context.Context, key string) (*models.Post, error) {
	p, err := scanPost(s.pool.QueryRow(ctx, `SELECT `+columns+` FROM posts WHERE client_key=$1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: client key %s", models.ErrNotFound, key)
	}
	return p, err
}

func (s *PostgresStorage) ListPosts(ctx context.Context, filter models.PostFilter) ([]*models.Post, error) {
	var limit *int
	if filter.Limit > 0 {
		limit = &filter.Limit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+columns+`
		FROM posts
		WHERE ($1::TEXT IS NULL OR user_id = $1)
		AND ($2::TEXT IS NULL OR parent_id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`,
		nullable(filter.UserID), filter.ParentID, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *PostgresStorage) UpdatePost(ctx context.Context, post *models.Post) error {
	r, err := encode(post)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE posts SET sections=$2, reaction_count=$3, retweet_count=$4, quote_count=$5, reactions=$6
		WHERE id=$1`,
		post.ID, r.sections, post.ReactionCount, post.RetweetCount, post.QuoteCount, r.reactions)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", models.ErrNotFound, post.ID)
	}
	return nil
}

func (s *PostgresStorage) DeletePosts(ctx context.Context, ids []string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = ANY($1)`, ids)
	return err
}

func (s *PostgresStorage) FindRetweet(ctx context.Context, userID, originalID string) (*models.Post, error) {
	p, err := scanPost(s.pool.QueryRow(ctx, `
		SELECT `+columns+` FROM posts
		WHERE retweet_of_id=$1 AND user_id=$2
		ORDER BY created_at LIMIT 1`, originalID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: retweet of %s by %s", models.ErrNotFound, originalID, userID)
	}
	return p, err
}

func (s *PostgresStorage) SetReaction(ctx context.Context, postID, userID, emoji string) error {
	if emoji == "" {
		_, err := s.pool.Exec(ctx, `DELETE FROM post_reactions WHERE post_id=$1 AND user_id=$2`, postID, userID)
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO post_reactions (post_id, user_id, emoji) VALUES ($1, $2, $3)
		ON CONFLICT (post_id, user_id) DO UPDATE SET emoji = EXCLUDED.emoji`,
		postID, userID, emoji)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("%w: %s", models.ErrNotFound, postID)
	}
	return err
}

func (s *PostgresStorage) GetReactions(ctx context.Context, userID string, postIDs []string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT post_id, emoji FROM post_reactions
		WHERE user_id=$1 AND post_id = ANY($2)`, userID, postIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var postID, emoji string
		if err := rows.Scan(&postID, &emoji); err != nil {
			return nil, err
		}
		result[postID] = emoji
	}
	return result, rows.Err()
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}
