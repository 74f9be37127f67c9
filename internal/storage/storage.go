package storage

import (
	"context"

	"github.com/ButyrinIA/thread/internal/models"
)

// Storage хранит посты плоско: связи задаются ParentID и RetweetOf.ID,
// Replies не сохраняются. UserReaction в сохраненных постах всегда пустой,
// реакции пользователей хранятся отдельно.
type Storage interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id string) (*models.Post, error)
	GetPosts(ctx context.Context, ids []string) ([]*models.Post, error)
	GetPostByClientKey(ctx context.Context, key string) (*models.Post, error)
	ListPosts(ctx context.Context, filter models.PostFilter) ([]*models.Post, error)
	UpdatePost(ctx context.Context, post *models.Post) error
	DeletePosts(ctx context.Context, ids []string) error
	FindRetweet(ctx context.Context, userID, originalID string) (*models.Post, error)
	// SetReaction сохраняет реакцию пользователя, пустой emoji удаляет ее.
	SetReaction(ctx context.Context, postID, userID, emoji string) error
	// GetReactions возвращает реакции пользователя по id постов.
	GetReactions(ctx context.Context, userID string, postIDs []string) (map[string]string, error)
	Close() error
}
