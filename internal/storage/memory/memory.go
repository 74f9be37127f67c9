package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ButyrinIA/thread/internal/models"
)

type MemoryStorage struct {
	posts     map[string]*models.Post
	order     []string
	byKey     map[string]string
	reactions map[string]map[string]string // postID -> userID -> emoji
	mu        sync.RWMutex
}

func New() *MemoryStorage {
	return &MemoryStorage{
		posts:     make(map[string]*models.Post),
		byKey:     make(map[string]string),
		reactions: make(map[string]map[string]string),
	}
}

// stored приводит пост к виду, в котором он хранится
func stored(post *models.Post) *models.Post {
	cp := post.Clone()
	cp.Replies = nil
	cp.UserReaction = ""
	if post.RetweetOf != nil {
		cp.RetweetOf = &models.Post{ID: post.RetweetOf.ID}
	}
	return cp
}

func (s *MemoryStorage) CreatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[post.ID]; exists {
		return fmt.Errorf("%w: post %s already exists", models.ErrValidation, post.ID)
	}
	s.posts[post.ID] = stored(post)
	s.order = append(s.order, post.ID)
	if post.ClientKey != "" {
		s.byKey[post.ClientKey] = post.ID
	}
	return nil
}

func (s *MemoryStorage) GetPost(ctx context.Context, id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, exists := s.posts[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	return post.Clone(), nil
}

func (s *MemoryStorage) GetPosts(ctx context.Context, ids []string) ([]*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Post, 0, len(ids))
	for _, id := range ids {
		if post, ok := s.posts[id]; ok {
			result = append(result, post.Clone())
		}
	}
	return result, nil
}

func (s *MemoryStorage) GetPostByClientKey(ctx context.Context, key string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: client key %s", models.ErrNotFound, key)
	}
	return s.posts[id].Clone(), nil
}

// ListPosts возвращает посты от новых к старым.
func (s *MemoryStorage) ListPosts(ctx context.Context, filter models.PostFilter) ([]*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var posts []*models.Post
	for _, id := range s.order {
		post := s.posts[id]
		if filter.UserID != "" && post.User.ID != filter.UserID {
			continue
		}
		if filter.ParentID != nil && (post.ParentID == nil || *post.ParentID != *filter.ParentID) {
			continue
		}
		posts = append(posts, post)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	// Применение смещения и лимита
	startIdx := min(filter.Offset, len(posts))
	endIdx := len(posts)
	if filter.Limit > 0 && startIdx+filter.Limit < endIdx {
		endIdx = startIdx + filter.Limit
	}

	result := make([]*models.Post, 0, endIdx-startIdx)
	for _, post := range posts[startIdx:endIdx] {
		result = append(result, post.Clone())
	}
	return result, nil
}

func (s *MemoryStorage) UpdatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[post.ID]; !exists {
		return fmt.Errorf("%w: %s", models.ErrNotFound, post.ID)
	}
	s.posts[post.ID] = stored(post)
	return nil
}

func (s *MemoryStorage) DeletePosts(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		post, ok := s.posts[id]
		if !ok {
			continue
		}
		drop[id] = struct{}{}
		if post.ClientKey != "" {
			delete(s.byKey, post.ClientKey)
		}
		delete(s.posts, id)
		delete(s.reactions, id)
	}

	order := s.order[:0]
	for _, id := range s.order {
		if _, ok := drop[id]; !ok {
			order = append(order, id)
		}
	}
	s.order = order
	return nil
}

func (s *MemoryStorage) FindRetweet(ctx context.Context, userID, originalID string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		post := s.posts[id]
		if post.RetweetOf != nil && post.RetweetOf.ID == originalID && post.User.ID == userID {
			return post.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: retweet of %s by %s", models.ErrNotFound, originalID, userID)
}

func (s *MemoryStorage) SetReaction(ctx context.Context, postID, userID, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[postID]; !exists {
		return fmt.Errorf("%w: %s", models.ErrNotFound, postID)
	}
	if emoji == "" {
		delete(s.reactions[postID], userID)
		return nil
	}
	if s.reactions[postID] == nil {
		s.reactions[postID] = make(map[string]string)
	}
	s.reactions[postID][userID] = emoji
	return nil
}

func (s *MemoryStorage) GetReactions(ctx context.Context, userID string, postIDs []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]string)
	for _, id := range postIDs {
		if emoji, ok := s.reactions[id][userID]; ok {
			result[id] = emoji
		}
	}
	return result, nil
}

// Close очищает хранилище
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.posts = make(map[string]*models.Post)
	s.order = nil
	s.byKey = make(map[string]string)
	s.reactions = make(map[string]map[string]string)
	return nil
}
