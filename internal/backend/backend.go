// Package backend реализует авторитетную сторону API постов поверх storage.Storage.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ButyrinIA/thread/internal/auth"
	"github.com/ButyrinIA/thread/internal/models"
	"github.com/ButyrinIA/thread/internal/reaction"
	"github.com/ButyrinIA/thread/internal/retweet"
	"github.com/ButyrinIA/thread/internal/storage"
	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/samber/lo"
)

const DefaultPageSize = 50

type Service struct {
	storage storage.Storage
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	// счетчики оригинала и реакции меняются как read-modify-write
	mu sync.Mutex
}

func New(store storage.Storage, logger *slog.Logger) *Service {
	return &Service{
		storage: store,
		logger:  logger.With("component", "backend.Service"),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.New().String() },
	}
}

func viewer(ctx context.Context) (models.User, error) {
	user, ok := auth.ViewerFrom(ctx)
	if !ok {
		return models.User{}, models.ErrUnauthenticated
	}
	return user, nil
}

// prepareSections выдает id секциям без id и проверяет их уникальность.
func (s *Service) prepareSections(sections []models.Section) ([]models.Section, error) {
	out := make([]models.Section, len(sections))
	seen := make(map[string]struct{}, len(sections))
	for i, sec := range sections {
		if sec.Body == nil {
			return nil, fmt.Errorf("%w: section %d has no content", models.ErrValidation, i)
		}
		if sec.ID == "" {
			sec.ID = s.newID()
		}
		if _, dup := seen[sec.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate section id %s", models.ErrValidation, sec.ID)
		}
		seen[sec.ID] = struct{}{}
		out[i] = sec
	}
	return out, nil
}

// CreatePost создает корневой пост или ответ. Повторный запрос с тем же
// ClientKey возвращает уже созданный пост.
func (s *Service) CreatePost(ctx context.Context, req models.CreatePostRequest) (*models.Post, error) {
	user, err := viewer(ctx)
	if err != nil {
		return nil, err
	}
	if err := models.Validate(req); err != nil {
		return nil, err
	}

	if req.ClientKey != "" {
		if existing, err := s.storage.GetPostByClientKey(ctx, req.ClientKey); err == nil {
			s.logger.Debug("duplicate create by client key", "client_key", req.ClientKey, "post_id", existing.ID)
			return s.hydrateOne(ctx, user, existing)
		}
	}

	if req.ParentID != nil {
		if _, err := s.storage.GetPost(ctx, *req.ParentID); err != nil {
			return nil, fmt.Errorf("parent post: %w", err)
		}
	}

	sections, err := s.prepareSections(req.Sections)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		ID:        s.newID(),
		ParentID:  req.ParentID,
		User:      user,
		Sections:  sections,
		CreatedAt: s.now(),
		ClientKey: req.ClientKey,
	}
	if err := s.storage.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	s.logger.Info("post created", "post_id", post.ID, "parent_id", lo.FromPtr(post.ParentID), "user_id", user.ID)
	return post, nil
}

// UpdatePost меняет секции поста. Счетчики и реакции через этот метод не меняются.
func (s *Service) UpdatePost(ctx context.Context, id string, patch models.PostPatch) (*models.Post, error) {
	user, err := viewer(ctx)
	if err != nil {
		return nil, err
	}

	post, err := s.storage.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.User.ID != user.ID {
		return nil, fmt.Errorf("%w: post %s belongs to another user", models.ErrPermission, id)
	}
	if patch.Sections == nil {
		return s.hydrateOne(ctx, user, post)
	}

	sections, err := s.prepareSections(patch.Sections)
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 && !post.IsRetweet() {
		return nil, fmt.Errorf("%w: post cannot be empty", models.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := post.Clone()
	post.Sections = sections
	if err := s.storage.UpdatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	if post.IsRetweet() {
		s.adjustOriginal(ctx, post.RetweetOf.ID, before, post)
	}
	return s.hydrateOne(ctx, user, post)
}

// DeletePost удаляет пост и все ответы на него. Удаление отсутствующего поста
// считается успешным.
func (s *Service) DeletePost(ctx context.Context, id string) (bool, error) {
	user, err := viewer(ctx)
	if err != nil {
		return false, err
	}

	post, err := s.storage.GetPost(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if post.User.ID != user.ID {
		return false, fmt.Errorf("%w: post %s belongs to another user", models.ErrPermission, id)
	}

	ids, err := s.subtree(ctx, id)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.DeletePosts(ctx, ids); err != nil {
		return false, fmt.Errorf("failed to delete posts: %w", err)
	}
	if post.IsRetweet() {
		s.adjustOriginal(ctx, post.RetweetOf.ID, post, nil)
	}
	s.logger.Info("post deleted", "post_id", id, "removed", len(ids))
	return true, nil
}

// subtree собирает id поста и всех его потомков.
func (s *Service) subtree(ctx context.Context, id string) ([]string, error) {
	ids := []string{id}
	seen := map[string]struct{}{id: {}}
	for i := 0; i < len(ids); i++ {
		parentID := ids[i]
		children, err := s.storage.ListPosts(ctx, models.PostFilter{ParentID: &parentID})
		if err != nil {
			return nil, fmt.Errorf("failed to list replies of %s: %w", parentID, err)
		}
		for _, child := range children {
			if _, ok := seen[child.ID]; ok {
				continue
			}
			seen[child.ID] = struct{}{}
			ids = append(ids, child.ID)
		}
	}
	return ids, nil
}

// FetchPosts возвращает плоскую страницу постов от новых к старым.
func (s *Service) FetchPosts(ctx context.Context, filter models.PostFilter) ([]*models.Post, error) {
	if err := models.Validate(filter); err != nil {
		return nil, err
	}
	if filter.Limit == 0 {
		filter.Limit = DefaultPageSize
	}

	posts, err := s.storage.ListPosts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	user, _ := auth.ViewerFrom(ctx)
	return s.hydrate(ctx, user, posts)
}

// AddReaction ставит, переносит или снимает реакцию зрителя и возвращает
// итоговое число реакций emoji на посте.
func (s *Service) AddReaction(ctx context.Context, postID, emoji string) (int, error) {
	user, err := viewer(ctx)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(emoji) == "" {
		return 0, fmt.Errorf("%w: empty reaction", models.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	post, err := s.storage.GetPost(ctx, postID)
	if err != nil {
		return 0, err
	}
	prev, err := s.storage.GetReactions(ctx, user.ID, []string{postID})
	if err != nil {
		return 0, fmt.Errorf("failed to load reaction: %w", err)
	}
	post.UserReaction = prev[postID]

	next := post.Apply(reaction.Toggle(post, emoji, s.now()))
	if err := s.storage.UpdatePost(ctx, next); err != nil {
		return 0, fmt.Errorf("failed to update reactions: %w", err)
	}
	if err := s.storage.SetReaction(ctx, postID, user.ID, next.UserReaction); err != nil {
		return 0, fmt.Errorf("failed to save reaction: %w", err)
	}
	return next.Reactions.Count(emoji), nil
}

// CreateRetweet создает репост или цитату оригинала. Ретвит ретвита
// указывает на исходный пост. Если у пользователя уже есть ретвит, цитата
// переписывает его, а репост возвращает существующий.
func (s *Service) CreateRetweet(ctx context.Context, req models.CreateRetweetRequest) (*models.Post, error) {
	user, err := viewer(ctx)
	if err != nil {
		return nil, err
	}
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	if req.QuoteText != nil && strings.TrimSpace(*req.QuoteText) == "" {
		return nil, fmt.Errorf("%w: quote text is required", models.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ClientKey != "" {
		if existing, err := s.storage.GetPostByClientKey(ctx, req.ClientKey); err == nil {
			return s.hydrateOne(ctx, user, existing)
		}
	}

	target, err := s.storage.GetPost(ctx, req.OriginalPostID)
	if err != nil {
		return nil, fmt.Errorf("retweet target: %w", err)
	}
	originalID := target.ID
	if target.RetweetOf != nil {
		originalID = target.RetweetOf.ID
	}

	var sections []models.Section
	if req.QuoteText != nil {
		sections = []models.Section{models.NewTextSection(s.newID(), strings.TrimSpace(*req.QuoteText))}
	}

	existing, err := s.storage.FindRetweet(ctx, user.ID, originalID)
	switch {
	case err == nil && sections == nil:
		return s.hydrateOne(ctx, user, existing)
	case err == nil:
		before := existing.Clone()
		existing.Sections = sections
		if err := s.storage.UpdatePost(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update quote: %w", err)
		}
		s.adjustOriginal(ctx, originalID, before, existing)
		return s.hydrateOne(ctx, user, existing)
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	rt := &models.Post{
		ID:        s.newID(),
		User:      user,
		Sections:  lo.Ternary(sections == nil, []models.Section{}, sections),
		CreatedAt: s.now(),
		RetweetOf: &models.Post{ID: originalID},
		ClientKey: req.ClientKey,
	}
	if err := s.storage.CreatePost(ctx, rt); err != nil {
		return nil, fmt.Errorf("failed to create retweet: %w", err)
	}
	s.adjustOriginal(ctx, originalID, nil, rt)
	s.logger.Info("retweet created", "post_id", rt.ID, "original_id", originalID, "quote", rt.IsQuote())
	return s.hydrateOne(ctx, user, rt)
}

// adjustOriginal пересчитывает счетчики оригинала. Ошибка не отменяет
// основную операцию, счетчики денормализованы.
func (s *Service) adjustOriginal(ctx context.Context, originalID string, before, after *models.Post) {
	original, err := s.storage.GetPost(ctx, originalID)
	if err != nil {
		s.logger.Warn("original post missing for counter update", "original_id", originalID, "error", err)
		return
	}
	retweets, quotes := retweet.CountDelta(before, after)
	if retweets == 0 && quotes == 0 {
		return
	}
	if err := s.storage.UpdatePost(ctx, original.Apply(retweet.ApplyCounts(original, retweets, quotes))); err != nil {
		s.logger.Warn("failed to update retweet counters", "original_id", originalID, "error", err)
	}
}

func (s *Service) hydrateOne(ctx context.Context, user models.User, post *models.Post) (*models.Post, error) {
	posts, err := s.hydrate(ctx, user, []*models.Post{post})
	if err != nil {
		return nil, err
	}
	return posts[0], nil
}

// hydrate подставляет полные оригиналы ретвитов и реакцию зрителя.
// Оригиналы грузятся одним пакетом через dataloader.
func (s *Service) hydrate(ctx context.Context, user models.User, posts []*models.Post) ([]*models.Post, error) {
	loader := dataloader.NewBatchedLoader(s.loadOriginals, dataloader.WithWait[string, *models.Post](time.Millisecond))

	thunks := make([]dataloader.Thunk[*models.Post], len(posts))
	for i, p := range posts {
		if p.RetweetOf != nil {
			thunks[i] = loader.Load(ctx, p.RetweetOf.ID)
		}
	}

	var reactions map[string]string
	if user.ID != "" {
		ids := lo.Map(posts, func(p *models.Post, _ int) string { return p.ID })
		var err error
		reactions, err = s.storage.GetReactions(ctx, user.ID, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load reactions: %w", err)
		}
	}

	out := make([]*models.Post, len(posts))
	for i, p := range posts {
		cp := p.Clone()
		cp.UserReaction = reactions[p.ID]
		if thunks[i] != nil {
			original, err := thunks[i]()
			if err == nil {
				cp.RetweetOf = original
			} else if !errors.Is(err, models.ErrNotFound) {
				return nil, err
			}
		}
		out[i] = cp
	}
	return out, nil
}

func (s *Service) loadOriginals(ctx context.Context, ids []string) []*dataloader.Result[*models.Post] {
	results := make([]*dataloader.Result[*models.Post], len(ids))
	posts, err := s.storage.GetPosts(ctx, ids)
	if err != nil {
		for i := range results {
			results[i] = &dataloader.Result[*models.Post]{Error: err}
		}
		return results
	}

	byID := lo.KeyBy(posts, func(p *models.Post) string { return p.ID })
	for i, id := range ids {
		if p, ok := byID[id]; ok {
			results[i] = &dataloader.Result[*models.Post]{Data: p}
		} else {
			results[i] = &dataloader.Result[*models.Post]{Error: fmt.Errorf("%w: %s", models.ErrNotFound, id)}
		}
	}
	return results
}
