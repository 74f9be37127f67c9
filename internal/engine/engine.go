// Package engine хранит лес постов для слоя представления и согласует его с
// авторитетным API: успешный ответ вливается в лес, сетевой сбой при создании
// заменяется локальным постом с id "local-...".
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ButyrinIA/thread/internal/auth"
	"github.com/ButyrinIA/thread/internal/metrics"
	"github.com/ButyrinIA/thread/internal/models"
	"github.com/ButyrinIA/thread/internal/reaction"
	"github.com/ButyrinIA/thread/internal/retweet"
	"github.com/ButyrinIA/thread/internal/thread"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"
)

// API - внешний API постов. Реализуется backend.Service и client.Client.
type API interface {
	CreatePost(ctx context.Context, req models.CreatePostRequest) (*models.Post, error)
	UpdatePost(ctx context.Context, id string, patch models.PostPatch) (*models.Post, error)
	DeletePost(ctx context.Context, id string) (bool, error)
	FetchPosts(ctx context.Context, filter models.PostFilter) ([]*models.Post, error)
	AddReaction(ctx context.Context, postID, emoji string) (int, error)
	CreateRetweet(ctx context.Context, req models.CreateRetweetRequest) (*models.Post, error)
}

type Options struct {
	Viewer *models.User
	// ReactionCooldown - окно между отправками реакции на один пост;
	// 0 - reaction.DefaultCooldown.
	ReactionCooldown time.Duration
	PageSize         int
}

type Store struct {
	api    API
	logger *slog.Logger

	mu      sync.RWMutex
	viewer  *models.User
	posts   []*models.Post
	pending []pendingWrite
	loading int
	err     string

	loads     singleflight.Group
	debouncer *reaction.Debouncer
	tray      reaction.Tray
	pageSize  int

	now   func() time.Time
	newID func() string
}

func New(api API, logger *slog.Logger, opts Options) *Store {
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.ReactionCooldown <= 0 {
		opts.ReactionCooldown = reaction.DefaultCooldown
	}
	s := &Store{
		api:       api,
		logger:    logger.With("component", "engine.Store"),
		viewer:    opts.Viewer,
		debouncer: reaction.NewDebouncer(opts.ReactionCooldown),
		pageSize:  opts.PageSize,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
	s.debouncer.SetClock(func() time.Time { return s.now() })
	return s
}

// SetViewer меняет текущего пользователя; nil - пользователь не вошел.
func (s *Store) SetViewer(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil {
		s.viewer = nil
		return
	}
	u := *user
	s.viewer = &u
}

func (s *Store) Viewer() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.viewer == nil {
		return nil
	}
	u := *s.viewer
	return &u
}

// Posts возвращает текущий лес. Срез и посты нельзя изменять.
func (s *Store) Posts() []*models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.posts
}

func (s *Store) FlattenedPosts() []*models.Post {
	return thread.FlattenPosts(s.Posts())
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// Err - сообщение последней неудачной операции для показа пользователю.
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store) ClearErr() {
	s.mu.Lock()
	s.err = ""
	s.mu.Unlock()
}

func (s *Store) Tray() *reaction.Tray {
	return &s.tray
}

func (s *Store) GetPostByID(id string) (*models.Post, bool) {
	return thread.FindByID(s.Posts(), id)
}

// GetAncestors возвращает цепочку от поста id до корня.
func (s *Store) GetAncestors(id string) []*models.Post {
	return thread.GatherAncestorChain(id, s.FlattenedPosts())
}

func (s *Store) GetDescendants(id string) []*models.Post {
	return thread.GatherDescendants(id, s.FlattenedPosts())
}

// track выставляет loading и error вокруг операции и пишет метрики. Ошибка
// сбрасывается только операцией, начатой без других незавершенных операций,
// поэтому успех параллельной операции не стирает чужую ошибку.
func (s *Store) track(op string, fn func() error) error {
	s.mu.Lock()
	if s.loading == 0 {
		s.err = ""
	}
	s.loading++
	s.mu.Unlock()

	err := fn()

	s.mu.Lock()
	s.loading--
	if err != nil {
		s.err = models.UserMessage(err)
	}
	s.mu.Unlock()

	metrics.Operations.WithLabelValues(op, metrics.Result(err)).Inc()
	if err != nil {
		s.logger.Warn("operation failed", "op", op, "error", err)
	}
	return err
}

// mutate применяет fn к текущему лесу под блокировкой.
func (s *Store) mutate(fn func(forest []*models.Post) []*models.Post) {
	s.mu.Lock()
	s.posts = fn(s.posts)
	s.mu.Unlock()
}

// upsert заменяет пост с тем же id или вставляет новый.
func (s *Store) upsert(post *models.Post) {
	s.mutate(func(forest []*models.Post) []*models.Post {
		if out, ok := thread.Replace(forest, post.ID, post); ok {
			return out
		}
		return thread.Insert(forest, post)
	})
}

// requireViewer возвращает пользователя и контекст с ним для API.
func (s *Store) requireViewer(ctx context.Context) (models.User, context.Context, error) {
	viewer := s.Viewer()
	if viewer == nil || viewer.ID == "" {
		return models.User{}, ctx, models.ErrUnauthenticated
	}
	return *viewer, auth.WithViewer(ctx, *viewer), nil
}

// lookup ищет пост в локальном состоянии.
func (s *Store) lookup(id string) (*models.Post, error) {
	post, ok := s.GetPostByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	return post, nil
}

func (s *Store) localID() string {
	return models.LocalIDPrefix + s.newID()
}

// LoadPosts загружает страницу постов и заменяет ею лес. Локальные посты,
// чей ClientKey есть в ответе, считаются подтвержденными и убираются;
// остальные локальные посты сохраняются. Одновременные загрузки с одним
// фильтром выполняются одним запросом.
func (s *Store) LoadPosts(ctx context.Context, filter models.PostFilter) error {
	if filter.Limit == 0 {
		filter.Limit = s.pageSize
	}
	if viewer := s.Viewer(); viewer != nil {
		ctx = auth.WithViewer(ctx, *viewer)
	}

	return s.track("load_posts", func() error {
		key := fmt.Sprintf("%s|%s|%d|%d", filter.UserID, lo.FromPtr(filter.ParentID), filter.Limit, filter.Offset)
		v, err, shared := s.loads.Do(key, func() (any, error) {
			return s.api.FetchPosts(ctx, filter)
		})
		if err != nil {
			return err
		}
		if shared {
			s.logger.Debug("load collapsed", "key", key)
		}
		s.merge(v.([]*models.Post))
		return nil
	})
}

// merge заменяет лес загруженными постами, сохраняя неподтвержденные
// локальные посты. Локальный ретвит уступает загруженному ретвиту того же
// оригинала от того же пользователя. Ответы на подтвержденный локальный пост переносятся на
// его серверную версию.
func (s *Store) merge(fetched []*models.Post) {
	byKey := make(map[string]string, len(fetched))
	for _, p := range fetched {
		if p.ClientKey != "" {
			byKey[p.ClientKey] = p.ID
		}
	}
	forest := thread.Nest(fetched)

	s.mu.Lock()
	defer s.mu.Unlock()

	remap := make(map[string]string)
	var replaced []string
	for _, local := range thread.FlattenPosts(s.posts) {
		if !local.IsLocal() {
			continue
		}
		if serverID, ok := byKey[local.ClientKey]; ok && local.ClientKey != "" {
			remap[local.ID] = serverID
			metrics.Superseded.Inc()
			continue
		}
		if local.IsRetweet() {
			if existing := retweet.FindExisting(local.User.ID, local.RetweetOf.ID, fetched); existing != nil {
				remap[local.ID] = existing.ID
				replaced = append(replaced, local.ID)
				metrics.Superseded.Inc()
				continue
			}
		}
		cp := *local
		cp.Replies = nil
		if cp.ParentID != nil {
			if serverID, ok := remap[*cp.ParentID]; ok {
				cp.ParentID = &serverID
			}
		}
		forest = thread.Insert(forest, &cp)
	}
	s.posts = forest
	s.pending = settlePending(s.pending, byKey, remap)
	for _, id := range replaced {
		s.pending = withoutPending(s.pending, id)
	}
}
