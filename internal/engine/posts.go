package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ButyrinIA/thread/internal/edit"
	"github.com/ButyrinIA/thread/internal/metrics"
	"github.com/ButyrinIA/thread/internal/models"
	"github.com/ButyrinIA/thread/internal/retweet"
	"github.com/ButyrinIA/thread/internal/thread"
)

// pendingWrite - создание, замененное локальным постом и ожидающее повтора.
type pendingWrite struct {
	localID string
	post    *models.CreatePostRequest
	retweet *models.CreateRetweetRequest
}

func (w pendingWrite) clientKey() string {
	if w.post != nil {
		return w.post.ClientKey
	}
	return w.retweet.ClientKey
}

// settlePending убирает подтвержденные записи и переводит ссылки на
// подтвержденные локальные посты на серверные id.
func settlePending(pending []pendingWrite, byKey map[string]string, remap map[string]string) []pendingWrite {
	out := pending[:0:0]
	for _, w := range pending {
		if _, ok := byKey[w.clientKey()]; ok {
			continue
		}
		if w.post != nil && w.post.ParentID != nil {
			if serverID, ok := remap[*w.post.ParentID]; ok {
				req := *w.post
				req.ParentID = &serverID
				w.post = &req
			}
		}
		out = append(out, w)
	}
	return out
}

// Pending возвращает число локальных постов, ожидающих повтора.
func (s *Store) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

func (s *Store) addPending(w pendingWrite) {
	s.mu.Lock()
	s.pending = append(s.pending, w)
	s.mu.Unlock()
}

func (s *Store) dropPendingByID(localID string) {
	s.mu.Lock()
	s.pending = withoutPending(s.pending, localID)
	s.mu.Unlock()
}

func withoutPending(pending []pendingWrite, localID string) []pendingWrite {
	out := pending[:0:0]
	for _, w := range pending {
		if w.localID != localID {
			out = append(out, w)
		}
	}
	return out
}

func checkOwner(viewer models.User, post *models.Post) error {
	if post.User.ID != viewer.ID {
		return fmt.Errorf("%w: post %s belongs to another user", models.ErrPermission, post.ID)
	}
	return nil
}

// AddPost создает корневой пост (parentID == nil) или ответ. При сетевом
// сбое в лес вставляется локальный пост, и ошибка не возвращается.
func (s *Store) AddPost(ctx context.Context, parentID *string, sections []models.Section) (*models.Post, error) {
	var created *models.Post
	err := s.track("add_post", func() error {
		viewer, ctx, err := s.requireViewer(ctx)
		if err != nil {
			return err
		}
		req := models.CreatePostRequest{ParentID: parentID, Sections: sections, ClientKey: s.newID()}
		if err := models.Validate(req); err != nil {
			return err
		}
		if parentID != nil {
			if _, err := s.lookup(*parentID); err != nil {
				return err
			}
		}

		// ответ на неопубликованный пост ждет публикации родителя
		if parentID == nil || !models.IsLocalID(*parentID) {
			post, err := s.api.CreatePost(ctx, req)
			switch {
			case err == nil:
				s.upsert(post)
				created = post
				return nil
			case !errors.Is(err, models.ErrNetwork):
				return err
			}
			s.logger.Warn("create failed, inserting local post", "client_key", req.ClientKey, "error", err)
		}

		local := &models.Post{
			ID:        s.localID(),
			ParentID:  parentID,
			User:      viewer,
			Sections:  sections,
			CreatedAt: s.now(),
			ClientKey: req.ClientKey,
		}
		s.mutate(func(forest []*models.Post) []*models.Post { return thread.Insert(forest, local) })
		s.addPending(pendingWrite{localID: local.ID, post: &req})
		metrics.Fallbacks.WithLabelValues("add_post").Inc()
		s.logger.Debug("local post inserted", "local_id", local.ID, "client_key", req.ClientKey)
		created = local
		return nil
	})
	return created, err
}

// RemovePost удаляет пост вместе с ответами. Удалять можно только свои посты.
func (s *Store) RemovePost(ctx context.Context, id string) error {
	return s.track("remove_post", func() error {
		viewer, ctx, err := s.requireViewer(ctx)
		if err != nil {
			return err
		}
		post, err := s.lookup(id)
		if err != nil {
			return err
		}
		if err := checkOwner(viewer, post); err != nil {
			return err
		}

		if !post.IsLocal() {
			if _, err := s.api.DeletePost(ctx, id); err != nil {
				return err
			}
		}
		s.removeLocal(post)
		return nil
	})
}

// removeLocal убирает пост из леса и откатывает счетчики оригинала ретвита.
func (s *Store) removeLocal(post *models.Post) {
	for _, p := range thread.FlattenPosts([]*models.Post{post}) {
		s.debouncer.Forget(p.ID)
		s.tray.CloseIf(p.ID)
		if p.IsLocal() {
			s.dropPendingByID(p.ID)
		}
	}
	s.mutate(func(forest []*models.Post) []*models.Post {
		out, _ := thread.Remove(forest, post.ID)
		return out
	})
	if post.IsRetweet() {
		s.mirrorCounts(post.RetweetOf.ID, post, nil)
	}
}

// UpdatePost отправляет патч и вливает ответ сервера. Менять секции можно
// только у своих постов; локальный пост меняется без запроса.
func (s *Store) UpdatePost(ctx context.Context, id string, patch models.PostPatch) (*models.Post, error) {
	var updated *models.Post
	err := s.track("update_post", func() error {
		post, err := s.update(ctx, id, patch)
		updated = post
		return err
	})
	return updated, err
}

func (s *Store) update(ctx context.Context, id string, patch models.PostPatch) (*models.Post, error) {
	viewer, ctx, err := s.requireViewer(ctx)
	if err != nil {
		return nil, err
	}
	post, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if patch.Sections != nil {
		if err := checkOwner(viewer, post); err != nil {
			return nil, err
		}
		if len(patch.Sections) == 0 && !post.IsRetweet() {
			return nil, fmt.Errorf("%w: post cannot be empty", models.ErrValidation)
		}
	}

	var next *models.Post
	if post.IsLocal() {
		next = post.Apply(patch)
		s.rewritePending(id, patch.Sections)
	} else {
		next, err = s.api.UpdatePost(ctx, id, patch)
		if err != nil {
			return nil, err
		}
	}

	s.mutate(func(forest []*models.Post) []*models.Post {
		out, _ := thread.Replace(forest, id, next)
		return out
	})
	if post.IsRetweet() {
		s.mirrorCounts(post.RetweetOf.ID, post, next)
	}
	return next, nil
}

// rewritePending переносит правку локального поста в ожидающий запрос.
func (s *Store) rewritePending(localID string, sections []models.Section) {
	if sections == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.pending {
		if w.localID != localID {
			continue
		}
		switch {
		case w.post != nil:
			req := *w.post
			req.Sections = sections
			s.pending[i].post = &req
		case w.retweet != nil:
			req := *w.retweet
			if text, ok := firstText(sections); ok {
				req.QuoteText = &text
			}
			s.pending[i].retweet = &req
		}
	}
}

func firstText(sections []models.Section) (string, bool) {
	for _, sec := range sections {
		if sec.Type() == models.SectionTextOnly {
			return sec.Text()
		}
	}
	return "", false
}

// EditPost сохраняет черновик редактирования. Пустой результат отклоняется
// без запроса.
func (s *Store) EditPost(ctx context.Context, draft *edit.Draft) (*models.Post, error) {
	var updated *models.Post
	err := s.track("edit_post", func() error {
		sections, err := draft.Save()
		if err != nil {
			return err
		}
		updated, err = s.update(ctx, draft.PostID(), models.PostPatch{Sections: sections})
		return err
	})
	return updated, err
}

// mirrorCounts повторяет локально изменение счетчиков оригинала ретвита.
func (s *Store) mirrorCounts(originalID string, before, after *models.Post) {
	s.mutate(func(forest []*models.Post) []*models.Post {
		return withCounts(forest, originalID, before, after)
	})
}

func withCounts(forest []*models.Post, originalID string, before, after *models.Post) []*models.Post {
	retweets, quotes := retweet.CountDelta(before, after)
	if retweets == 0 && quotes == 0 {
		return forest
	}
	original, ok := thread.FindByID(forest, originalID)
	if !ok {
		return forest
	}
	out, _ := thread.Update(forest, originalID, retweet.ApplyCounts(original, retweets, quotes))
	return out
}

// RetryPending повторяет создания, замененные локальными постами, с тем же
// ClientKey. Подтвержденный локальный пост заменяется серверным, его ответы
// сохраняются. Возвращает число подтвержденных постов; записи, снова
// упавшие по сети, остаются в очереди.
func (s *Store) RetryPending(ctx context.Context) (int, error) {
	done := 0
	err := s.track("retry_pending", func() error {
		_, ctx, err := s.requireViewer(ctx)
		if err != nil {
			return err
		}

		s.mu.RLock()
		queue := append([]pendingWrite(nil), s.pending...)
		s.mu.RUnlock()

		remap := make(map[string]string)
		var errs []error
		for _, w := range queue {
			post, err := s.retry(ctx, w, remap)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			remap[w.localID] = post.ID
			s.dropPendingByID(w.localID)
			s.promote(w.localID, post)
			done++
		}
		return errors.Join(errs...)
	})
	return done, err
}

// promote заменяет локальный пост серверным и переводит на него ответы.
// Если серверный пост уже есть в лесу, локальный убирается, а его ответы
// переходят к уже загруженному.
func (s *Store) promote(localID string, post *models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()

	local, ok := thread.FindByID(s.posts, localID)
	if !ok {
		if _, loaded := thread.FindByID(s.posts, post.ID); !loaded {
			s.posts = thread.Insert(s.posts, post)
		}
		return
	}

	var out []*models.Post
	if _, loaded := thread.FindByID(s.posts, post.ID); loaded {
		out, _ = thread.Remove(s.posts, localID)
		for _, child := range local.Replies {
			cp := *child
			cp.ParentID = &post.ID
			out = thread.Insert(out, &cp)
		}
	} else {
		out, _ = thread.Replace(s.posts, localID, post)
		for _, child := range local.Replies {
			cp := *child
			cp.ParentID = &post.ID
			out, _ = thread.Replace(out, child.ID, &cp)
		}
	}
	s.posts = out
	s.pending = settlePending(s.pending, nil, map[string]string{localID: post.ID})
	metrics.Superseded.Inc()
}

func (s *Store) retry(ctx context.Context, w pendingWrite, remap map[string]string) (*models.Post, error) {
	if w.retweet != nil {
		return s.api.CreateRetweet(ctx, *w.retweet)
	}
	req := *w.post
	if req.ParentID != nil {
		if serverID, ok := remap[*req.ParentID]; ok {
			req.ParentID = &serverID
		} else if models.IsLocalID(*req.ParentID) {
			return nil, fmt.Errorf("%w: parent %s is not published yet", models.ErrNetwork, *req.ParentID)
		}
	}
	return s.api.CreatePost(ctx, req)
}
