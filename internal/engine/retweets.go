package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ButyrinIA/thread/internal/metrics"
	"github.com/ButyrinIA/thread/internal/models"
	"github.com/ButyrinIA/thread/internal/retweet"
	"github.com/ButyrinIA/thread/internal/thread"
)

type RetweetResult struct {
	Plan retweet.Plan
	// Post - созданный или измененный ретвит, nil после отмены.
	Post *models.Post
	// RedirectTo - пост, на который нужно перевести экран, если зритель
	// смотрел на отмененный ретвит.
	RedirectTo string
}

// RetweetPost выполняет репост, цитату или отмену для поста targetID.
// viewingID - пост, открытый сейчас на экране.
func (s *Store) RetweetPost(ctx context.Context, targetID string, action retweet.Action, quoteText, viewingID string) (RetweetResult, error) {
	var res RetweetResult
	err := s.track("retweet", func() error {
		viewer, ctx, err := s.requireViewer(ctx)
		if err != nil {
			return err
		}
		target, err := s.lookup(targetID)
		if err != nil {
			return err
		}

		state := retweet.Resolve(viewer, target, s.FlattenedPosts(), viewingID)
		plan, err := state.Plan(action, quoteText)
		if err != nil {
			return err
		}
		res.Plan = plan
		res.RedirectTo = plan.RedirectTo

		switch plan.Kind {
		case retweet.PlanCreate:
			if models.IsLocalID(plan.OriginalID) {
				return fmt.Errorf("%w: post is still being published", models.ErrValidation)
			}
			res.Post, err = s.createRetweet(ctx, viewer, plan)
			return err
		case retweet.PlanUpdate:
			res.Post, err = s.update(ctx, plan.Existing.ID, models.PostPatch{Sections: plan.Sections})
			return err
		case retweet.PlanDelete:
			if !plan.Existing.IsLocal() {
				if _, err := s.api.DeletePost(ctx, plan.Existing.ID); err != nil {
					return err
				}
			}
			s.removeLocal(plan.Existing)
			return nil
		default:
			return fmt.Errorf("unexpected plan %s", plan.Kind)
		}
	})
	return res, err
}

func (s *Store) createRetweet(ctx context.Context, viewer models.User, plan retweet.Plan) (*models.Post, error) {
	req := models.CreateRetweetRequest{
		OriginalPostID: plan.OriginalID,
		QuoteText:      plan.QuoteText,
		ClientKey:      s.newID(),
	}

	rt, err := s.api.CreateRetweet(ctx, req)
	switch {
	case err == nil:
		return s.claimRetweet(viewer.ID, plan.OriginalID, rt, nil), nil
	case !errors.Is(err, models.ErrNetwork):
		return nil, err
	}

	local := retweet.LocalRetweet(viewer, plan, s.localID(), req.ClientKey, s.now())
	got := s.claimRetweet(viewer.ID, plan.OriginalID, local, &pendingWrite{localID: local.ID, retweet: &req})
	if got.ID != local.ID {
		s.logger.Debug("retweet created concurrently, local retweet dropped", "post_id", got.ID, "original_id", plan.OriginalID)
		return got, nil
	}
	metrics.Fallbacks.WithLabelValues("retweet").Inc()
	s.logger.Warn("retweet failed, inserted local retweet", "local_id", local.ID, "original_id", plan.OriginalID, "error", err)
	return local, nil
}

// claimRetweet вставляет ретвит rt, если у зрителя еще нет ретвита оригинала.
// Проверка и вставка идут под одной блокировкой: ретвит, появившийся, пока шел
// запрос, остается единственным и возвращается вместо rt. Серверный ответ
// заменяет ожидающий локальный ретвит. w добавляется в очередь только вместе
// с rt.
func (s *Store) claimRetweet(viewerID, originalID string, rt *models.Post, w *pendingWrite) *models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := retweet.FindExisting(viewerID, originalID, thread.FlattenPosts(s.posts))
	switch {
	case existing == nil:
		s.posts = thread.Insert(s.posts, rt)
		if w != nil {
			s.pending = append(s.pending, *w)
		}
		s.posts = withCounts(s.posts, originalID, nil, rt)
		return rt
	case existing.ID == rt.ID, existing.IsLocal() && !rt.IsLocal():
		s.posts, _ = thread.Replace(s.posts, existing.ID, rt)
		s.pending = withoutPending(s.pending, existing.ID)
		s.posts = withCounts(s.posts, originalID, existing, rt)
		return rt
	default:
		return existing
	}
}
