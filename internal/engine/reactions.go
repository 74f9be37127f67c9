package engine

import (
	"context"

	"github.com/ButyrinIA/thread/internal/metrics"
	"github.com/ButyrinIA/thread/internal/models"
	"github.com/ButyrinIA/thread/internal/reaction"
	"github.com/ButyrinIA/thread/internal/thread"
)

// ReactToPost ставит, переносит или снимает реакцию зрителя. Изменение
// применяется сразу; ответ сервера уточняет счетчик emoji, ошибка
// возвращает пост в прежнее состояние. Повторное нажатие до окончания
// cooldown игнорируется.
func (s *Store) ReactToPost(ctx context.Context, postID, emoji string) error {
	return s.track("react", func() error {
		post, err := s.lookup(postID)
		if err != nil {
			return err
		}
		if err := reaction.Check(post, s.Viewer(), emoji); err != nil {
			return err
		}
		_, ctx, err := s.requireViewer(ctx)
		if err != nil {
			return err
		}

		release, ok := s.debouncer.Acquire(postID)
		if !ok {
			metrics.Debounced.Inc()
			s.logger.Debug("reaction debounced", "post_id", postID, "emoji", emoji)
			return nil
		}
		defer release()
		s.tray.CloseIf(postID)

		s.mutate(func(forest []*models.Post) []*models.Post {
			out, _ := thread.Update(forest, postID, reaction.Toggle(post, emoji, s.now()))
			return out
		})

		count, err := s.api.AddReaction(ctx, postID, emoji)
		if err != nil {
			s.mutate(func(forest []*models.Post) []*models.Post {
				out, _ := thread.Update(forest, postID, models.PostPatch{
					Reactions:     &post.Reactions,
					UserReaction:  &post.UserReaction,
					ReactionCount: &post.ReactionCount,
				})
				return out
			})
			s.logger.Warn("reaction rolled back", "post_id", postID, "emoji", emoji, "error", err)
			return err
		}

		s.mutate(func(forest []*models.Post) []*models.Post {
			current, ok := thread.FindByID(forest, postID)
			if !ok {
				return forest
			}
			out, _ := thread.Update(forest, postID, reaction.Settle(current, emoji, count, s.now()))
			return out
		})
		return nil
	})
}

// ReactionSummary возвращает агрегированные пилюли реакций поста.
func (s *Store) ReactionSummary(postID string) (reaction.Summary, bool) {
	post, ok := s.GetPostByID(postID)
	if !ok {
		return reaction.Summary{}, false
	}
	return reaction.Summarize(post), true
}
