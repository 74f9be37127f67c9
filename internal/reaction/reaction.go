// Package reaction реализует правила эмодзи-реакций: у зрителя не более одной
// активной реакции на пост, повторное нажатие той же реакции снимает ее,
// выбор другой переносит голос.
package reaction

import (
	"fmt"
	"slices"
	"time"

	"github.com/ButyrinIA/thread/internal/models"
)

// DefaultEmojis - реакции, которые зритель может выбрать в трее.
var DefaultEmojis = []string{"🚀", "❤️", "😂"}

// Selectable сообщает, может ли зритель поставить emoji на пост: из
// стандартного набора или уже присутствующую на посте.
func Selectable(post *models.Post, emoji string) bool {
	return slices.Contains(DefaultEmojis, emoji) || post.Reactions.Has(emoji)
}

// Check отклоняет реакцию до сетевого запроса.
func Check(post *models.Post, viewer *models.User, emoji string) error {
	if viewer == nil || viewer.ID == "" {
		return models.ErrUnauthenticated
	}
	if post.IsLocal() {
		return fmt.Errorf("%w: post is still being published", models.ErrValidation)
	}
	if emoji == "" || !Selectable(post, emoji) {
		return fmt.Errorf("%w: reaction %q is not available", models.ErrValidation, emoji)
	}
	return nil
}

// Toggle вычисляет новое состояние реакций поста после нажатия emoji.
func Toggle(post *models.Post, emoji string, now time.Time) models.PostPatch {
	reactions := post.Reactions
	prev := post.UserReaction
	next := emoji

	if prev != "" {
		reactions = reactions.Add(prev, -1, now)
	}
	if prev == emoji {
		next = ""
	} else {
		reactions = reactions.Add(emoji, 1, now)
	}

	return models.PostPatch{
		Reactions:     &reactions,
		UserReaction:  &next,
		ReactionCount: models.IntPtr(reactions.Total()),
	}
}

// Settle применяет ответ сервера: updatedCount - итоговое число реакций emoji.
func Settle(post *models.Post, emoji string, updatedCount int, now time.Time) models.PostPatch {
	reactions := post.Reactions.Set(emoji, max(0, updatedCount), now)
	user := post.UserReaction
	if user != "" && !reactions.Has(user) {
		user = ""
	}
	return models.PostPatch{
		Reactions:     &reactions,
		UserReaction:  &user,
		ReactionCount: models.IntPtr(reactions.Total()),
	}
}
