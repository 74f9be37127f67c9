package thread

import (
	"slices"

	"github.com/ButyrinIA/thread/internal/models"
)

// Все операции копируют только путь от корня до измененного узла,
// остальные ветви остаются теми же указателями.

// InsertRoot добавляет корневой пост в конец леса.
func InsertRoot(forest []*models.Post, post *models.Post) []*models.Post {
	out := make([]*models.Post, 0, len(forest)+1)
	out = append(out, forest...)
	return append(out, post)
}

// InsertReply добавляет ответ в Replies поста parentID. Возвращает false, если
// родитель не найден; в этом случае лес возвращается без изменений.
func InsertReply(forest []*models.Post, parentID string, reply *models.Post) ([]*models.Post, bool) {
	return modify(forest, parentID, func(parent *models.Post) *models.Post {
		cp := *parent
		cp.Replies = make([]*models.Post, 0, len(parent.Replies)+1)
		cp.Replies = append(cp.Replies, parent.Replies...)
		cp.Replies = append(cp.Replies, reply)
		return &cp
	})
}

// Insert вставляет пост как корень или как ответ, в зависимости от ParentID.
// Ответ на пост, которого нет в лесу, становится корнем.
func Insert(forest []*models.Post, post *models.Post) []*models.Post {
	if post.ParentID != nil {
		if out, ok := InsertReply(forest, *post.ParentID, post); ok {
			return out
		}
	}
	return InsertRoot(forest, post)
}

// Remove удаляет пост вместе со всем поддеревом ответов.
func Remove(forest []*models.Post, id string) ([]*models.Post, bool) {
	return modify(forest, id, func(*models.Post) *models.Post { return nil })
}

// Update применяет патч к посту id.
func Update(forest []*models.Post, id string, patch models.PostPatch) ([]*models.Post, bool) {
	return modify(forest, id, func(p *models.Post) *models.Post {
		return p.Apply(patch)
	})
}

// Replace заменяет пост id на next, сохраняя уже загруженные ответы, если у
// next они не заданы.
func Replace(forest []*models.Post, id string, next *models.Post) ([]*models.Post, bool) {
	return modify(forest, id, func(p *models.Post) *models.Post {
		if next.Replies == nil && p.Replies != nil {
			cp := *next
			cp.Replies = p.Replies
			return &cp
		}
		return next
	})
}

// modify находит пост по id и заменяет его на fn(post); nil удаляет узел.
// Сначала проверяется текущий уровень, затем ответы.
func modify(posts []*models.Post, id string, fn func(*models.Post) *models.Post) ([]*models.Post, bool) {
	for i, p := range posts {
		if p.ID != id {
			continue
		}
		next := fn(p)
		if next == nil {
			return slices.Delete(slices.Clone(posts), i, i+1), true
		}
		out := slices.Clone(posts)
		out[i] = next
		return out, true
	}

	for i, p := range posts {
		if len(p.Replies) == 0 {
			continue
		}
		replies, ok := modify(p.Replies, id, fn)
		if !ok {
			continue
		}
		cp := *p
		cp.Replies = replies
		out := slices.Clone(posts)
		out[i] = &cp
		return out, true
	}
	return posts, false
}
