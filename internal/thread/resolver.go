package thread

import (
	"github.com/ButyrinIA/thread/internal/models"
	"github.com/samber/lo"
)

// FlattenPosts обходит лес в глубину (pre-order) и возвращает плоский список.
func FlattenPosts(posts []*models.Post) []*models.Post {
	out := make([]*models.Post, 0, len(posts))
	seen := make(map[*models.Post]struct{})

	var walk func([]*models.Post)
	walk = func(level []*models.Post) {
		for _, p := range level {
			if p == nil {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
			walk(p.Replies)
		}
	}
	walk(posts)
	return out
}

// GatherAncestorChain возвращает [пост, родитель, ..., корень] или пустой срез,
// если пост не найден.
func GatherAncestorChain(postID string, all []*models.Post) []*models.Post {
	return NewIndex(all).Ancestors(postID)
}

// GatherDescendants возвращает всех транзитивных потомков поста.
func GatherDescendants(postID string, all []*models.Post) []*models.Post {
	return NewIndex(all).Descendants(postID)
}

// FindByID ищет пост по id в лесу.
func FindByID(forest []*models.Post, id string) (*models.Post, bool) {
	return lo.Find(FlattenPosts(forest), func(p *models.Post) bool {
		return p.ID == id
	})
}

// Nest собирает лес из плоского списка по parentId. Вложенные Replies входных
// постов игнорируются; посты с неизвестным родителем становятся корнями.
func Nest(flat []*models.Post) []*models.Post {
	ix := NewIndex(flat)
	built := make(map[string]*models.Post, ix.Len())

	var build func(p *models.Post) *models.Post
	build = func(p *models.Post) *models.Post {
		cp := *p
		cp.Replies = nil
		built[p.ID] = &cp
		for _, child := range ix.Children(p.ID) {
			if _, done := built[child.ID]; done {
				continue
			}
			cp.Replies = append(cp.Replies, build(child))
		}
		return &cp
	}

	forest := make([]*models.Post, 0)
	for _, root := range ix.Roots() {
		forest = append(forest, build(root))
	}
	// посты, замкнутые в цикл по parentId, недостижимы из корней
	for _, id := range ix.order {
		if _, done := built[id]; !done {
			forest = append(forest, build(ix.byID[id]))
		}
	}
	return forest
}
