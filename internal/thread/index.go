// Package thread содержит чистые функции обхода и изменения дерева постов.
//
// Лес постов передается как []*models.Post с вложенными Replies, плоский набор
// получается через FlattenPosts. Функции не изменяют входные данные.
package thread

import "github.com/ButyrinIA/thread/internal/models"

// Index - арена постов по id и список смежности parentID -> childIDs.
type Index struct {
	byID     map[string]*models.Post
	children map[string][]string
	order    []string
}

// NewIndex строит индекс по плоскому набору постов. При повторяющихся id
// остается первый пост.
func NewIndex(all []*models.Post) *Index {
	ix := &Index{
		byID:     make(map[string]*models.Post, len(all)),
		children: make(map[string][]string),
		order:    make([]string, 0, len(all)),
	}
	for _, p := range all {
		if p == nil {
			continue
		}
		if _, dup := ix.byID[p.ID]; dup {
			continue
		}
		ix.byID[p.ID] = p
		ix.order = append(ix.order, p.ID)
		if p.ParentID != nil {
			ix.children[*p.ParentID] = append(ix.children[*p.ParentID], p.ID)
		}
	}
	return ix
}

func (ix *Index) Get(id string) (*models.Post, bool) {
	p, ok := ix.byID[id]
	return p, ok
}

func (ix *Index) Len() int {
	return len(ix.order)
}

// Children возвращает прямых потомков в исходном порядке.
func (ix *Index) Children(id string) []*models.Post {
	ids := ix.children[id]
	out := make([]*models.Post, 0, len(ids))
	for _, cid := range ids {
		out = append(out, ix.byID[cid])
	}
	return out
}

// Ancestors возвращает цепочку от поста id к самому раннему предку.
// Первый элемент - сам пост. Обход останавливается на неизвестном parentId
// или на повторном посещении (цикл).
func (ix *Index) Ancestors(id string) []*models.Post {
	p, ok := ix.byID[id]
	if !ok {
		return []*models.Post{}
	}

	chain := []*models.Post{p}
	visited := map[string]struct{}{p.ID: {}}
	for p.ParentID != nil {
		parent, ok := ix.byID[*p.ParentID]
		if !ok {
			break
		}
		if _, seen := visited[parent.ID]; seen {
			break
		}
		visited[parent.ID] = struct{}{}
		chain = append(chain, parent)
		p = parent
	}
	return chain
}

// Root возвращает корень треда, к которому относится пост.
func (ix *Index) Root(id string) (*models.Post, bool) {
	chain := ix.Ancestors(id)
	if len(chain) == 0 {
		return nil, false
	}
	return chain[len(chain)-1], true
}

// Descendants возвращает всех транзитивных потомков: родитель раньше детей,
// братья в исходном порядке. Сам пост в результат не входит.
func (ix *Index) Descendants(id string) []*models.Post {
	out := []*models.Post{}
	visited := map[string]struct{}{id: {}}

	var walk func(parentID string)
	walk = func(parentID string) {
		for _, cid := range ix.children[parentID] {
			if _, seen := visited[cid]; seen {
				continue
			}
			visited[cid] = struct{}{}
			out = append(out, ix.byID[cid])
			walk(cid)
		}
	}
	walk(id)
	return out
}

// Roots возвращает посты без родителя или с родителем вне набора.
func (ix *Index) Roots() []*models.Post {
	var roots []*models.Post
	for _, id := range ix.order {
		p := ix.byID[id]
		if p.ParentID == nil {
			roots = append(roots, p)
			continue
		}
		if _, ok := ix.byID[*p.ParentID]; !ok {
			roots = append(roots, p)
		}
	}
	return roots
}
