// Package retweet решает, что означает нажатие "репост", "цитата" или
// "отменить" для конкретного пользователя и поста.
//
// Состояние не хранится, а выводится из плоского набора постов: является ли
// целевой пост ретвитом, есть ли у пользователя ретвит оригинала, смотрит ли
// пользователь на собственную обертку ретвита.
package retweet

import (
	"fmt"
	"strings"
	"time"

	"github.com/ButyrinIA/thread/internal/models"
	"github.com/samber/lo"
)

type Action string

const (
	ActionRepost Action = "repost"
	ActionQuote  Action = "quote"
	ActionUndo   Action = "undo"
)

type PlanKind int

const (
	PlanCreate PlanKind = iota + 1
	PlanUpdate
	PlanDelete
)

func (k PlanKind) String() string {
	switch k {
	case PlanCreate:
		return "create"
	case PlanUpdate:
		return "update"
	case PlanDelete:
		return "delete"
	default:
		return fmt.Sprintf("PlanKind(%d)", int(k))
	}
}

// State - результат трех проверок по плоскому набору постов.
type State struct {
	Viewer models.User
	Target *models.Post
	// Original - пост, который ретвитится. Если Target сам ретвит, это его оригинал.
	Original   *models.Post
	OriginalID string
	// Existing - уже существующий ретвит оригинала от Viewer.
	Existing *models.Post
	// ViewingOwnRetweet - пользователь сейчас смотрит на свою обертку ретвита.
	ViewingOwnRetweet bool
}

// Resolve вычисляет состояние для нажатия на target. viewingID - id поста,
// открытого на экране, может быть пустым.
func Resolve(viewer models.User, target *models.Post, all []*models.Post, viewingID string) State {
	s := State{Viewer: viewer, Target: target, Original: target, OriginalID: target.ID}

	if target.RetweetOf != nil {
		s.OriginalID = target.RetweetOf.ID
		s.Original = target.RetweetOf
		if full, ok := lo.Find(all, func(p *models.Post) bool { return p.ID == s.OriginalID }); ok {
			s.Original = full
		}
	}

	s.Existing = FindExisting(viewer.ID, s.OriginalID, all)

	if viewingID != "" {
		if viewing, ok := lo.Find(all, func(p *models.Post) bool { return p.ID == viewingID }); ok {
			s.ViewingOwnRetweet = viewing.RetweetOf != nil &&
				viewing.RetweetOf.ID == s.OriginalID &&
				viewing.User.ID == viewer.ID
		}
	}
	return s
}

// FindExisting ищет ретвит originalID, сделанный userID.
func FindExisting(userID, originalID string, all []*models.Post) *models.Post {
	existing, ok := lo.Find(all, func(p *models.Post) bool {
		return p.RetweetOf != nil && p.RetweetOf.ID == originalID && p.User.ID == userID
	})
	if !ok {
		return nil
	}
	return existing
}

func (s State) CanRepost() bool {
	return s.Existing == nil
}

func (s State) CanQuote(text string) bool {
	return strings.TrimSpace(text) != ""
}

func (s State) CanUndo() bool {
	return s.Existing != nil
}

// Plan описывает операцию, которую нужно выполнить над хранилищем.
type Plan struct {
	Kind       PlanKind
	Action     Action
	OriginalID string
	// QuoteText - текст цитаты для создания, nil для простого репоста.
	QuoteText *string
	// Existing - ретвит, который обновляется или удаляется.
	Existing *models.Post
	// Sections - новые секции для обновления цитаты.
	Sections []models.Section
	// RedirectTo - id поста, на который нужно перевести экран после отмены.
	RedirectTo string
}

// Plan проверяет доступность действия и строит план.
func (s State) Plan(action Action, quoteText string) (Plan, error) {
	p := Plan{Action: action, OriginalID: s.OriginalID}

	switch action {
	case ActionRepost:
		if !s.CanRepost() {
			return Plan{}, fmt.Errorf("%w: already reposted", models.ErrValidation)
		}
		p.Kind = PlanCreate

	case ActionQuote:
		if !s.CanQuote(quoteText) {
			return Plan{}, fmt.Errorf("%w: quote text is required", models.ErrValidation)
		}
		text := strings.TrimSpace(quoteText)
		if s.Existing != nil {
			p.Kind = PlanUpdate
			p.Existing = s.Existing
			p.Sections = []models.Section{models.NewTextSection(quoteSectionID(s.Existing), text)}
			break
		}
		p.Kind = PlanCreate
		p.QuoteText = &text

	case ActionUndo:
		if !s.CanUndo() {
			return Plan{}, fmt.Errorf("%w: no retweet to undo", models.ErrNotFound)
		}
		p.Kind = PlanDelete
		p.Existing = s.Existing
		if s.ViewingOwnRetweet {
			p.RedirectTo = s.OriginalID
		}

	default:
		return Plan{}, fmt.Errorf("%w: unknown action %q", models.ErrValidation, action)
	}
	return p, nil
}

// quoteSectionID сохраняет id первой текстовой секции существующей цитаты.
func quoteSectionID(existing *models.Post) string {
	for _, sec := range existing.Sections {
		if sec.Type() == models.SectionTextOnly {
			return sec.ID
		}
	}
	return ""
}

// LocalRetweet строит локальный ретвит для случая, когда запрос не прошел.
// Оригинал задается заглушкой только с id.
func LocalRetweet(viewer models.User, plan Plan, id, clientKey string, now time.Time) *models.Post {
	p := &models.Post{
		ID:        id,
		User:      viewer,
		Sections:  []models.Section{},
		CreatedAt: now,
		RetweetOf: &models.Post{ID: plan.OriginalID},
		ClientKey: clientKey,
	}
	if plan.QuoteText != nil {
		p.Sections = []models.Section{models.NewTextSection("", *plan.QuoteText)}
	}
	return p
}

// CountDelta возвращает изменение счетчиков оригинала при переходе ретвита
// пользователя из состояния before в after (nil - ретвита нет).
func CountDelta(before, after *models.Post) (retweets, quotes int) {
	kind := func(p *models.Post) (int, int) {
		switch {
		case p == nil:
			return 0, 0
		case p.IsQuote():
			return 0, 1
		default:
			return 1, 0
		}
	}
	br, bq := kind(before)
	ar, aq := kind(after)
	return ar - br, aq - bq
}

// ApplyCounts возвращает патч счетчиков оригинала, не опуская их ниже нуля.
func ApplyCounts(original *models.Post, retweets, quotes int) models.PostPatch {
	return models.PostPatch{
		RetweetCount: models.IntPtr(max(0, original.RetweetCount+retweets)),
		QuoteCount:   models.IntPtr(max(0, original.QuoteCount+quotes)),
	}
}
