package models

import (
	"strings"
	"time"
)

// LocalIDPrefix - префикс id постов, созданных локально и еще не подтвержденных сервером
const LocalIDPrefix = "local-"

type User struct {
	ID       string `json:"id" validate:"required"`
	Username string `json:"username"`
	Handle   string `json:"handle"`
	Avatar   string `json:"avatar,omitempty"`
	Verified bool   `json:"verified"`
}

// Post - узел треда. Replies может быть пустым, если ответы хранятся отдельно.
type Post struct {
	ID            string    `json:"id"`
	ParentID      *string   `json:"parentId"`
	User          User      `json:"user"`
	Sections      []Section `json:"sections"`
	CreatedAt     time.Time `json:"createdAt"`
	Replies       []*Post   `json:"replies,omitempty"`
	ReactionCount int       `json:"reactionCount"`
	RetweetCount  int       `json:"retweetCount"`
	QuoteCount    int       `json:"quoteCount"`
	Reactions     Reactions `json:"reactions"`
	UserReaction  string    `json:"userReaction,omitempty"`
	RetweetOf     *Post     `json:"retweetOf,omitempty"`
	ClientKey     string    `json:"clientKey,omitempty"`
}

func (p *Post) IsRoot() bool {
	return p.ParentID == nil
}

func (p *Post) IsRetweet() bool {
	return p.RetweetOf != nil
}

// IsQuote - ретвит с собственным содержимым
func (p *Post) IsQuote() bool {
	return p.RetweetOf != nil && len(p.Sections) > 0
}

// IsLocal сообщает, что пост создан оптимистично и не сверен с сервером
func (p *Post) IsLocal() bool {
	return IsLocalID(p.ID)
}

func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// Clone возвращает поверхностную копию поста с собственными срезами Replies и Sections.
func (p *Post) Clone() *Post {
	cp := *p
	if p.Replies != nil {
		cp.Replies = append([]*Post(nil), p.Replies...)
	}
	if p.Sections != nil {
		cp.Sections = append([]Section(nil), p.Sections...)
	}
	cp.Reactions = p.Reactions.clone()
	return &cp
}

// PostPatch - частичное обновление поста. nil означает "не менять".
type PostPatch struct {
	Sections      []Section  `json:"sections,omitempty"`
	ReactionCount *int       `json:"reactionCount,omitempty"`
	RetweetCount  *int       `json:"retweetCount,omitempty"`
	QuoteCount    *int       `json:"quoteCount,omitempty"`
	Reactions     *Reactions `json:"reactions,omitempty"`
	UserReaction  *string    `json:"userReaction,omitempty"`
}

// Apply выполняет поверхностное слияние патча и возвращает новый пост.
// Исходный пост не изменяется, Replies разделяются по ссылке.
func (p *Post) Apply(patch PostPatch) *Post {
	cp := *p
	if patch.Sections != nil {
		cp.Sections = append([]Section(nil), patch.Sections...)
	}
	if patch.ReactionCount != nil {
		cp.ReactionCount = *patch.ReactionCount
	}
	if patch.RetweetCount != nil {
		cp.RetweetCount = *patch.RetweetCount
	}
	if patch.QuoteCount != nil {
		cp.QuoteCount = *patch.QuoteCount
	}
	if patch.Reactions != nil {
		cp.Reactions = patch.Reactions.clone()
	}
	if patch.UserReaction != nil {
		cp.UserReaction = *patch.UserReaction
	}
	return &cp
}

func (p PostPatch) Empty() bool {
	return p.Sections == nil && p.ReactionCount == nil && p.RetweetCount == nil &&
		p.QuoteCount == nil && p.Reactions == nil && p.UserReaction == nil
}

type CreatePostRequest struct {
	ParentID  *string   `json:"parentId,omitempty"`
	Sections  []Section `json:"sections" validate:"required,min=1,dive"`
	ClientKey string    `json:"clientKey,omitempty" validate:"omitempty,max=64"`
}

type CreateRetweetRequest struct {
	OriginalPostID string  `json:"originalPostId" validate:"required"`
	QuoteText      *string `json:"quoteText,omitempty"`
	ClientKey      string  `json:"clientKey,omitempty" validate:"omitempty,max=64"`
}

type PostFilter struct {
	UserID   string  `json:"userId,omitempty"`
	ParentID *string `json:"parentId,omitempty"`
	Limit    int     `json:"limit,omitempty" validate:"gte=0,lte=500"`
	Offset   int     `json:"offset,omitempty" validate:"gte=0"`
}

func StringPtr(s string) *string {
	return &s
}

func IntPtr(i int) *int {
	return &i
}
