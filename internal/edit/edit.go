// Package edit готовит секции поста к редактированию и собирает их обратно.
//
// Секции-одиночки (изображение, видео, сделка, NFT, опрос) показываются в
// редакторе один раз - по первому вхождению, текстовые блоки TEXT_ONLY - каждый
// отдельно по id. Нетекстовые данные после публикации не меняются.
package edit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ButyrinIA/thread/internal/models"
)

// Field - одно поле редактора.
type Field struct {
	Key      string
	Type     models.SectionType
	Text     string
	Editable bool
	// Section - первая секция, которую представляет поле.
	Section models.Section
}

func fieldKey(sec models.Section, index int) string {
	if sec.Type() != models.SectionTextOnly {
		return string(sec.Type())
	}
	if sec.ID == "" {
		return "text#" + strconv.Itoa(index)
	}
	return "text:" + sec.ID
}

// Dedupe возвращает поля редактора в порядке первого появления секций.
func Dedupe(sections []models.Section) []Field {
	seen := make(map[string]struct{}, len(sections))
	fields := make([]Field, 0, len(sections))
	for i, sec := range sections {
		key := fieldKey(sec, i)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		text, editable := sec.Text()
		fields = append(fields, Field{
			Key:      key,
			Type:     sec.Type(),
			Text:     text,
			Editable: editable,
			Section:  sec,
		})
	}
	return fields
}

// Draft - состояние редактирования одного поста.
type Draft struct {
	postID   string
	original []models.Section
	fields   []Field
	edits    map[string]string
}

func NewDraft(post *models.Post) *Draft {
	return &Draft{
		postID:   post.ID,
		original: append([]models.Section(nil), post.Sections...),
		fields:   Dedupe(post.Sections),
		edits:    make(map[string]string),
	}
}

func (d *Draft) PostID() string {
	return d.postID
}

// Fields возвращает поля с учетом уже внесенных правок.
func (d *Draft) Fields() []Field {
	out := make([]Field, len(d.fields))
	for i, f := range d.fields {
		if text, ok := d.edits[f.Key]; ok {
			f.Text = text
		}
		out[i] = f
	}
	return out
}

// SetText меняет текст поля key.
func (d *Draft) SetText(key, text string) error {
	for _, f := range d.fields {
		if f.Key != key {
			continue
		}
		if !f.Editable {
			return fmt.Errorf("%w: %s section has no editable text", models.ErrValidation, f.Type)
		}
		d.edits[key] = text
		return nil
	}
	return fmt.Errorf("%w: unknown field %q", models.ErrValidation, key)
}

func (d *Draft) Dirty() bool {
	for _, f := range d.fields {
		if text, ok := d.edits[f.Key]; ok && text != f.Text {
			return true
		}
	}
	return false
}

// Sections переносит правки обратно в полный список секций. Правка поля-одиночки
// применяется ко всем секциям этого типа, правка TEXT_ONLY - только к секции с
// тем же id. Порядок и нетекстовые данные сохраняются.
func (d *Draft) Sections() []models.Section {
	out := make([]models.Section, len(d.original))
	for i, sec := range d.original {
		text, ok := d.edits[fieldKey(sec, i)]
		if !ok {
			out[i] = sec
			continue
		}
		out[i] = sec.WithText(text)
	}
	return out
}

// Save возвращает секции для сохранения: пустые TEXT_ONLY отбрасываются. Если
// не остается ни одной секции, сохранение отклоняется.
func (d *Draft) Save() ([]models.Section, error) {
	return FilterEmpty(d.Sections())
}

func FilterEmpty(sections []models.Section) ([]models.Section, error) {
	out := make([]models.Section, 0, len(sections))
	for _, sec := range sections {
		if sec.Type() == models.SectionTextOnly {
			if text, _ := sec.Text(); strings.TrimSpace(text) == "" {
				continue
			}
		}
		out = append(out, sec)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: post cannot be empty", models.ErrValidation)
	}
	return out, nil
}
