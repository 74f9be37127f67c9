package models

import "time"

// ReactionTally - количество реакций одним эмодзи. FirstAt нулевой, если время неизвестно.
type ReactionTally struct {
	Emoji   string    `json:"emoji"`
	Count   int       `json:"count"`
	FirstAt time.Time `json:"firstAt,omitempty"`
}

// Reactions хранит реакции поста в порядке появления эмодзи.
type Reactions []ReactionTally

func (r Reactions) Count(emoji string) int {
	for _, t := range r {
		if t.Emoji == emoji {
			return t.Count
		}
	}
	return 0
}

func (r Reactions) Has(emoji string) bool {
	return r.Count(emoji) > 0
}

// Total - сумма всех реакций
func (r Reactions) Total() int {
	total := 0
	for _, t := range r {
		total += t.Count
	}
	return total
}

// Add возвращает новый набор, в котором счетчик emoji изменен на delta.
// Эмодзи с нулевым счетчиком удаляются, новые добавляются в конец.
func (r Reactions) Add(emoji string, delta int, at time.Time) Reactions {
	out := make(Reactions, 0, len(r)+1)
	found := false
	for _, t := range r {
		if t.Emoji == emoji {
			found = true
			t.Count += delta
			if t.Count <= 0 {
				continue
			}
		}
		out = append(out, t)
	}
	if !found && delta > 0 {
		out = append(out, ReactionTally{Emoji: emoji, Count: delta, FirstAt: at})
	}
	return out
}

// Set возвращает новый набор с абсолютным значением счетчика emoji.
func (r Reactions) Set(emoji string, count int, at time.Time) Reactions {
	return r.Add(emoji, count-r.Count(emoji), at)
}

func (r Reactions) clone() Reactions {
	if r == nil {
		return nil
	}
	return append(Reactions(nil), r...)
}
