package reaction

import (
	"sort"

	"github.com/ButyrinIA/thread/internal/models"
)

// MaxPills - сколько эмодзи показывается отдельно до сворачивания
const MaxPills = 3

type Pill struct {
	Emoji    string
	Count    int
	Selected bool
}

// Summary - то, как реакции поста показываются под ним.
type Summary struct {
	Pills []Pill
	// Compact - эмодзи больше MaxPills, показаны первые три и счетчик остальных.
	Compact bool
	// Overflow - число скрытых различных эмодзи.
	Overflow int
	Total    int
}

// Summarize группирует реакции поста. При сворачивании эмодзи упорядочены по
// времени первой реакции (раньше - первее), при отсутствии времени - по
// порядку появления.
func Summarize(post *models.Post) Summary {
	tallies := make(models.Reactions, 0, len(post.Reactions))
	for _, t := range post.Reactions {
		if t.Count > 0 {
			tallies = append(tallies, t)
		}
	}

	s := Summary{Total: tallies.Total()}
	if len(tallies) > MaxPills {
		if timed(tallies) {
			sort.SliceStable(tallies, func(i, j int) bool {
				return tallies[i].FirstAt.Before(tallies[j].FirstAt)
			})
		}
		s.Compact = true
		s.Overflow = len(tallies) - MaxPills
		tallies = tallies[:MaxPills]
	}

	for _, t := range tallies {
		s.Pills = append(s.Pills, Pill{
			Emoji:    t.Emoji,
			Count:    t.Count,
			Selected: t.Emoji == post.UserReaction,
		})
	}
	return s
}

func timed(tallies models.Reactions) bool {
	for _, t := range tallies {
		if t.FirstAt.IsZero() {
			return false
		}
	}
	return true
}
