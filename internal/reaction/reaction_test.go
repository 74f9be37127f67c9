package reaction

import (
	"errors"
	"testing"
	"time"

	"github.com/ButyrinIA/thread/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	viewer := &models.User{ID: "user1"}
	post := &models.Post{ID: "p1"}

	assert.NoError(t, Check(post, viewer, "🚀"))

	t.Run("Unauthenticated", func(t *testing.T) {
		err := Check(post, nil, "🚀")
		assert.True(t, errors.Is(err, models.ErrUnauthenticated))
		assert.True(t, errors.Is(err, models.ErrPermission))
	})

	t.Run("Local post", func(t *testing.T) {
		err := Check(&models.Post{ID: models.LocalIDPrefix + "abc"}, viewer, "🚀")
		assert.True(t, errors.Is(err, models.ErrValidation))
	})

	t.Run("Legacy emoji present on post is selectable", func(t *testing.T) {
		legacy := &models.Post{ID: "p2", Reactions: models.Reactions{{Emoji: "🐸", Count: 2}}}
		assert.NoError(t, Check(legacy, viewer, "🐸"))
		assert.Error(t, Check(post, viewer, "🐸"))
	})
}

func TestToggle(t *testing.T) {
	now := time.Now()

	t.Run("Rocket then heart moves the vote", func(t *testing.T) {
		p := &models.Post{ID: "p1"}

		p = p.Apply(Toggle(p, "🚀", now))
		assert.Equal(t, 1, p.Reactions.Count("🚀"))
		assert.Equal(t, "🚀", p.UserReaction)
		assert.Equal(t, 1, p.ReactionCount)

		p = p.Apply(Toggle(p, "❤️", now))
		assert.Equal(t, "❤️", p.UserReaction)
		assert.Equal(t, 0, p.Reactions.Count("🚀"))
		assert.False(t, p.Reactions.Has("🚀"), "эмодзи с нулем удаляется")
		assert.Equal(t, 1, p.Reactions.Count("❤️"))
		assert.Equal(t, 1, p.ReactionCount)
	})

	t.Run("Same emoji twice removes the vote", func(t *testing.T) {
		p := &models.Post{ID: "p1", Reactions: models.Reactions{{Emoji: "🚀", Count: 3}}}
		p = p.Apply(Toggle(p, "🚀", now))
		p = p.Apply(Toggle(p, "🚀", now))
		assert.Equal(t, 3, p.Reactions.Count("🚀"))
		assert.Empty(t, p.UserReaction)
	})

	t.Run("User reaction is always present in the map", func(t *testing.T) {
		p := &models.Post{ID: "p1", Reactions: models.Reactions{{Emoji: "😂", Count: 1}}}
		for _, e := range []string{"🚀", "😂", "😂", "❤️", "🚀"} {
			p = p.Apply(Toggle(p, e, now))
			if p.UserReaction != "" {
				assert.GreaterOrEqual(t, p.Reactions.Count(p.UserReaction), 1)
			}
		}
	})

	t.Run("Other users reactions are preserved", func(t *testing.T) {
		p := &models.Post{ID: "p1", Reactions: models.Reactions{{Emoji: "🐸", Count: 5}}}
		p = p.Apply(Toggle(p, "🚀", now))
		assert.Equal(t, 5, p.Reactions.Count("🐸"))
		assert.Equal(t, "🐸", p.Reactions[0].Emoji)
	})
}

func TestSettle(t *testing.T) {
	p := &models.Post{ID: "p1", Reactions: models.Reactions{{Emoji: "🚀", Count: 1}}, UserReaction: "🚀", ReactionCount: 1}
	p = p.Apply(Settle(p, "🚀", 7, time.Now()))
	assert.Equal(t, 7, p.Reactions.Count("🚀"))
	assert.Equal(t, 7, p.ReactionCount)
	assert.Equal(t, "🚀", p.UserReaction)

	p = p.Apply(Settle(p, "🚀", 0, time.Now()))
	assert.Empty(t, p.UserReaction)
}

func TestTray(t *testing.T) {
	var tray Tray
	tray.Open("p1")
	assert.True(t, tray.IsOpen("p1"))

	tray.Open("p2")
	assert.False(t, tray.IsOpen("p1"), "открытие другого трея закрывает первый")
	assert.True(t, tray.IsOpen("p2"))

	assert.False(t, tray.Toggle("p2"))
	assert.Empty(t, tray.OpenPostID())

	assert.True(t, tray.Toggle("p3"))
	tray.CloseIf("p1")
	assert.Equal(t, "p3", tray.OpenPostID())
	tray.Close()
	assert.False(t, tray.IsOpen("p3"))
}

func TestDebouncer(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewDebouncer(500 * time.Millisecond)
	d.now = func() time.Time { return clock }

	release, ok := d.Acquire("p1")
	require.True(t, ok)

	_, ok = d.Acquire("p1")
	assert.False(t, ok, "второе нажатие до завершения запроса игнорируется")

	_, ok = d.Acquire("p2")
	assert.True(t, ok, "другой пост не блокируется")

	release()
	clock = clock.Add(100 * time.Millisecond)
	_, ok = d.Acquire("p1")
	assert.False(t, ok, "быстрое повторное нажатие внутри окна игнорируется")

	clock = clock.Add(time.Second)
	release, ok = d.Acquire("p1")
	assert.True(t, ok)
	release()
	release()

	d.Forget("p1")
	_, ok = d.Acquire("p1")
	assert.True(t, ok)
}

func TestSummarize(t *testing.T) {
	t.Run("Three or fewer are separate pills", func(t *testing.T) {
		p := &models.Post{
			UserReaction: "❤️",
			Reactions:    models.Reactions{{Emoji: "🚀", Count: 2}, {Emoji: "❤️", Count: 1}},
		}
		s := Summarize(p)
		assert.False(t, s.Compact)
		require.Len(t, s.Pills, 2)
		assert.Equal(t, Pill{Emoji: "🚀", Count: 2}, s.Pills[0])
		assert.True(t, s.Pills[1].Selected)
		assert.Equal(t, 3, s.Total)
	})

	t.Run("More than three collapse by timestamp", func(t *testing.T) {
		base := time.Now()
		p := &models.Post{Reactions: models.Reactions{
			{Emoji: "a", Count: 1, FirstAt: base.Add(4 * time.Minute)},
			{Emoji: "b", Count: 1, FirstAt: base.Add(1 * time.Minute)},
			{Emoji: "c", Count: 5, FirstAt: base.Add(3 * time.Minute)},
			{Emoji: "d", Count: 1, FirstAt: base.Add(2 * time.Minute)},
			{Emoji: "e", Count: 1, FirstAt: base.Add(5 * time.Minute)},
		}}
		s := Summarize(p)
		assert.True(t, s.Compact)
		assert.Equal(t, 2, s.Overflow)
		assert.Equal(t, []string{"b", "d", "c"}, []string{s.Pills[0].Emoji, s.Pills[1].Emoji, s.Pills[2].Emoji})
		assert.Equal(t, 9, s.Total)
	})

	t.Run("Without timestamps insertion order wins", func(t *testing.T) {
		p := &models.Post{Reactions: models.Reactions{
			{Emoji: "a", Count: 1}, {Emoji: "b", Count: 1}, {Emoji: "c", Count: 1}, {Emoji: "d", Count: 1},
		}}
		s := Summarize(p)
		assert.Equal(t, []string{"a", "b", "c"}, []string{s.Pills[0].Emoji, s.Pills[1].Emoji, s.Pills[2].Emoji})
		assert.Equal(t, 1, s.Overflow)
	})
}
