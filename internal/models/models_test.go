package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionJSON(t *testing.T) {
	t.Run("Envelope", func(t *testing.T) {
		sec := Section{ID: "s1", Body: TextImage{Text: "look", ImageRef: "img://1"}}
		raw, err := json.Marshal(sec)
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"s1","type":"TEXT_IMAGE","data":{"text":"look","imageRef":"img://1"}}`, string(raw))

		var back Section
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, sec, back)
	})

	t.Run("Poll", func(t *testing.T) {
		raw := `{"id":"p","type":"POLL","data":{"pollData":{"question":"wen?","options":[{"id":"a","label":"soon","votes":3}]}}}`
		var sec Section
		require.NoError(t, json.Unmarshal([]byte(raw), &sec))
		poll, ok := sec.Body.(Poll)
		require.True(t, ok)
		assert.Equal(t, "wen?", poll.Poll.Question)
		assert.Equal(t, 3, poll.Poll.Options[0].Votes)

		_, hasText := sec.Text()
		assert.False(t, hasText)
	})

	t.Run("Unknown type", func(t *testing.T) {
		var sec Section
		err := json.Unmarshal([]byte(`{"id":"x","type":"HOLOGRAM","data":{}}`), &sec)
		assert.True(t, errors.Is(err, ErrValidation))
	})

	t.Run("Empty body", func(t *testing.T) {
		_, err := json.Marshal(Section{ID: "x"})
		assert.Error(t, err)
	})
}

func TestSectionWithText(t *testing.T) {
	trade := Section{ID: "t", Body: TextTrade{Text: "long", Trade: TradeData{Symbol: "ETH", Amount: 2}}}
	edited := trade.WithText("short")

	got, _ := edited.Text()
	assert.Equal(t, "short", got)
	assert.Equal(t, "ETH", edited.Body.(TextTrade).Trade.Symbol, "данные сделки сохраняются")
	orig, _ := trade.Text()
	assert.Equal(t, "long", orig, "исходная секция не меняется")

	nft := Section{ID: "n", Body: NFTListing{Listing: ListingData{TokenID: "7"}}}
	assert.Equal(t, nft, nft.WithText("ignored"))
}

func TestReactionsAdd(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var r Reactions

	r = r.Add("🚀", 1, now)
	r = r.Add("❤️", 2, now.Add(time.Second))
	assert.Equal(t, []string{"🚀", "❤️"}, []string{r[0].Emoji, r[1].Emoji})
	assert.Equal(t, 3, r.Total())

	before := r
	r = r.Add("🚀", -1, now)
	assert.False(t, r.Has("🚀"), "нулевой счетчик удаляется")
	assert.Equal(t, 1, before.Count("🚀"), "исходный набор не меняется")

	r = r.Add("😂", -1, now)
	assert.False(t, r.Has("😂"))

	r = r.Set("❤️", 5, now)
	assert.Equal(t, 5, r.Count("❤️"))
	assert.Equal(t, now.Add(time.Second), r[0].FirstAt, "время первой реакции сохраняется")
}

func TestPostApply(t *testing.T) {
	reply := &Post{ID: "r"}
	post := &Post{
		ID:           "p",
		Sections:     []Section{NewTextSection("s1", "gm")},
		Replies:      []*Post{reply},
		Reactions:    Reactions{{Emoji: "🚀", Count: 1}},
		RetweetCount: 2,
	}

	next := post.Apply(PostPatch{RetweetCount: IntPtr(3), UserReaction: StringPtr("🚀")})
	assert.Equal(t, 3, next.RetweetCount)
	assert.Equal(t, "🚀", next.UserReaction)
	assert.Equal(t, 2, post.RetweetCount, "исходный пост не меняется")
	assert.Empty(t, post.UserReaction)
	assert.Same(t, reply, next.Replies[0])

	edited := post.Apply(PostPatch{Sections: []Section{NewTextSection("s1", "gn")}})
	text, _ := post.Sections[0].Text()
	assert.Equal(t, "gm", text)
	text, _ = edited.Sections[0].Text()
	assert.Equal(t, "gn", text)

	assert.True(t, PostPatch{}.Empty())
	assert.False(t, PostPatch{QuoteCount: IntPtr(0)}.Empty())
}

func TestPostKinds(t *testing.T) {
	orig := &Post{ID: "o"}
	repost := &Post{ID: "r", RetweetOf: orig}
	quote := &Post{ID: "q", RetweetOf: orig, Sections: []Section{NewTextSection("", "lfg")}}
	local := &Post{ID: LocalIDPrefix + "1", ParentID: StringPtr("o")}

	assert.True(t, orig.IsRoot())
	assert.True(t, repost.IsRetweet())
	assert.False(t, repost.IsQuote())
	assert.True(t, quote.IsQuote())
	assert.True(t, local.IsLocal())
	assert.False(t, local.IsRoot())
}

func TestValidate(t *testing.T) {
	err := Validate(CreatePostRequest{})
	assert.True(t, errors.Is(err, ErrValidation))

	err = Validate(CreatePostRequest{Sections: []Section{{ID: "s"}}})
	assert.True(t, errors.Is(err, ErrValidation), "секция без содержимого")

	assert.NoError(t, Validate(CreatePostRequest{Sections: []Section{NewTextSection("", "gm")}}))
	assert.True(t, errors.Is(Validate(PostFilter{Limit: 1000}), ErrValidation))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Sign in to continue", UserMessage(ErrUnauthenticated))
	assert.Equal(t, "You can only change your own posts", UserMessage(ErrPermission))
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "Something went wrong", UserMessage(errors.New("boom")))
}
