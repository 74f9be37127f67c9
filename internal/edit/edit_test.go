package edit

import (
	"errors"
	"testing"

	"github.com/ButyrinIA/thread/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listing() models.Section {
	return models.Section{ID: "s2", Body: models.NFTListing{Listing: models.ListingData{
		Collection: "punks", TokenID: "42", Price: 1.5, Currency: "ETH",
	}}}
}

func TestDedupe(t *testing.T) {
	sections := []models.Section{
		{ID: "s1", Body: models.TextImage{Text: "look", ImageRef: "img1"}},
		models.NewTextSection("t1", "first"),
		{ID: "s3", Body: models.TextImage{Text: "look", ImageRef: "img2"}},
		models.NewTextSection("t2", "second"),
		listing(),
		models.NewTextSection("t1", "dup id"),
	}

	fields := Dedupe(sections)
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.Key
	}
	assert.Equal(t, []string{"TEXT_IMAGE", "text:t1", "text:t2", "NFT_LISTING"}, keys)
	assert.Equal(t, "s1", fields[0].Section.ID, "одиночка представлена первым вхождением")
	assert.True(t, fields[0].Editable)
	assert.False(t, fields[3].Editable)
}

func TestDraft(t *testing.T) {
	t.Run("Singleton write-back", func(t *testing.T) {
		post := &models.Post{ID: "p1", Sections: []models.Section{
			{ID: "s1", Body: models.TextImage{Text: "old caption", ImageRef: "ipfs://img"}},
			listing(),
		}}
		d := NewDraft(post)
		require.NoError(t, d.SetText("TEXT_IMAGE", "new caption"))
		assert.True(t, d.Dirty())

		saved, err := d.Save()
		require.NoError(t, err)
		require.Len(t, saved, 2)
		assert.Equal(t, "s1", saved[0].ID)
		assert.Equal(t, models.TextImage{Text: "new caption", ImageRef: "ipfs://img"}, saved[0].Body)
		assert.Equal(t, listing(), saved[1], "NFT секция не меняется")
		assert.Equal(t, "old caption", post.Sections[0].Body.(models.TextImage).Text, "исходный пост не меняется")
	})

	t.Run("Singleton edit reaches every section of the type", func(t *testing.T) {
		post := &models.Post{ID: "p1", Sections: []models.Section{
			{ID: "v1", Body: models.TextVideo{Text: "a", VideoRef: "v1.mp4"}},
			{ID: "v2", Body: models.TextVideo{Text: "b", VideoRef: "v2.mp4"}},
		}}
		d := NewDraft(post)
		require.Len(t, d.Fields(), 1)
		require.NoError(t, d.SetText("TEXT_VIDEO", "same"))

		out := d.Sections()
		assert.Equal(t, models.TextVideo{Text: "same", VideoRef: "v1.mp4"}, out[0].Body)
		assert.Equal(t, models.TextVideo{Text: "same", VideoRef: "v2.mp4"}, out[1].Body)
	})

	t.Run("Text only edit is per id", func(t *testing.T) {
		post := &models.Post{ID: "p1", Sections: []models.Section{
			models.NewTextSection("t1", "one"),
			models.NewTextSection("t2", "two"),
		}}
		d := NewDraft(post)
		require.NoError(t, d.SetText("text:t2", "zwei"))
		assert.Equal(t, "zwei", d.Fields()[1].Text)

		out := d.Sections()
		assert.Equal(t, models.NewTextSection("t1", "one"), out[0])
		assert.Equal(t, models.NewTextSection("t2", "zwei"), out[1])
	})

	t.Run("Empty text only sections dropped", func(t *testing.T) {
		post := &models.Post{ID: "p1", Sections: []models.Section{
			models.NewTextSection("t1", "keep"),
			models.NewTextSection("t2", "drop me"),
		}}
		d := NewDraft(post)
		require.NoError(t, d.SetText("text:t2", "   "))
		saved, err := d.Save()
		require.NoError(t, err)
		assert.Equal(t, []models.Section{models.NewTextSection("t1", "keep")}, saved)
	})

	t.Run("Clearing the only section is rejected", func(t *testing.T) {
		post := &models.Post{ID: "p1", Sections: []models.Section{models.NewTextSection("t1", "hello")}}
		d := NewDraft(post)
		require.NoError(t, d.SetText("text:t1", ""))
		saved, err := d.Save()
		assert.Nil(t, saved)
		assert.True(t, errors.Is(err, models.ErrValidation))
		assert.Contains(t, err.Error(), "cannot be empty")
	})

	t.Run("Empty caption on media is allowed", func(t *testing.T) {
		post := &models.Post{ID: "p1", Sections: []models.Section{
			{ID: "s1", Body: models.TextImage{Text: "x", ImageRef: "img"}},
		}}
		d := NewDraft(post)
		require.NoError(t, d.SetText("TEXT_IMAGE", ""))
		saved, err := d.Save()
		require.NoError(t, err)
		assert.Len(t, saved, 1)
	})

	t.Run("Non text fields are read only", func(t *testing.T) {
		d := NewDraft(&models.Post{ID: "p1", Sections: []models.Section{listing()}})
		assert.True(t, errors.Is(d.SetText("NFT_LISTING", "x"), models.ErrValidation))
		assert.True(t, errors.Is(d.SetText("nope", "x"), models.ErrValidation))
	})
}
