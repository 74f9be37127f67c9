package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ButyrinIA/thread/internal/backend"
	"github.com/ButyrinIA/thread/internal/config"
	"github.com/ButyrinIA/thread/internal/engine"
	"github.com/ButyrinIA/thread/internal/models"
	"github.com/ButyrinIA/thread/internal/retweet"
	"github.com/ButyrinIA/thread/internal/server"
	"github.com/ButyrinIA/thread/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.Secret = "your-secret-key"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(server.New(cfg, backend.New(memory.New(), logger), logger).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func loggedIn(t *testing.T, baseURL string, user models.User) *Client {
	t.Helper()
	c := New(baseURL, "")
	t.Cleanup(func() { c.Close() })
	_, err := c.Login(context.Background(), user)
	require.NoError(t, err)
	return c
}

func TestClient(t *testing.T) {
	ts := startServer(t)
	ctx := context.Background()
	alice := loggedIn(t, ts.URL, models.User{ID: "alice"})
	bob := loggedIn(t, ts.URL, models.User{ID: "bob"})

	post, err := alice.CreatePost(ctx, models.CreatePostRequest{Sections: []models.Section{models.NewTextSection("", "gm")}})
	require.NoError(t, err)
	assert.Equal(t, "alice", post.User.ID)

	t.Run("Fetch", func(t *testing.T) {
		posts, err := bob.FetchPosts(ctx, models.PostFilter{UserID: "alice", Limit: 5})
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, post.ID, posts[0].ID)
		text, _ := posts[0].Sections[0].Text()
		assert.Equal(t, "gm", text)
	})

	t.Run("Errors map to sentinels", func(t *testing.T) {
		_, err := bob.UpdatePost(ctx, post.ID, models.PostPatch{Sections: []models.Section{models.NewTextSection("", "x")}})
		assert.True(t, errors.Is(err, models.ErrPermission))

		_, err = bob.AddReaction(ctx, "missing", "🚀")
		assert.True(t, errors.Is(err, models.ErrNotFound))

		_, err = alice.CreatePost(ctx, models.CreatePostRequest{})
		assert.True(t, errors.Is(err, models.ErrValidation))

		anon := New(ts.URL, "")
		defer anon.Close()
		_, err = anon.CreatePost(ctx, models.CreatePostRequest{Sections: []models.Section{models.NewTextSection("", "x")}})
		assert.True(t, errors.Is(err, models.ErrUnauthenticated))
	})

	t.Run("Reaction and retweet", func(t *testing.T) {
		count, err := bob.AddReaction(ctx, post.ID, "❤️")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		rt, err := bob.CreateRetweet(ctx, models.CreateRetweetRequest{OriginalPostID: post.ID, QuoteText: models.StringPtr("lfg")})
		require.NoError(t, err)
		assert.True(t, rt.IsQuote())

		ok, err := bob.DeletePost(ctx, rt.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestClientNetworkErrors(t *testing.T) {
	t.Run("Server error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		c := New(ts.URL, "token")
		defer c.Close()
		_, err := c.FetchPosts(context.Background(), models.PostFilter{})
		assert.True(t, errors.Is(err, models.ErrNetwork))
	})

	t.Run("Unreachable", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()

		c := New(url, "token")
		defer c.Close()
		_, err := c.CreatePost(context.Background(), models.CreatePostRequest{Sections: []models.Section{models.NewTextSection("", "x")}})
		assert.True(t, errors.Is(err, models.ErrNetwork))
	})
}

// Движок поверх клиента и настоящего сервера.
func TestEngineOverClient(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := startServer(t)
	alice := models.User{ID: "alice"}
	c := loggedIn(t, ts.URL, alice)

	store := engine.New(c, logger, engine.Options{Viewer: &alice})
	require.NoError(t, store.LoadPosts(ctx, models.PostFilter{}))

	root, err := store.AddPost(ctx, nil, []models.Section{models.NewTextSection("", "gm")})
	require.NoError(t, err)
	assert.False(t, root.IsLocal())

	res, err := store.RetweetPost(ctx, root.ID, retweet.ActionQuote, "self quote", "")
	require.NoError(t, err)
	assert.Equal(t, root.ID, res.Post.RetweetOf.ID)

	require.NoError(t, store.ReactToPost(ctx, root.ID, "🚀"))
	got, ok := store.GetPostByID(root.ID)
	require.True(t, ok)
	assert.Equal(t, "🚀", got.UserReaction)
	assert.Equal(t, 1, got.QuoteCount)

	require.NoError(t, store.LoadPosts(ctx, models.PostFilter{}))
	assert.Len(t, store.FlattenedPosts(), 2)
	got, _ = store.GetPostByID(root.ID)
	assert.Equal(t, "🚀", got.UserReaction, "реакция зрителя приходит с сервера")
}
