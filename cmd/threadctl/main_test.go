package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ButyrinIA/thread/internal/backend"
	"github.com/ButyrinIA/thread/internal/client"
	"github.com/ButyrinIA/thread/internal/config"
	"github.com/ButyrinIA/thread/internal/engine"
	"github.com/ButyrinIA/thread/internal/models"
	"github.com/ButyrinIA/thread/internal/server"
	"github.com/ButyrinIA/thread/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.Auth.Secret = "your-secret-key"
	ts := httptest.NewServer(server.New(cfg, backend.New(memory.New(), logger), logger).Handler())
	defer ts.Close()

	alice := models.User{ID: "alice"}
	c := client.New(ts.URL, "")
	defer c.Close()
	_, err := c.Login(ctx, alice)
	require.NoError(t, err)

	// каждая команда - отдельный запуск, как у настоящего процесса
	exec := func(args ...string) (string, error) {
		store := engine.New(c, logger, engine.Options{Viewer: &alice})
		var out bytes.Buffer
		err := run(ctx, store, &out, args)
		return strings.TrimSpace(out.String()), err
	}

	rootID, err := exec("post", "gm", "frens")
	require.NoError(t, err)
	replyID, err := exec("reply", rootID, "wagmi")
	require.NoError(t, err)

	out, err := exec("list")
	require.NoError(t, err)
	assert.Contains(t, out, `"gm frens"`)
	assert.Contains(t, out, "  ["+replyID+"]", "ответ с отступом")

	_, err = exec("edit", replyID, "text:"+replyIDSection(t, c, replyID), "ngmi")
	require.NoError(t, err)

	out, err = exec("react", rootID, "🚀")
	require.NoError(t, err)
	assert.Contains(t, out, "*🚀 1")

	out, err = exec("thread", replyID)
	require.NoError(t, err)
	assert.Contains(t, out, "^ ["+rootID+"]")
	assert.Contains(t, out, `"ngmi"`)

	_, err = exec("repost", rootID)
	require.NoError(t, err)
	_, err = exec("repost", rootID)
	assert.True(t, errors.Is(err, models.ErrValidation))
	_, err = exec("undo", rootID)
	require.NoError(t, err)

	require.NoError(t, func() error { _, err := exec("delete", rootID); return err }())
	out, err = exec("list")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = exec("dance")
	assert.True(t, errors.Is(err, models.ErrValidation))
	_, err = exec()
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func replyIDSection(t *testing.T, c *client.Client, postID string) string {
	t.Helper()
	posts, err := c.FetchPosts(context.Background(), models.PostFilter{})
	require.NoError(t, err)
	for _, p := range posts {
		if p.ID == postID {
			return p.Sections[0].ID
		}
	}
	t.Fatalf("post %s not found", postID)
	return ""
}
