package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ButyrinIA/thread/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewerContext(t *testing.T) {
	_, ok := ViewerFrom(context.Background())
	assert.False(t, ok)

	ctx := WithViewer(context.Background(), models.User{ID: "user1"})
	user, ok := ViewerFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user1", user.ID)

	_, ok = ViewerFrom(WithViewer(context.Background(), models.User{}))
	assert.False(t, ok, "пользователь без id не считается вошедшим")
}

func TestIssuer(t *testing.T) {
	issuer := NewIssuer("your-secret-key", time.Hour)

	t.Run("Generate and Validate", func(t *testing.T) {
		token, err := issuer.Generate(models.User{ID: "user1", Username: "alice", Verified: true})
		require.NoError(t, err)
		assert.NotEmpty(t, token)

		user, err := issuer.Validate(token)
		assert.NoError(t, err)
		assert.Equal(t, models.User{ID: "user1", Username: "alice", Verified: true}, user)
	})

	t.Run("Empty token", func(t *testing.T) {
		_, err := issuer.Validate("")
		assert.True(t, errors.Is(err, models.ErrUnauthenticated))
		assert.Contains(t, err.Error(), "пустой токен")
	})

	t.Run("Wrong key", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "user1",
			"exp": time.Now().Add(time.Hour * 24).Unix(),
		})
		wrongKeyToken, _ := token.SignedString([]byte("wrong-key"))
		_, err := issuer.Validate(wrongKeyToken)
		assert.Error(t, err)
	})

	t.Run("Expired", func(t *testing.T) {
		expired := NewIssuer("your-secret-key", -time.Minute)
		token, err := expired.Generate(models.User{ID: "user1"})
		require.NoError(t, err)
		_, err = issuer.Validate(token)
		assert.True(t, errors.Is(err, models.ErrPermission))
	})

	t.Run("Empty user", func(t *testing.T) {
		_, err := issuer.Generate(models.User{})
		assert.Error(t, err)
	})
}
