package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ButyrinIA/thread/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

type viewerKey struct{}

// WithViewer кладет текущего пользователя в контекст
func WithViewer(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, viewerKey{}, user)
}

func ViewerFrom(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(viewerKey{}).(models.User)
	return user, ok && user.ID != ""
}

type claims struct {
	Username string `json:"username,omitempty"`
	Handle   string `json:"handle,omitempty"`
	Verified bool   `json:"verified,omitempty"`
	jwt.RegisteredClaims
}

// Issuer выпускает и проверяет токены зрителя
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

func (i *Issuer) Generate(user models.User) (string, error) {
	if user.ID == "" {
		return "", errors.New("пустой id пользователя")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: user.Username,
		Handle:   user.Handle,
		Verified: user.Verified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})
	return token.SignedString(i.secret)
}

func (i *Issuer) Validate(tokenString string) (models.User, error) {
	if tokenString == "" {
		return models.User{}, fmt.Errorf("%w: пустой токен", models.ErrUnauthenticated)
	}

	var c claims
	_, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %v", models.ErrUnauthenticated, err)
	}
	if c.Subject == "" {
		return models.User{}, fmt.Errorf("%w: token without subject", models.ErrUnauthenticated)
	}

	return models.User{
		ID:       c.Subject,
		Username: c.Username,
		Handle:   c.Handle,
		Verified: c.Verified,
	}, nil
}
