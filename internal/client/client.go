// Package client реализует API постов поверх HTTP-сервера thread.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ButyrinIA/thread/internal/models"
	"resty.dev/v3"
)

type Client struct {
	client *resty.Client
}

func New(baseURL, token string) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &Client{client: client}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) r(ctx context.Context) *resty.Request {
	return c.client.R().WithContext(ctx)
}

// Login получает токен для пользователя и использует его в следующих запросах.
func (c *Client) Login(ctx context.Context, user models.User) (string, error) {
	type tokenResponse struct {
		Token string `json:"token"`
	}
	res, err := c.r(ctx).SetBody(user).SetResult(&tokenResponse{}).Post("/token")
	if err := check(res, err); err != nil {
		return "", err
	}
	token := res.Result().(*tokenResponse).Token
	c.client.SetAuthToken(token)
	return token, nil
}

func (c *Client) CreatePost(ctx context.Context, req models.CreatePostRequest) (*models.Post, error) {
	res, err := c.r(ctx).SetBody(req).SetResult(&models.Post{}).Post("/posts")
	if err := check(res, err); err != nil {
		return nil, err
	}
	return res.Result().(*models.Post), nil
}

func (c *Client) UpdatePost(ctx context.Context, id string, patch models.PostPatch) (*models.Post, error) {
	res, err := c.r(ctx).
		SetPathParam("id", id).
		SetBody(patch).
		SetResult(&models.Post{}).
		Patch("/posts/{id}")
	if err := check(res, err); err != nil {
		return nil, err
	}
	return res.Result().(*models.Post), nil
}

func (c *Client) DeletePost(ctx context.Context, id string) (bool, error) {
	type deleteResponse struct {
		Deleted bool `json:"deleted"`
	}
	res, err := c.r(ctx).
		SetPathParam("id", id).
		SetResult(&deleteResponse{}).
		Delete("/posts/{id}")
	if err := check(res, err); err != nil {
		return false, err
	}
	return res.Result().(*deleteResponse).Deleted, nil
}

func (c *Client) FetchPosts(ctx context.Context, filter models.PostFilter) ([]*models.Post, error) {
	req := c.r(ctx)
	if filter.UserID != "" {
		req.SetQueryParam("userId", filter.UserID)
	}
	if filter.ParentID != nil {
		req.SetQueryParam("parentId", *filter.ParentID)
	}
	if filter.Limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		req.SetQueryParam("offset", strconv.Itoa(filter.Offset))
	}

	var posts []*models.Post
	res, err := req.SetResult(&posts).Get("/posts")
	if err := check(res, err); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) AddReaction(ctx context.Context, postID, emoji string) (int, error) {
	type countResponse struct {
		Count int `json:"count"`
	}
	res, err := c.r(ctx).
		SetPathParam("id", postID).
		SetBody(map[string]string{"emoji": emoji}).
		SetResult(&countResponse{}).
		Post("/posts/{id}/reactions")
	if err := check(res, err); err != nil {
		return 0, err
	}
	return res.Result().(*countResponse).Count, nil
}

func (c *Client) CreateRetweet(ctx context.Context, req models.CreateRetweetRequest) (*models.Post, error) {
	res, err := c.r(ctx).SetBody(req).SetResult(&models.Post{}).Post("/retweets")
	if err := check(res, err); err != nil {
		return nil, err
	}
	return res.Result().(*models.Post), nil
}

// check переводит сбой транспорта и HTTP-статус в ошибки models.
func check(res *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrNetwork, err)
	}
	if !res.IsError() {
		return nil
	}

	var body struct {
		Error string `json:"error"`
	}
	msg := res.Status()
	if json.Unmarshal([]byte(res.String()), &body) == nil && body.Error != "" {
		msg = body.Error
	}

	switch code := res.StatusCode(); {
	case code == http.StatusUnauthorized:
		return wrap(models.ErrUnauthenticated, msg)
	case code == http.StatusForbidden:
		return wrap(models.ErrPermission, msg)
	case code == http.StatusNotFound:
		return wrap(models.ErrNotFound, msg)
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return wrap(models.ErrValidation, msg)
	default:
		return wrap(models.ErrNetwork, msg)
	}
}

// wrap не дублирует текст sentinel, если сервер уже включил его в сообщение.
func wrap(sentinel error, msg string) error {
	msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	if msg == sentinel.Error() {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}
