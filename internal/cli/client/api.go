package client

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"artizen/internal/models"
)

type AuthResponse struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

type SignupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	DOB      string `json:"dob,omitempty"`
	Password string `json:"password"`
}

type Status struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var out Status
	err := c.Get(ctx, "/api/status", &out)
	return out, err
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (AuthResponse, error) {
	var out AuthResponse
	err := c.Post(ctx, "/api/auth/signup", req, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	var out AuthResponse
	err := c.Post(ctx, "/api/auth/login", map[string]string{"email": email, "password": password}, &out)
	return out, err
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	return c.Post(ctx, "/api/auth/change-password", map[string]string{
		"currentPassword": current,
		"newPassword":     next,
	}, nil)
}

// DeletedAccount is the server's summary of a removed account.
type DeletedAccount struct {
	Deleted string           `json:"deleted"`
	Removed map[string]int64 `json:"removed"`
}

func (c *Client) DeleteAccount(ctx context.Context, password string) (DeletedAccount, error) {
	var out DeletedAccount
	err := c.Post(ctx, "/api/auth/delete-account", map[string]string{"password": password}, &out)
	return out, err
}

func (c *Client) Me(ctx context.Context) (models.User, error) {
	var out models.User
	err := c.Get(ctx, "/api/users/me", &out)
	return out, err
}

func (c *Client) SearchUsers(ctx context.Context, q string) ([]models.User, error) {
	var out []models.User
	err := c.Get(ctx, "/api/users/search?q="+url.QueryEscape(q), &out)
	return out, err
}

func (c *Client) Profile(ctx context.Context, email string) (models.Profile, error) {
	path := "/api/users/profile"
	if email != "" {
		path += "?email=" + url.QueryEscape(email)
	}
	var out models.Profile
	err := c.Get(ctx, path, &out)
	return out, err
}

func (c *Client) ToggleFollow(ctx context.Context, email string) (bool, error) {
	var out struct {
		Following bool `json:"following"`
	}
	err := c.Post(ctx, "/api/follows/toggle", map[string]string{"email": email}, &out)
	return out.Following, err
}

// FetchFeedPage requests one feed page. A non-zero snapshot pins the page to posts created at or before it.
func (c *Client) FetchFeedPage(ctx context.Context, page, limit int, snapshot time.Time) (models.FeedPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if !snapshot.IsZero() {
		q.Set("ts", strconv.FormatInt(snapshot.UnixMilli(), 10))
	}
	var out models.FeedPage
	err := c.Get(ctx, "/api/posts/all?"+q.Encode(), &out)
	return out, err
}

func (c *Client) CreatePost(ctx context.Context, title, content string) (models.Post, error) {
	var out models.Post
	err := c.Post(ctx, "/api/posts", map[string]string{"title": title, "content": content}, &out)
	return out, err
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.Delete(ctx, "/api/posts/"+url.PathEscape(id), nil)
}

func (c *Client) ToggleLike(ctx context.Context, postID string) (models.Post, error) {
	var out models.Post
	err := c.Post(ctx, "/api/posts/like/"+url.PathEscape(postID), nil, &out)
	return out, err
}

func (c *Client) AddComment(ctx context.Context, postID, content string) (models.Post, error) {
	var out models.Post
	err := c.Post(ctx, "/api/posts/comment/"+url.PathEscape(postID), map[string]string{"content": content}, &out)
	return out, err
}

func (c *Client) DeleteComment(ctx context.Context, postID string, index int) (models.Post, error) {
	var out models.Post
	err := c.Delete(ctx, "/api/posts/comment/"+url.PathEscape(postID)+"/"+strconv.Itoa(index), &out)
	return out, err
}

func (c *Client) SearchPosts(ctx context.Context, q string) ([]models.SearchResult, error) {
	var out struct {
		Results []models.SearchResult `json:"results"`
	}
	err := c.Get(ctx, "/api/search/posts?q="+url.QueryEscape(q), &out)
	return out.Results, err
}

func (c *Client) ListThreads(ctx context.Context) ([]models.Thread, error) {
	var out []models.Thread
	err := c.Get(ctx, "/api/chat/threads", &out)
	return out, err
}

func (c *Client) OpenThread(ctx context.Context, email string) (models.Thread, error) {
	var out models.Thread
	err := c.Post(ctx, "/api/chat/threads", map[string]string{"email": email}, &out)
	return out, err
}

// ListMessages returns up to take messages older than cursor, oldest first.
func (c *Client) ListMessages(ctx context.Context, threadID string, take int, cursor string) ([]models.Message, error) {
	q := url.Values{}
	if take > 0 {
		q.Set("take", strconv.Itoa(take))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	path := "/api/chat/threads/" + url.PathEscape(threadID) + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []models.Message
	err := c.Get(ctx, path, &out)
	return out, err
}

func (c *Client) SendMessage(ctx context.Context, threadID, text, clientID string) (models.Message, error) {
	var out models.Message
	err := c.Post(ctx, "/api/chat/messages", map[string]string{
		"threadId": threadID,
		"text":     text,
		"clientId": clientID,
	}, &out)
	return out, err
}

func (c *Client) Notifications(ctx context.Context) ([]models.Notification, error) {
	var out []models.Notification
	err := c.Get(ctx, "/api/notifications", &out)
	return out, err
}

func (c *Client) UnreadNotifications(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	err := c.Get(ctx, "/api/notifications/unread", &out)
	return out.Count, err
}

func (c *Client) ClearNotifications(ctx context.Context) (int64, error) {
	var out struct {
		Removed int64 `json:"removed"`
	}
	err := c.Delete(ctx, "/api/notifications/clear", &out)
	return out.Removed, err
}
