// Package remote implements the remote authority contract over HTTP/JSON.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/lumeo-app/lumeo/domain"
)

// Submission throttle defaults. Generous enough that an interactive user
// never hits them; they only bite when a host loops on a call.
const (
	throttleRate     = 5.0
	throttleCapacity = 20.0
)

// Client talks JSON over HTTP to the remote authority. It classifies
// every rejection into the domain sentinel taxonomy, so callers never see
// transport-level detail.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	limiter    *TokenBucket
}

// NewClient creates a Client for the given base URL. The HTTP client's
// own timeout policy governs how long any call may take.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		limiter:    NewTokenBucket(throttleRate, throttleCapacity),
	}
}

// Wire representations. The remote authority owns these shapes; the
// client maps them to domain types at the boundary.

type userDTO struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Bio         string `json:"bio"`
}

type commentDTO struct {
	ID        string    `json:"id"`
	Author    userDTO   `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type postDTO struct {
	ID        string       `json:"id"`
	Author    userDTO      `json:"author"`
	ImageURL  string       `json:"image_url"`
	Caption   string       `json:"caption"`
	LikerIDs  []string     `json:"liker_ids"`
	Comments  []commentDTO `json:"comments"`
	CreatedAt time.Time    `json:"created_at"`
}

type authResponse struct {
	Token string  `json:"token"`
	User  userDTO `json:"user"`
}

type profileResponse struct {
	User        userDTO   `json:"user"`
	Posts       []postDTO `json:"posts"`
	IsFollowing bool      `json:"is_following"`
}

type commentReceiptDTO struct {
	CommentID string    `json:"comment_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (u userDTO) toDomain() domain.UserIdentity {
	return domain.UserIdentity{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarRef:   u.AvatarURL,
		Bio:         u.Bio,
	}
}

func (p postDTO) toDomain() *domain.Post {
	likers := make(map[string]struct{}, len(p.LikerIDs))
	for _, id := range p.LikerIDs {
		likers[id] = struct{}{}
	}
	comments := make([]domain.Comment, 0, len(p.Comments))
	for _, c := range p.Comments {
		comments = append(comments, domain.Comment{
			ID:        c.ID,
			Author:    c.Author.toDomain(),
			Text:      c.Text,
			CreatedAt: c.CreatedAt,
		})
	}
	return &domain.Post{
		ID:        p.ID,
		Author:    p.Author.toDomain(),
		ImageRef:  p.ImageURL,
		Caption:   p.Caption,
		LikerIDs:  likers,
		Comments:  comments,
		CreatedAt: p.CreatedAt,
	}
}

// VerifyIdentity validates a stored token against GET /auth/me.
func (c *Client) VerifyIdentity(ctx context.Context, token string) (*domain.UserIdentity, error) {
	var out userDTO
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &out, nil); err != nil {
		return nil, err
	}
	identity := out.toDomain()
	return &identity, nil
}

// Authenticate exchanges identifier/secret for a session via POST /auth/login.
func (c *Client) Authenticate(ctx context.Context, identifier, secret string) (*domain.AuthResult, error) {
	body := map[string]string{"identifier": identifier, "password": secret}
	var out authResponse
	// 401 on the login endpoint means bad credentials, not a dead session.
	err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &out, map[int]error{
		http.StatusUnauthorized: domain.ErrInvalidCredentials,
	})
	if err != nil {
		return nil, err
	}
	return &domain.AuthResult{Token: out.Token, Identity: out.User.toDomain()}, nil
}

// Register creates an account via POST /auth/signup.
func (c *Client) Register(ctx context.Context, fields domain.SignupFields) (*domain.AuthResult, error) {
	body := map[string]string{
		"email":        fields.Email,
		"username":     fields.Username,
		"display_name": fields.DisplayName,
		"password":     fields.Secret,
	}
	var out authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signup", "", body, &out, nil); err != nil {
		return nil, err
	}
	return &domain.AuthResult{Token: out.Token, Identity: out.User.toDomain()}, nil
}

// SetLike sets the like state for a post via PUT /posts/{id}/like.
func (c *Client) SetLike(ctx context.Context, token, postID string, desired bool) error {
	body := map[string]bool{"liked": desired}
	path := fmt.Sprintf("/posts/%s/like", url.PathEscape(postID))
	return c.do(ctx, http.MethodPut, path, token, body, nil, nil)
}

// PostComment appends a comment via POST /posts/{id}/comment.
func (c *Client) PostComment(ctx context.Context, token, postID, text string) (*domain.CommentReceipt, error) {
	body := map[string]string{"text": text}
	path := fmt.Sprintf("/posts/%s/comment", url.PathEscape(postID))
	var out commentReceiptDTO
	if err := c.do(ctx, http.MethodPost, path, token, body, &out, nil); err != nil {
		return nil, err
	}
	return &domain.CommentReceipt{CommentID: out.CommentID, CreatedAt: out.CreatedAt}, nil
}

// SetFollow sets the follow edge state via PUT /users/{id}/follow.
func (c *Client) SetFollow(ctx context.Context, token, targetUserID string, desired bool) error {
	body := map[string]bool{"following": desired}
	path := fmt.Sprintf("/users/%s/follow", url.PathEscape(targetUserID))
	return c.do(ctx, http.MethodPut, path, token, body, nil, nil)
}

// FetchFeed returns the ordered feed via GET /posts/feed.
func (c *Client) FetchFeed(ctx context.Context, token string) ([]*domain.Post, error) {
	var out []postDTO
	if err := c.do(ctx, http.MethodGet, "/posts/feed", token, nil, &out, nil); err != nil {
		return nil, err
	}
	posts := make([]*domain.Post, 0, len(out))
	for _, p := range out {
		posts = append(posts, p.toDomain())
	}
	return posts, nil
}

// FetchProfile returns a user's profile via GET /users/profile/{username}.
func (c *Client) FetchProfile(ctx context.Context, token, username string) (*domain.ProfileView, error) {
	path := fmt.Sprintf("/users/profile/%s", url.PathEscape(username))
	var out profileResponse
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out, nil); err != nil {
		return nil, err
	}
	posts := make([]*domain.Post, 0, len(out.Posts))
	for _, p := range out.Posts {
		posts = append(posts, p.toDomain())
	}
	return &domain.ProfileView{
		Identity:    out.User.toDomain(),
		Posts:       posts,
		IsFollowing: out.IsFollowing,
	}, nil
}

// do executes one round-trip: marshal body, attach bearer token, check
// the throttle, classify the response status. statusOverrides lets an
// endpoint remap a status to a more specific sentinel.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any, statusOverrides map[int]error) error {
	key := method + " " + path
	if !c.limiter.Allow(key) {
		c.logger.Warn("submission throttled", "endpoint", key)
		return fmt.Errorf("%w: submission throttled", domain.ErrNetwork)
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("remote call failed", "endpoint", key, "error", err)
		return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if override, ok := statusOverrides[resp.StatusCode]; ok {
			return override
		}
		err := classifyStatus(resp.StatusCode)
		c.logger.Warn("remote call rejected",
			"endpoint", key,
			"status", resp.StatusCode,
			"classified", err,
		)
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			// A malformed response is indistinguishable from a broken
			// connection as far as the caller is concerned.
			return fmt.Errorf("%w: decode response: %v", domain.ErrNetwork, err)
		}
	}
	return nil
}

// classifyStatus maps an HTTP status to the domain error taxonomy.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case status == http.StatusNotFound || status == http.StatusGone:
		return domain.ErrNotFound
	case status == http.StatusConflict:
		return domain.ErrConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return domain.ErrValidation
	case status == http.StatusTooManyRequests || status >= 500:
		return domain.ErrNetwork
	default:
		return fmt.Errorf("%w: unexpected status %d", domain.ErrNetwork, status)
	}
}
