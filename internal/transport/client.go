package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/UkralStul/commentsync/internal/domain"
	"github.com/UkralStul/commentsync/internal/dto"
)

// Client реализует Transport поверх REST/JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient создает клиента для API по адресу baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Transport = (*Client)(nil)

func (c *Client) Create(ctx context.Context, postID, authorID, content string, parentID *string) (domain.Comment, error) {
	var out domain.Comment
	err := c.do(ctx, "create comment", http.MethodPost, "/posts/"+url.PathEscape(postID)+"/comments", nil,
		dto.CreateCommentRequest{AuthorID: authorID, Content: content, ParentID: parentID}, &out)
	return out, err
}

func (c *Client) ListRoots(ctx context.Context, postID string, page, pageSize int) (domain.Page, error) {
	var out domain.Page
	err := c.do(ctx, "list comments", http.MethodGet, "/posts/"+url.PathEscape(postID)+"/comments", pageQuery(page, pageSize), nil, &out)
	return out, err
}

func (c *Client) ListReplies(ctx context.Context, parentID string, page, pageSize int) (domain.Page, error) {
	var out domain.Page
	err := c.do(ctx, "list replies", http.MethodGet, "/comments/"+url.PathEscape(parentID)+"/replies", pageQuery(page, pageSize), nil, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, commentID, authorID, content string) (domain.Comment, error) {
	var out domain.Comment
	err := c.do(ctx, "update comment", http.MethodPatch, "/comments/"+url.PathEscape(commentID), nil,
		dto.UpdateCommentRequest{AuthorID: authorID, Content: content}, &out)
	return out, err
}

func (c *Client) Remove(ctx context.Context, commentID, authorID string) error {
	query := url.Values{"authorId": []string{authorID}}
	return c.do(ctx, "delete comment", http.MethodDelete, "/comments/"+url.PathEscape(commentID), query, nil, nil)
}

func (c *Client) ToggleLike(ctx context.Context, commentID, userID string) (bool, error) {
	var out dto.LikeResponse
	err := c.do(ctx, "toggle like", http.MethodPost, "/comments/"+url.PathEscape(commentID)+"/like", nil,
		dto.LikeRequest{UserID: userID}, &out)
	return out.Liked, err
}

// Login получает dev-токен для пользователя.
func (c *Client) Login(ctx context.Context, userID, displayName string) (dto.LoginResponse, error) {
	var out dto.LoginResponse
	err := c.do(ctx, "login", http.MethodPost, "/auth/login", nil,
		dto.LoginRequest{UserID: userID, DisplayName: displayName}, &out)
	return out, err
}

// ListPosts возвращает посты, новые первыми.
func (c *Client) ListPosts(ctx context.Context, limit, offset int) ([]domain.Post, error) {
	query := url.Values{
		"limit":  []string{strconv.Itoa(limit)},
		"offset": []string{strconv.Itoa(offset)},
	}
	var out []domain.Post
	err := c.do(ctx, "list posts", http.MethodGet, "/posts", query, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Message: "failed to marshal request: " + err.Error(), Kind: domain.ErrValidation}
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &Error{Op: op, Message: "failed to create request: " + err.Error(), Kind: domain.ErrNetwork}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return &Error{Op: op, Message: err.Error(), Kind: domain.ErrUnauthenticated}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("op", op), zap.String("url", target), zap.Error(err))
		return &Error{Op: op, Message: err.Error(), Kind: domain.ErrNetwork}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(op, resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Message: "failed to decode response: " + err.Error(), Kind: domain.ErrNetwork}
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	message := http.StatusText(resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(body) > 0 {
		var basic dto.BasicResponse
		if jsonErr := json.Unmarshal(body, &basic); jsonErr == nil && basic.Details != "" {
			message = basic.Details
		}
	}

	return &Error{Op: op, Status: resp.StatusCode, Message: message, Kind: KindForStatus(resp.StatusCode)}
}

func pageQuery(page, pageSize int) url.Values {
	return url.Values{
		"page":     []string{strconv.Itoa(page)},
		"pageSize": []string{strconv.Itoa(pageSize)},
	}
}
