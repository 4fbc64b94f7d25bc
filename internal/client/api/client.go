package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"secure_chat_service/internal/chat/domain"
	errprocess "secure_chat_service/pkg/err"
)

// DefaultTimeout per request timeout
const DefaultTimeout = 15 * time.Second

// Client HTTP client of the chat service, the bearer token is fixed at construction
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configure a Client
type Option func(*Client)

// WithHTTPClient replace the underlying http client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout set the request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New create a Client
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchKey GET /conversations/:id/key. A missing or empty key is key_unavailable.
func (c *Client) FetchKey(ctx context.Context, conversationID string) (string, error) {
	var out struct {
		ChatKey string `json:"chatKey"`
	}
	if err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(conversationID)+"/key", nil, nil, &out); err != nil {
		return "", err
	}
	if out.ChatKey == "" {
		return "", errprocess.New(errprocess.KeyUnavailable, nil)
	}
	return out.ChatKey, nil
}

// FetchHistory GET /messages, newest first as stored
func (c *Client) FetchHistory(ctx context.Context, conversationID string, limit int, before time.Time) ([]domain.Message, error) {
	q := url.Values{}
	q.Set("conversationId", conversationID)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if !before.IsZero() {
		q.Set("before", before.UTC().Format(time.RFC3339Nano))
	}

	var msgs []domain.Message
	if err := c.do(ctx, http.MethodGet, "/messages", q, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// CreateConversation POST /conversations
func (c *Client) CreateConversation(ctx context.Context, title string, participantEmails []string) (*domain.Conversation, error) {
	var conv domain.Conversation
	req := domain.CreateConversationRequest{Title: title, ParticipantEmails: participantEmails}
	if err := c.do(ctx, http.MethodPost, "/conversations", nil, req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations GET /conversations
func (c *Client) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var list []domain.Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteConversation DELETE /conversations/:id
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(conversationID), nil, nil, nil)
}

// SignedUploadURL GET /attachments/signed-url
func (c *Client) SignedUploadURL(ctx context.Context, req domain.AttachmentUploadRequest) (*domain.AttachmentUpload, error) {
	q := url.Values{}
	q.Set("conversationId", req.ConversationID)
	q.Set("filename", req.Filename)
	q.Set("contentType", req.ContentType)
	q.Set("size", strconv.FormatInt(req.Size, 10))

	var out domain.AttachmentUpload
	if err := c.do(ctx, http.MethodGet, "/attachments/signed-url", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errprocess.New(errprocess.InvalidPayload, err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return errprocess.New(errprocess.InvalidPayload, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errprocess.New(errprocess.TransportFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errprocess.New(errprocess.TransportFailed, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errprocess.New(errprocess.InvalidPayload, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// statusError 依 {error: code} 還原錯誤種類, 沒有 body 時用 status code 判斷
func statusError(status int, body []byte) error {
	var e struct {
		Error errprocess.Code `json:"error"`
	}
	cause := fmt.Errorf("http status %d", status)
	if json.Unmarshal(body, &e) == nil && e.Error.Category() != "" {
		return errprocess.New(e.Error, cause)
	}

	switch status {
	case http.StatusUnauthorized:
		return errprocess.New(errprocess.Unauthenticated, cause)
	case http.StatusForbidden:
		return errprocess.New(errprocess.Forbidden, cause)
	case http.StatusNotFound:
		return errprocess.New(errprocess.NotFound, cause)
	case http.StatusBadRequest:
		return errprocess.New(errprocess.InvalidPayload, cause)
	}
	return errprocess.New(errprocess.StoreUnavailable, cause)
}
