package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minouverse/minouchat/internal/model"
	"go.uber.org/zap"
)

const requestTimeout = 15 * time.Second

// APIError is a non-2xx response from the backend. The delivery pipeline
// treats any APIError on the send path as a terminal failure for that
// message; there are no automatic retries.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// Client calls the Minouverse REST API. It covers the fallback send path and
// the history/conversation fetches; everything real-time goes over the socket.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a REST client for the given backend base URL.
func New(baseURL, token string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
}

// ListConversations fetches the conversation list for a user, most recent
// first.
func (c *Client) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	var convs []model.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations/"+userID, nil, &convs); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// ListMessages fetches the full ordered history of one conversation,
// oldest first.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var msgs []model.Message
	if err := c.do(ctx, http.MethodGet, "/api/messages/"+conversationID, nil, &msgs); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	for i := range msgs {
		msgs[i].Status = model.StatusConfirmed
	}
	return msgs, nil
}

// SendMessage performs the synchronous HTTP send and returns the canonical
// created message.
func (c *Client) SendMessage(ctx context.Context, draft model.Draft) (*model.Message, error) {
	var created model.Message
	if err := c.do(ctx, http.MethodPost, "/api/messages", draft, &created); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	created.Status = model.StatusConfirmed
	return &created, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody struct {
			Message string `json:"message"`
		}
		if raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
			if json.Unmarshal(raw, &errBody) == nil {
				apiErr.Message = errBody.Message
			}
		}
		c.logger.Warn("backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
