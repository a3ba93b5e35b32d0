// Package messaging sends replies through the messaging-channel API. The
// channel authenticates bot requests with a bearer channel access token;
// tokens come from a TokenSource, either a static long-lived token or one
// issued by exchanging a signed JWT assertion.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultEndpoint is the production channel API origin.
const DefaultEndpoint = "https://api.line.me"

// TokenSource supplies a valid channel access token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource is a fixed long-lived channel access token.
type StaticTokenSource string

// Token implements TokenSource.
func (s StaticTokenSource) Token(ctx context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", fmt.Errorf("channel access token is empty")
	}
	return string(s), nil
}

// Client posts messages to the channel API.
type Client struct {
	httpClient *http.Client
	endpoint   string
	tokens     TokenSource
}

// NewClient creates a messaging client. An empty endpoint uses the
// production origin; a nil httpClient uses a 10 second timeout.
func NewClient(endpoint string, tokens TokenSource, httpClient *http.Client) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   strings.TrimRight(endpoint, "/"),
		tokens:     tokens,
	}, nil
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

// Reply sends one plain-text reply bound to a reply token.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	if strings.TrimSpace(replyToken) == "" {
		return fmt.Errorf("reply token is required")
	}

	payload, err := json.Marshal(replyRequest{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("channel token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v2/bot/message/reply", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("reply rejected: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
