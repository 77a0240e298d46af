package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

var ErrNoToken = errors.New("telegram bot token is not configured")

// Client talks to the Telegram Bot API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type Chat struct {
	ID int64 `json:"id"`
}

type From struct {
	Username string `json:"username"`
}

type Message struct {
	Chat Chat   `json:"chat"`
	From From   `json:"from"`
	Text string `json:"text"`
}

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return err
	}
	_, err = c.call(ctx, http.MethodPost, "sendMessage", nil, body)
	return err
}

// GetUpdates fetches updates after offset (when offset > 0) without long polling.
func (c *Client) GetUpdates(ctx context.Context, offset int64, limit int) ([]Update, error) {
	q := url.Values{}
	q.Set("timeout", "0")
	q.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		q.Set("offset", strconv.FormatInt(offset, 10))
	}
	raw, err := c.call(ctx, http.MethodGet, "getUpdates", q, nil)
	if err != nil {
		return nil, err
	}
	var out []Update
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, method, endpoint string, q url.Values, body []byte) (json.RawMessage, error) {
	if c.Token == "" {
		return nil, ErrNoToken
	}
	u := fmt.Sprintf("%s/bot%s/%s", c.BaseURL, c.Token, endpoint)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var ar apiResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return nil, fmt.Errorf("telegram %s: status %d: %s", endpoint, resp.StatusCode, raw)
	}
	if resp.StatusCode != http.StatusOK || !ar.OK {
		return nil, fmt.Errorf("telegram %s: status %d: %s", endpoint, resp.StatusCode, ar.Description)
	}
	return ar.Result, nil
}
