// Package news talks to the program's news API and keeps a short-lived copy
// of the published items.
package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// ErrAPI marks failures reported by the news API itself.
var ErrAPI = errors.New("news api")

const statusPublished = "published"

// Item is one news entry as served by GET /news.
type Item struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Date      string `json:"date"`
	Link      string `json:"link,omitempty"`
	Status    string `json:"status,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// Client fetches the news list.
type Client struct {
	base      string
	http      *http.Client
	userAgent string
}

// NewClient targets apiBase, for example http://127.0.0.1:5000/api.
func NewClient(apiBase string, timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base:      strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch returns every item the API reports, unfiltered.
func (c *Client) Fetch(ctx context.Context) ([]Item, error) {
	if c.base == "" {
		return nil, fmt.Errorf("%w: api base not configured", ErrAPI)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/news", nil)
	if err != nil {
		return nil, fmt.Errorf("construct news request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %s (%s)", ErrAPI, resp.Status, strings.TrimSpace(string(data)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode news response: %w", err)
	}
	if !env.Success {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = "取得最新消息失敗"
		}
		return nil, fmt.Errorf("%w: %s", ErrAPI, msg)
	}

	var items []Item
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &items); err != nil {
			return nil, fmt.Errorf("decode news items: %w", err)
		}
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

// Published keeps published items newest first. The public API omits the
// status field, so an empty status counts as published. Items with
// unparsable dates sort after dated ones, otherwise order is stable.
func Published(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		status := strings.ToLower(strings.TrimSpace(item.Status))
		if status == "" || status == statusPublished {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := parseDate(out[i].Date, time.UTC)
		b, bok := parseDate(out[j].Date, time.UTC)
		if aok != bok {
			return aok
		}
		return aok && a.After(b)
	})
	return out
}
