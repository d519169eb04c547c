// Package forum fetches discussion threads from a Discourse-compatible forum
// API. It is one of the orchestrator's external collaborators: a single
// request/response call with no retry policy of its own (failure handling
// belongs to the orchestrator's accounting).
package forum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"forumpulse/pkg/logx"
)

type Config struct {
	BaseURL string
	// RatePerSec caps outbound requests to stay inside the forum's API limits.
	// Default 2.
	RatePerSec int
	Timeout    time.Duration
}

type Thread struct {
	ID        int64
	Title     string
	Excerpt   string
	Author    string
	Replies   int
	CreatedAt time.Time
}

type Client struct {
	cfg     Config
	log     logx.Logger
	http    *http.Client
	limiter *rate.Limiter
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, errors.New("forum base url is required")
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:     cfg,
		log:     log,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}, nil
}

// latestResponse mirrors the subset of Discourse's /latest.json we consume.
type latestResponse struct {
	TopicList struct {
		Topics []struct {
			ID                 int64  `json:"id"`
			Title              string `json:"title"`
			Excerpt            string `json:"excerpt"`
			PostsCount         int    `json:"posts_count"`
			CreatedAt          string `json:"created_at"`
			LastPosterUsername string `json:"last_poster_username"`
		} `json:"topics"`
	} `json:"topic_list"`
}

// Latest returns the forum's most recent threads.
func (c *Client) Latest(ctx context.Context) ([]Thread, error) {
	body, err := c.get(ctx, "/latest.json")
	if err != nil {
		return nil, err
	}

	var res latestResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode latest topics: %w", err)
	}

	out := make([]Thread, 0, len(res.TopicList.Topics))
	for _, t := range res.TopicList.Topics {
		created, _ := time.Parse(time.RFC3339, t.CreatedAt)
		out = append(out, Thread{
			ID:        t.ID,
			Title:     t.Title,
			Excerpt:   t.Excerpt,
			Author:    t.LastPosterUsername,
			Replies:   t.PostsCount - 1,
			CreatedAt: created,
		})
	}
	return out, nil
}

// Ping verifies the forum API answers. Used as the orchestrator's pre-flight
// collaborator check.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "/latest.json")
	return err
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forum api: %s returned %s", path, resp.Status)
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("forum api: read %s: %w", path, err)
	}
	return buf, nil
}
