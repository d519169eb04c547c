// Package classify calls the text-classification endpoint. Like the forum
// client it is an opaque collaborator: one request, one typed response.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"forumpulse/pkg/logx"
)

type Config struct {
	URL string
	// HealthURL is probed by Ping. Default: URL + "/healthz".
	HealthURL string
	Timeout   time.Duration
}

type Result struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type Client struct {
	cfg  Config
	log  logx.Logger
	http *http.Client
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if cfg.URL == "" {
		return nil, errors.New("classifier url is required")
	}
	if strings.TrimSpace(cfg.HealthURL) == "" {
		cfg.HealthURL = cfg.URL + "/healthz"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, log: log, http: &http.Client{Timeout: cfg.Timeout}}, nil
}

// Classify labels a single text.
func (c *Client) Classify(ctx context.Context, text string) (Result, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Result{}, fmt.Errorf("classifier returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var res Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("decode classifier response: %w", err)
	}
	if strings.TrimSpace(res.Label) == "" {
		return Result{}, errors.New("classifier returned empty label")
	}
	return res, nil
}

// Ping probes the classifier's health endpoint. Used as the orchestrator's
// pre-flight collaborator check.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.HealthURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("classifier health returned %s", resp.Status)
	}
	return nil
}
