// ABOUTME: iTunes Search API cover provider with JSON parsing
// ABOUTME: Rewrites the 100x100 artwork URL to the configured size
package cover

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type ITunesConfig struct {
	URL     string
	Timeout time.Duration
	Size    int
}

type ITunes struct {
	cfg    ITunesConfig
	client *http.Client
}

type itunesResponse struct {
	ResultCount int `json:"resultCount"`
	Results     []struct {
		ArtworkURL100 string `json:"artworkUrl100"`
	} `json:"results"`
}

func NewITunes(cfg ITunesConfig) *ITunes {
	if cfg.URL == "" {
		cfg.URL = "https://itunes.apple.com/search"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Size == 0 {
		cfg.Size = 600
	}

	return &ITunes{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (i *ITunes) Resolve(ctx context.Context, artist, title string) (string, error) {
	term := searchTerm(artist, title)
	if term == "" {
		return "", nil
	}

	q := url.Values{}
	q.Set("term", term)
	q.Set("limit", "1")
	q.Set("media", "music")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.cfg.URL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	var data itunesResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("parse json: %w", err)
	}

	if len(data.Results) == 0 || data.Results[0].ArtworkURL100 == "" {
		return "", nil
	}

	size := strconv.Itoa(i.cfg.Size)
	return strings.Replace(data.Results[0].ArtworkURL100, "100x100", size+"x"+size, 1), nil
}

func searchTerm(artist, title string) string {
	return strings.Join(strings.Fields(artist+" "+title), " ")
}
