// ABOUTME: HTTP stream source that asks Icecast/Shoutcast servers for interleaved metadata
// ABOUTME: Handles upstream connection with timeouts and exposes the icy-metaint interval
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

type HTTPConfig struct {
	ConnectTimeout time.Duration
	UserAgent      string
	Headers        map[string]string
}

// Stream is an open audio stream. MetaInt is the number of audio bytes between
// metadata blocks, or 0 when the server does not interleave metadata.
type Stream struct {
	Body    io.ReadCloser
	MetaInt int
	Name    string
}

func (s *Stream) Close() error {
	return s.Body.Close()
}

type HTTPSource struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTP(cfg HTTPConfig) *HTTPSource {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "radio-nowplaying/1.0"
	}

	transport := &http.Transport{
		DisableCompression:    true,
		ResponseHeaderTimeout: cfg.ConnectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   0, // No total timeout for streaming
	}

	return &HTTPSource{
		cfg:    cfg,
		client: client,
	}
}

func (h *HTTPSource) Connect(ctx context.Context, url string) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Icy-MetaData", "1")
	req.Header.Set("User-Agent", h.cfg.UserAgent)
	for k, v := range h.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	stream := &Stream{Body: resp.Body, Name: resp.Header.Get("icy-name")}
	if v := resp.Header.Get("icy-metaint"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			resp.Body.Close()
			return nil, fmt.Errorf("invalid icy-metaint %q", v)
		}
		stream.MetaInt = n
	}

	return stream, nil
}
