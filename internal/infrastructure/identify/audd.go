// ABOUTME: AudD recognition client uploading captured clips over multipart HTTP
// ABOUTME: Maps a null result to domain.ErrNoMatch and API errors to wrapped errors
package identify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/harper/radio-nowplaying/internal/domain"
)

type AudDConfig struct {
	URL      string
	APIToken string
	Timeout  time.Duration
}

type AudD struct {
	cfg    AudDConfig
	client *http.Client
}

type auddResponse struct {
	Status string `json:"status"`
	Result *struct {
		Artist string `json:"artist"`
		Title  string `json:"title"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"error_code"`
		Message string `json:"error_message"`
	} `json:"error"`
}

func NewAudD(cfg AudDConfig) *AudD {
	if cfg.URL == "" {
		cfg.URL = "https://api.audd.io/"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}

	return &AudD{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (a *AudD) Identify(ctx context.Context, sample domain.Sample) (*domain.Track, error) {
	body, contentType, err := a.buildForm(sample.Path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var out auddResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	if out.Status != "success" {
		if out.Error != nil {
			return nil, fmt.Errorf("audd error %d: %s", out.Error.Code, out.Error.Message)
		}
		return nil, fmt.Errorf("audd status %q", out.Status)
	}
	if out.Result == nil {
		return nil, domain.ErrNoMatch
	}

	return &domain.Track{Title: out.Result.Title, Artist: out.Result.Artist}, nil
}

func (a *AudD) buildForm(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open sample: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if a.cfg.APIToken != "" {
		if err := w.WriteField("api_token", a.cfg.APIToken); err != nil {
			return nil, "", fmt.Errorf("write form: %w", err)
		}
	}

	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("write form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy sample: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}
