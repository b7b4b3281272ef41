// ABOUTME: AcoustID recognition: fingerprints a clip with fpcalc and looks it up over HTTP
// ABOUTME: Picks the best scoring recording above a minimum score
package identify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/harper/radio-nowplaying/internal/domain"
)

type Fingerprint struct {
	Duration    float64 `json:"duration"`
	Fingerprint string  `json:"fingerprint"`
}

// FingerprintFunc computes the chromaprint of the audio file at path.
type FingerprintFunc func(ctx context.Context, path string) (Fingerprint, error)

type AcoustIDConfig struct {
	URL       string
	ClientKey string
	FPCalc    string
	MinScore  float64
	Timeout   time.Duration
}

type AcoustID struct {
	cfg         AcoustIDConfig
	client      *http.Client
	fingerprint FingerprintFunc
}

type acoustidResponse struct {
	Status string `json:"status"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
	Results []struct {
		Score      float64 `json:"score"`
		Recordings []struct {
			Title   string `json:"title"`
			Artists []struct {
				Name       string `json:"name"`
				JoinPhrase string `json:"joinphrase"`
			} `json:"artists"`
		} `json:"recordings"`
	} `json:"results"`
}

func NewAcoustID(cfg AcoustIDConfig) *AcoustID {
	if cfg.URL == "" {
		cfg.URL = "https://api.acoustid.org/v2/lookup"
	}
	if cfg.FPCalc == "" {
		cfg.FPCalc = "fpcalc"
	}
	if cfg.MinScore == 0 {
		cfg.MinScore = 0.5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}

	a := &AcoustID{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	a.fingerprint = a.fpcalc
	return a
}

// WithFingerprinter replaces fpcalc, mainly for tests.
func (a *AcoustID) WithFingerprinter(fn FingerprintFunc) *AcoustID {
	a.fingerprint = fn
	return a
}

func (a *AcoustID) Identify(ctx context.Context, sample domain.Sample) (*domain.Track, error) {
	fp, err := a.fingerprint(ctx, sample.Path)
	if err != nil {
		return nil, err
	}
	if fp.Fingerprint == "" {
		return nil, domain.ErrNoMatch
	}

	form := url.Values{}
	form.Set("client", a.cfg.ClientKey)
	form.Set("duration", strconv.Itoa(int(fp.Duration)))
	form.Set("fingerprint", fp.Fingerprint)
	form.Set("meta", "recordings")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	var out acoustidResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("parse json (status %d): %w", resp.StatusCode, err)
	}

	if out.Status != "ok" {
		if out.Error != nil {
			return nil, fmt.Errorf("acoustid error: %s", out.Error.Message)
		}
		return nil, fmt.Errorf("acoustid status %q", out.Status)
	}

	return a.best(out)
}

func (a *AcoustID) best(out acoustidResponse) (*domain.Track, error) {
	var found *domain.Track
	var bestScore float64

	for _, r := range out.Results {
		if r.Score < a.cfg.MinScore || (found != nil && r.Score <= bestScore) {
			continue
		}
		for _, rec := range r.Recordings {
			if rec.Title == "" {
				continue
			}

			var artist strings.Builder
			for _, ar := range rec.Artists {
				artist.WriteString(ar.Name)
				artist.WriteString(ar.JoinPhrase)
			}

			found = &domain.Track{Title: rec.Title, Artist: artist.String()}
			bestScore = r.Score
			break
		}
	}

	if found == nil {
		return nil, domain.ErrNoMatch
	}
	return found, nil
}

func (a *AcoustID) fpcalc(ctx context.Context, path string) (Fingerprint, error) {
	out, err := exec.CommandContext(ctx, a.cfg.FPCalc, "-json", path).Output()
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fpcalc: %w", err)
	}

	var fp Fingerprint
	if err := json.Unmarshal(out, &fp); err != nil {
		return Fingerprint{}, fmt.Errorf("parse fpcalc output: %w", err)
	}
	return fp, nil
}
