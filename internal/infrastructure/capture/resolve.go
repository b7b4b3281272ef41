// ABOUTME: Page-to-media resolution through yt-dlp for streams published as web pages
// ABOUTME: Plain Icecast/Shoutcast addresses pass through untouched
package capture

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/lrstanley/go-ytdlp"
)

var pageHosts = []string{"youtube.com", "youtu.be", "twitch.tv", "soundcloud.com", "mixcloud.com"}

type YTDLP struct {
	format string
}

func NewYTDLP() *YTDLP {
	return &YTDLP{format: "bestaudio/best"}
}

func (y *YTDLP) Handles(stream string) bool {
	return isPageURL(stream)
}

func (y *YTDLP) Resolve(ctx context.Context, page string) (string, error) {
	res, err := ytdlp.New().
		Format(y.format).
		NoPlaylist().
		NoWarnings().
		GetURL().
		Run(ctx, page)
	if err != nil {
		return "", fmt.Errorf("yt-dlp: %w", err)
	}

	media := firstLine(res.Stdout)
	if media == "" {
		return "", fmt.Errorf("yt-dlp returned no media url for %s", page)
	}
	return media, nil
}

func isPageURL(stream string) bool {
	u, err := url.Parse(stream)
	if err != nil {
		return false
	}

	host := strings.ToLower(u.Hostname())
	for _, h := range pageHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
