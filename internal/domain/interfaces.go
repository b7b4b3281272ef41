// ABOUTME: Domain interfaces for the collaborators a monitor drives
// ABOUTME: Capture, identification and cover lookup stay behind these so monitors can be tested with fakes
package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNoMatch is returned by an Identifier when the sample was analysed but no track matched.
var ErrNoMatch = errors.New("no match")

// Sample is a captured clip of a stream.
type Sample struct {
	Path   string
	Stream string
}

// Track is an identification result.
type Track struct {
	Title  string
	Artist string
}

// Capturer records a short clip of a stream into outputPath.
type Capturer interface {
	Capture(ctx context.Context, stream string, duration time.Duration, outputPath string) error
}

// Identifier names the track heard in a sample.
type Identifier interface {
	Identify(ctx context.Context, sample Sample) (*Track, error)
}

// CoverResolver finds artwork for a track. An empty URL with a nil error means none was found.
type CoverResolver interface {
	Resolve(ctx context.Context, artist, title string) (string, error)
}
