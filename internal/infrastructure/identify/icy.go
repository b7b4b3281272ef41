// ABOUTME: Identifier reading the in-band StreamTitle a station broadcasts itself
// ABOUTME: Used as a fallback when fingerprinting finds no match
package identify

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/harper/radio-nowplaying/internal/domain"
	"github.com/harper/radio-nowplaying/internal/infrastructure/icy"
	"github.com/harper/radio-nowplaying/internal/infrastructure/source"
)

// StreamConnector opens a stream with ICY metadata requested.
type StreamConnector interface {
	Connect(ctx context.Context, url string) (*source.Stream, error)
}

type ICY struct {
	src       StreamConnector
	timeout   time.Duration
	maxBlocks int
}

func NewICY(src StreamConnector, timeout time.Duration) *ICY {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ICY{src: src, timeout: timeout, maxBlocks: 3}
}

func (i *ICY) Identify(ctx context.Context, sample domain.Sample) (*domain.Track, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	stream, err := i.src.Connect(ctx, sample.Stream)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer stream.Close()

	if stream.MetaInt == 0 {
		return nil, fmt.Errorf("%w: stream carries no icy metadata", domain.ErrNoMatch)
	}

	// Some servers send empty blocks until the title changes; give up after a few.
	for n := 0; n < i.maxBlocks; n++ {
		if _, err := io.CopyN(io.Discard, stream.Body, int64(stream.MetaInt)); err != nil {
			return nil, fmt.Errorf("skip audio: %w", err)
		}

		meta, err := icy.ReadBlock(stream.Body)
		if err != nil {
			return nil, err
		}

		artist, title := icy.SplitTitle(icy.ParseStreamTitle(meta))
		if title != "" {
			return &domain.Track{Title: title, Artist: artist}, nil
		}
	}

	return nil, domain.ErrNoMatch
}
