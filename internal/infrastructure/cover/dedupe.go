// ABOUTME: Cover resolver wrappers shared by all monitors
// ABOUTME: Collapses concurrent lookups for one track and consults a persistent cache first
package cover

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/harper/radio-nowplaying/internal/domain"
)

// Key normalizes a track for cache and flight grouping. Case and surrounding
// whitespace do not make a different record.
func Key(artist, title string) string {
	return strings.ToLower(strings.TrimSpace(artist)) + "|" + strings.ToLower(strings.TrimSpace(title))
}

// Deduped lets monitors tuned to simulcasts of the same station share one
// in-flight lookup.
type Deduped struct {
	next  domain.CoverResolver
	group singleflight.Group
}

func NewDeduped(next domain.CoverResolver) *Deduped {
	return &Deduped{next: next}
}

func (d *Deduped) Resolve(ctx context.Context, artist, title string) (string, error) {
	// A stopping monitor must not fail the lookup for the others waiting on it;
	// the underlying client timeout still bounds the call.
	shared := context.WithoutCancel(ctx)
	v, err, _ := d.group.Do(Key(artist, title), func() (interface{}, error) {
		return d.next.Resolve(shared, artist, title)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

type Store interface {
	LookupCover(ctx context.Context, key string) (string, bool, error)
	SaveCover(ctx context.Context, key, url string) error
}

// Cached only stores hits; a miss is retried on the next distinct identification.
type Cached struct {
	next  domain.CoverResolver
	store Store
	log   logrus.FieldLogger
}

func NewCached(next domain.CoverResolver, store Store, log logrus.FieldLogger) *Cached {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Cached{next: next, store: store, log: log}
}

func (c *Cached) Resolve(ctx context.Context, artist, title string) (string, error) {
	key := Key(artist, title)

	url, ok, err := c.store.LookupCover(ctx, key)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cover cache lookup failed")
	} else if ok {
		return url, nil
	}

	url, err = c.next.Resolve(ctx, artist, title)
	if err != nil || url == "" {
		return url, err
	}

	if err := c.store.SaveCover(ctx, key, url); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cover cache save failed")
	}
	return url, nil
}
