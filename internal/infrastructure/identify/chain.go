// ABOUTME: Ordered identifier chain where the first provider with a match wins
// ABOUTME: Reports ErrNoMatch only when every provider ran cleanly without a match
package identify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/harper/radio-nowplaying/internal/domain"
)

type Provider struct {
	Name string
	domain.Identifier
}

type Chain struct {
	providers []Provider
	log       logrus.FieldLogger
}

func NewChain(log logrus.FieldLogger, providers ...Provider) *Chain {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Chain{providers: providers, log: log}
}

func (c *Chain) Identify(ctx context.Context, sample domain.Sample) (*domain.Track, error) {
	var errs []error

	for _, p := range c.providers {
		found, err := p.Identify(ctx, sample)
		switch {
		case err == nil && found != nil:
			return found, nil
		case err == nil, errors.Is(err, domain.ErrNoMatch):
			continue
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.log.WithError(err).WithField("provider", p.Name).Debug("identify provider failed")
		errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
	}

	if len(errs) == 0 {
		return nil, domain.ErrNoMatch
	}
	return nil, errors.Join(errs...)
}
