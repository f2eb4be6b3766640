// Package intent decides what a support query is asking for.
//
// Classification runs an ordered chain of strategies. Each strategy either
// returns a definitive result or declines, and the first definitive result
// wins. Cheap deterministic rules come first so the model is only consulted
// when they cannot decide; the chain always ends in a fixed fallback.
package intent

import (
	"context"
	"fmt"

	"supportbot/internal/domain"
	"supportbot/internal/logger"
)

// Strategy is one link in the classification chain. ok=false means
// "not applicable"; the next strategy is tried.
type Strategy interface {
	Name() string
	Classify(ctx context.Context, query string) (result domain.ClassificationResult, ok bool)
}

// Fallback is returned when every strategy declines.
var Fallback = domain.ClassificationResult{Intent: domain.IntentGeneralQuery, Confidence: 0.5, Source: "fallback"}

type Classifier struct {
	strategies []Strategy
	log        logger.Logger
}

type Option func(*Classifier)

func WithLogger(l logger.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.log = l
		}
	}
}

// WithStrategies replaces the default chain.
func WithStrategies(s ...Strategy) Option {
	return func(c *Classifier) { c.strategies = s }
}

// New builds the default chain. model may be nil, in which case every query
// the rules cannot decide gets the fallback.
func New(model domain.Completer, maxQueryRunes int, opts ...Option) *Classifier {
	c := &Classifier{log: logger.GetDefault()}
	for _, o := range opts {
		o(c)
	}
	if c.strategies == nil {
		c.strategies = DefaultStrategies(model, maxQueryRunes, c.log)
	}
	c.log = c.log.With("component", "classifier")
	return c
}

// DefaultStrategies is the standard chain: empty, greeting, length ceiling,
// keyword rules, then the model.
func DefaultStrategies(model domain.Completer, maxQueryRunes int, log logger.Logger) []Strategy {
	return []Strategy{
		Empty{},
		Greeting{},
		LengthCeiling{MaxRunes: maxQueryRunes},
		Keywords{},
		NewModelStrategy(model, log),
	}
}

// Classify never fails. A panicking strategy is logged and skipped.
func (c *Classifier) Classify(ctx context.Context, query string) domain.ClassificationResult {
	for _, s := range c.strategies {
		res, ok, err := c.try(ctx, s, query)
		if err != nil {
			c.log.Warn("Classification strategy failed; trying next", "strategy", s.Name(), "error", err)
			continue
		}
		if ok {
			if res.Source == "" {
				res.Source = s.Name()
			}
			res.Confidence = clamp01(res.Confidence)
			c.log.Debug("Query classified", "intent", res.Intent, "confidence", res.Confidence, "strategy", res.Source)
			return res
		}
	}
	return Fallback
}

func (c *Classifier) try(ctx context.Context, s Strategy, query string) (res domain.ClassificationResult, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	res, ok = s.Classify(ctx, query)
	return res, ok, nil
}

func clamp01(v float64) float64 {
	switch {
	case v != v || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
