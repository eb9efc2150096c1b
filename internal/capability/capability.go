// Package capability wraps a collection index as a named, described retrieval tool.
package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/astrabot/internal/models"
)

// DefaultTopK is the number of passages a query returns.
const DefaultTopK = 3

// Searcher is the retrieval surface a capability binds to.
type Searcher interface {
	Search(ctx context.Context, text string, k int) ([]*models.Passage, error)
}

// Capability is an immutable retrieval tool over one collection.
type Capability struct {
	name        string
	fullName    string
	description string
	keywords    []string
	topK        int
	index       Searcher
}

// Option configures a Capability.
type Option func(*Capability)

// WithTopK sets how many passages Query returns.
func WithTopK(k int) Option {
	return func(c *Capability) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithFullName sets the display name.
func WithFullName(name string) Option {
	return func(c *Capability) { c.fullName = name }
}

// WithKeywords sets the routing keywords used by the keyword router.
func WithKeywords(keywords ...string) Option {
	return func(c *Capability) {
		c.keywords = nil
		for _, k := range keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				c.keywords = append(c.keywords, k)
			}
		}
	}
}

// New binds name and description to index.
func New(name, description string, index Searcher, opts ...Option) (*Capability, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("capability name is required")
	}
	if index == nil {
		return nil, fmt.Errorf("capability %s: index is required", name)
	}
	c := &Capability{
		name:        name,
		fullName:    name,
		description: description,
		topK:        DefaultTopK,
		index:       index,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Capability) Name() string        { return c.name }
func (c *Capability) FullName() string    { return c.fullName }
func (c *Capability) Description() string { return c.description }
func (c *Capability) TopK() int           { return c.topK }

// Keywords returns a copy of the routing keywords.
func (c *Capability) Keywords() []string {
	return append([]string(nil), c.keywords...)
}

// Query returns up to TopK passages for text, best first.
// Failures wrap models.ErrToolQueryFailure.
func (c *Capability) Query(ctx context.Context, text string) ([]*models.Passage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s: empty query", models.ErrToolQueryFailure, c.name)
	}
	passages, err := c.index.Search(ctx, text, c.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", models.ErrToolQueryFailure, c.name, err)
	}
	if len(passages) > c.topK {
		passages = passages[:c.topK]
	}
	return passages, nil
}
