package location

import (
	"context"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/pitabwire/reportal/internal/observability"
	"github.com/pitabwire/reportal/model"
)

// Defaults for office classification.
const (
	DefaultDesignatedSuffix  = "BO"
	DefaultClassificationTTL = 30 * time.Minute
)

// OfficeSource lists offices for classification.
type OfficeSource interface {
	Offices(ctx context.Context) ([]model.Office, error)
}

// Classifier caches which offices carry the designated name suffix. One
// instance is shared by the whole process; entries expire after the TTL and
// can be dropped early with Invalidate.
type Classifier struct {
	source OfficeSource
	suffix string
	ttl    time.Duration
	now    func() time.Time
	onHit  func()
	onMiss func()

	mu         sync.Mutex
	designated map[string]bool
	expiresAt  time.Time
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithSuffix sets the designated suffix.
func WithSuffix(suffix string) ClassifierOption {
	return func(c *Classifier) { c.suffix = suffix }
}

// WithTTL sets how long a computed classification stays valid.
func WithTTL(ttl time.Duration) ClassifierOption {
	return func(c *Classifier) { c.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ClassifierOption {
	return func(c *Classifier) { c.now = now }
}

// WithCacheHooks registers callbacks for cache hits and misses.
func WithCacheHooks(hit, miss func()) ClassifierOption {
	return func(c *Classifier) {
		c.onHit = hit
		c.onMiss = miss
	}
}

// NewClassifier creates a Classifier over source.
func NewClassifier(source OfficeSource, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		source: source,
		suffix: DefaultDesignatedSuffix,
		ttl:    DefaultClassificationTTL,
		now:    time.Now,
		onHit:  func() {},
		onMiss: func() {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute returns office name → designated. A cached value younger than
// the TTL is returned as is; otherwise the offices are fetched again.
// Concurrent callers wait for a single computation.
func (c *Classifier) GetOrCompute(ctx context.Context) (_ map[string]bool, err error) {
	ctx, span := observability.StartSpan(ctx, "location.classify")
	defer func() { observability.EndSpanWithError(span, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.designated != nil && c.now().Before(c.expiresAt) {
		span.SetAttributes(observability.AttrCacheHit.Bool(true))
		c.onHit()
		return maps.Clone(c.designated), nil
	}
	span.SetAttributes(observability.AttrCacheHit.Bool(false))
	c.onMiss()

	offices, err := c.source.Offices(ctx)
	if err != nil {
		return nil, err
	}
	designated := make(map[string]bool, len(offices))
	for _, o := range offices {
		designated[o.Name] = c.matches(o.Name)
	}
	c.designated = designated
	c.expiresAt = c.now().Add(c.ttl)
	return maps.Clone(designated), nil
}

// IsDesignated reports whether the named office carries the suffix. Names not
// present in the office list are classified by name alone.
func (c *Classifier) IsDesignated(ctx context.Context, name string) (bool, error) {
	all, err := c.GetOrCompute(ctx)
	if err != nil {
		return false, err
	}
	if d, ok := all[name]; ok {
		return d, nil
	}
	return c.matches(name), nil
}

// Invalidate drops the cached classification.
func (c *Classifier) Invalidate() {
	c.mu.Lock()
	c.designated = nil
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

// matches reports whether the last word of name is the suffix, ignoring
// case. "Gulu BO" matches "BO"; "Jumbo" does not.
func (c *Classifier) matches(name string) bool {
	words := strings.Fields(name)
	if len(words) == 0 || c.suffix == "" {
		return false
	}
	return strings.EqualFold(words[len(words)-1], strings.TrimSpace(c.suffix))
}
