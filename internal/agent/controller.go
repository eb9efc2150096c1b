package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/astrabot/internal/capability"
	"github.com/hyperjump/astrabot/internal/models"
	"github.com/hyperjump/astrabot/internal/session"
	"github.com/hyperjump/astrabot/internal/stream"
)

// ErrEmptyMessage is returned for a message with no text.
var ErrEmptyMessage = errors.New("empty message")

// DefaultHistoryWindow is the number of earlier turns the controller considers.
const DefaultHistoryWindow = 5

// Reply is the finished answer to one message.
type Reply struct {
	Text     string   `json:"reply"`
	Language Language `json:"language"`
	// Capabilities lists the capabilities whose results reached synthesis.
	Capabilities []string `json:"capabilities"`
	Declined     bool     `json:"declined"`
	Degraded     bool     `json:"degraded,omitempty"`
}

// Chunks streams the reply text word by word with delay between chunks.
func (r *Reply) Chunks(ctx context.Context, delay time.Duration) iter.Seq2[string, error] {
	return stream.Paced(ctx, r.Text, delay)
}

// Controller runs conversational turns: decide, invoke capabilities, synthesize.
type Controller struct {
	policy      *Policy
	registry    *capability.Registry
	router      Router
	heuristics  []Heuristic
	synthesizer Synthesizer

	window       int
	queryTimeout time.Duration
	parallel     bool
	logger       *zap.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithHeuristics replaces the heuristics tried before the router.
func WithHeuristics(h ...Heuristic) Option {
	return func(c *Controller) { c.heuristics = h }
}

// WithHistoryWindow sets how many earlier turns are considered.
func WithHistoryWindow(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.window = n
		}
	}
}

// WithQueryTimeout bounds each capability query. Zero means no bound beyond the turn context.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *Controller) { c.queryTimeout = d }
}

// WithParallel sets whether capability queries run concurrently.
func WithParallel(parallel bool) Option {
	return func(c *Controller) { c.parallel = parallel }
}

// NewController returns a controller over registry.
func NewController(policy *Policy, registry *capability.Registry, router Router, synth Synthesizer, opts ...Option) (*Controller, error) {
	if policy == nil || registry == nil || router == nil || synth == nil {
		return nil, errors.New("controller requires policy, registry, router and synthesizer")
	}
	c := &Controller{
		policy:      policy,
		registry:    registry,
		router:      router,
		heuristics:  []Heuristic{GreetingHeuristic},
		synthesizer: synth,
		window:      DefaultHistoryWindow,
		parallel:    true,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Policy returns the policy the controller answers under.
func (c *Controller) Policy() *Policy { return c.policy }

// Handle answers message within sess. It fails with models.ErrTurnInProgress when the session is
// busy. A cancelled turn returns the context error and leaves the history unchanged.
func (c *Controller) Handle(ctx context.Context, sess *session.Session, message string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if err := sess.Begin(); err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			sess.End()
		}
	}()

	start := time.Now()
	lang := DetectLanguage(message)
	texts := c.policy.Texts(lang)
	in := Input{
		Policy:       c.policy,
		Capabilities: c.registry.All(),
		Message:      message,
		Window:       sess.Window(c.window),
	}
	logger := c.logger.With(zap.String("session", sess.ID()))

	reply := &Reply{Language: lang, Capabilities: []string{}}
	decision, err := c.Decide(ctx, in)
	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		logger.Error("Routing failed", zap.Error(err))
		reply.Text, reply.Degraded = texts.Apology, true
	case decision.OffTopic:
		reply.Text, reply.Declined = texts.Decline, true
	default:
		sess.Advance(session.Invoking)
		results, err := c.invoke(ctx, decision.Selections, logger)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			reply.Capabilities = append(reply.Capabilities, r.Capability)
		}

		sess.Advance(session.Synthesizing)
		text, err := c.synthesizer.Synthesize(ctx, Request{
			Policy:   c.policy,
			Language: lang,
			Message:  message,
			Window:   in.Window,
			Decision: decision,
			Results:  results,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Error("Generation failed", zap.Error(err))
			text, reply.Degraded = texts.Apology, true
		}
		reply.Text = text
	}

	sess.End(
		models.Turn{Role: models.RoleUser, Content: message},
		models.Turn{Role: models.RoleAssistant, Content: reply.Text},
	)
	committed = true

	logger.Info("Turn completed",
		zap.String("language", string(lang)),
		zap.Strings("capabilities", reply.Capabilities),
		zap.Bool("declined", reply.Declined),
		zap.Bool("degraded", reply.Degraded),
		zap.Duration("duration", time.Since(start)),
	)
	return reply, nil
}

// Decide runs the heuristics in order and then the router.
func (c *Controller) Decide(ctx context.Context, in Input) (Decision, error) {
	for _, h := range c.heuristics {
		if d, ok := h(in); ok {
			return d, nil
		}
	}
	d, err := c.router.Decide(ctx, in)
	if err != nil {
		return Decision{}, fmt.Errorf("route message: %w", err)
	}
	return d, nil
}

// invoke queries the selected capabilities and returns the successful results in selection order.
// It returns an error only when ctx is done.
func (c *Controller) invoke(ctx context.Context, selections []Selection, logger *zap.Logger) ([]models.CapabilityResult, error) {
	results := make([]models.CapabilityResult, len(selections))
	query := func(i int) {
		sel := selections[i]
		results[i] = models.CapabilityResult{Capability: sel.Capability, Query: sel.Query}
		capab, ok := c.registry.Get(sel.Capability)
		if !ok {
			results[i].Err = fmt.Errorf("%w: unknown capability %s", models.ErrToolQueryFailure, sel.Capability)
			return
		}
		qctx := ctx
		if c.queryTimeout > 0 {
			var cancel context.CancelFunc
			qctx, cancel = context.WithTimeout(ctx, c.queryTimeout)
			defer cancel()
		}
		results[i].Passages, results[i].Err = capab.Query(qctx, sel.Query)
	}

	if c.parallel {
		var wg sync.WaitGroup
		for i := range selections {
			wg.Add(1)
			go func() {
				defer wg.Done()
				query(i)
			}()
		}
		wg.Wait()
	} else {
		for i := range selections {
			query(i)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	ok := results[:0]
	for _, r := range results {
		if r.Err != nil {
			logger.Warn("Capability query failed",
				zap.String("capability", r.Capability), zap.Error(r.Err))
			continue
		}
		logger.Debug("Capability queried",
			zap.String("capability", r.Capability), zap.Int("passages", len(r.Passages)))
		ok = append(ok, r)
	}
	return ok, nil
}
