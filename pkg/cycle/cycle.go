// Package cycle runs feedback batches through aggregation, blending and
// persistence. A cycle either produces a new snapshot or leaves the store
// exactly as it was.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mchmarny/credscore/pkg/data"
	"github.com/mchmarny/credscore/pkg/score"
	"github.com/mchmarny/credscore/pkg/store"
)

// Batch is one unit of feedback.
type Batch struct {
	Name     string
	Articles []score.Article
}

// Result describes what a cycle did.
type Result struct {
	Batch    string                    `json:"batch" yaml:"batch"`
	Articles int                       `json:"articles" yaml:"articles"`
	Dropped  int                       `json:"dropped" yaml:"dropped"`
	Moved    int                       `json:"moved" yaml:"moved"`
	DryRun   bool                      `json:"dry_run,omitempty" yaml:"dryRun,omitempty"`
	Snapshot *data.SnapshotInfo        `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
	Weights  []score.SourceWeight      `json:"weights" yaml:"weights"`
	Authors  []score.AuthorCredibility `json:"authors" yaml:"authors"`
}

// Option configures a Cycle.
type Option func(*Cycle)

// WithObserver registers fn to be called on every state transition.
func WithObserver(fn func(from, to State)) Option {
	return func(c *Cycle) {
		c.observe = fn
	}
}

// Cycle drives updates of a store. Runs are strictly serialized, each
// persisted table becomes the prior of the next run.
type Cycle struct {
	store   *store.Store
	agg     *score.Aggregator
	blend   *score.Blender
	observe func(from, to State)

	mu    sync.Mutex
	state atomic.Int32
}

// New validates p and creates a cycle over s.
func New(s *store.Store, p score.Params, opts ...Option) (*Cycle, error) {
	if s == nil {
		return nil, errors.New("store required")
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring parameters: %w", err)
	}

	c := &Cycle{
		store: s,
		agg:   score.NewAggregator(p),
		blend: score.NewBlender(p),
	}
	for _, o := range opts {
		o(c)
	}

	return c, nil
}

func (c *Cycle) transition(to State) {
	from := State(c.state.Swap(int32(to)))
	slog.Debug("cycle state", "from", from, "to", to)
	if c.observe != nil {
		c.observe(from, to)
	}
}

// Run applies one batch. A batch with rows none of which survive cleaning
// fails with data.ErrMalformedEvidence before anything is committed. An
// empty batch still produces a snapshot that equals the priors.
func (c *Cycle) Run(ctx context.Context, b Batch) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run(ctx, b, false)
}

// Preview aggregates and blends a batch without committing or persisting.
func (c *Cycle) Preview(ctx context.Context, b Batch) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run(ctx, b, true)
}

// RunAll applies batches in order and stops at the first failure other than
// a malformed batch, which is logged and skipped.
func (c *Cycle) RunAll(ctx context.Context, batches []Batch) ([]*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := make([]*Result, 0, len(batches))
	for _, b := range batches {
		res, err := c.run(ctx, b, false)
		if err != nil {
			if errors.Is(err, data.ErrMalformedEvidence) {
				slog.Info("batch skipped", "batch", b.Name, "reason", err)
				continue
			}
			return list, err
		}
		list = append(list, res)
	}

	return list, nil
}

// State returns the current phase.
func (c *Cycle) State() State {
	return State(c.state.Load())
}

func (c *Cycle) run(ctx context.Context, b Batch, dryRun bool) (*Result, error) {
	if !c.store.Loaded() {
		return nil, errors.New("store must be loaded before running a cycle")
	}
	defer c.transition(Idle)

	c.transition(Aggregating)
	agg := c.agg.Aggregate(b.Articles)
	if agg.Articles == 0 && agg.Dropped > 0 {
		return nil, fmt.Errorf("batch %s: all %d rows dropped: %w", b.Name, agg.Dropped, data.ErrMalformedEvidence)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.transition(Blending)
	prior := c.store.State()
	next := c.blend.Blend(prior.Table, agg.Sources)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		Batch:    b.Name,
		Articles: agg.Articles,
		Dropped:  agg.Dropped,
		Moved:    moved(next),
		DryRun:   dryRun,
		Weights:  next.Ranked(),
		Authors:  agg.Authors,
	}
	if dryRun {
		return res, nil
	}

	snap, err := c.store.Apply(ctx, next, agg.Authors)
	if err != nil {
		return nil, fmt.Errorf("batch %s: %w", b.Name, err)
	}
	c.transition(Persisted)

	info := snap.Info()
	res.Snapshot = &info

	slog.Info("cycle complete",
		"batch", b.Name,
		"articles", res.Articles,
		"dropped", res.Dropped,
		"moved", res.Moved,
		"version", info.Label)

	return res, nil
}

func moved(t score.Table) int {
	n := 0
	for _, r := range t {
		if r.FinalWeight != r.InitialWeight {
			n++
		}
	}
	return n
}
