// Package pagerank computes damped PageRank over a linkgraph.Graph by power
// iteration.
//
// Each iteration redistributes Alpha of the mass uniformly, spreads the mass
// of dangling nodes uniformly, and pushes the rest along out-links in
// proportion to edge weight:
//
//	next[i] = Alpha/N + (1-Alpha)*dangling/N + (1-Alpha)*sum(prev[j]*w(j,i)/outdeg(j))
//
// Scores always sum to one. Work is split by target node and every target
// sums its in-links in a fixed order, so the worker count never changes the
// result.
package pagerank

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/JakeFAU/linkrank/internal/linkgraph"
	"github.com/JakeFAU/linkrank/internal/metrics"
)

// ErrInvalidParams is returned when Params fail validation.
var ErrInvalidParams = errors.New("invalid pagerank parameters")

// Defaults.
const (
	DefaultAlpha         = 0.1
	DefaultEpsilon       = 1e-6
	DefaultMaxIterations = 1000
)

const progressEvery = 25

// Termination reports why the iteration stopped.
type Termination int

// Termination reasons.
const (
	Converged Termination = iota + 1
	IterationCap
)

func (t Termination) String() string {
	switch t {
	case Converged:
		return "converged"
	case IterationCap:
		return "iteration_cap"
	default:
		return "unknown"
	}
}

// Params tunes a ranking run.
type Params struct {
	// Alpha is the share of mass redistributed uniformly each iteration.
	Alpha float64 `mapstructure:"alpha"`
	// Epsilon is the convergence bound on the largest per-node change.
	Epsilon       float64 `mapstructure:"epsilon"`
	MaxIterations int     `mapstructure:"max_iterations"`
	// Workers splits each iteration across goroutines. Zero means one.
	Workers int `mapstructure:"workers"`

	// Observer, when set, sees every iterate. It must not modify or keep scores.
	Observer func(iteration int, scores []float64) `mapstructure:"-"`
	Logger   *zap.Logger                           `mapstructure:"-"`
}

// DefaultParams returns the standard tuning.
func DefaultParams() Params {
	return Params{
		Alpha:         DefaultAlpha,
		Epsilon:       DefaultEpsilon,
		MaxIterations: DefaultMaxIterations,
		Workers:       1,
	}
}

// Validate checks the numeric ranges.
func (p Params) Validate() error {
	switch {
	case math.IsNaN(p.Alpha) || p.Alpha < 0 || p.Alpha > 1:
		return fmt.Errorf("%w: alpha must be in [0,1], got %v", ErrInvalidParams, p.Alpha)
	case math.IsNaN(p.Epsilon) || p.Epsilon <= 0:
		return fmt.Errorf("%w: epsilon must be > 0, got %v", ErrInvalidParams, p.Epsilon)
	case p.MaxIterations < 1:
		return fmt.Errorf("%w: max iterations must be >= 1, got %d", ErrInvalidParams, p.MaxIterations)
	case p.Workers < 0:
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidParams, p.Workers)
	}
	return nil
}

// Result is the outcome of a ranking run. Scores is indexed by document id.
type Result struct {
	Scores      []float64
	Termination Termination
	Iterations  int
	// Delta is the largest per-node change in the last iteration.
	Delta float64
}

// Rank runs power iteration over g until the largest per-node change drops
// below Epsilon or MaxIterations is reached. Hitting the cap is not an error;
// it is reported through Result.Termination.
func Rank(ctx context.Context, g *linkgraph.Graph, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("pagerank")

	n := g.Len()
	if n == 0 {
		return Result{Scores: []float64{}, Termination: Converged}, nil
	}

	e := newEngine(g, p)
	prev := make([]float64, n)
	floats.AddConst(1/float64(n), prev)
	next := make([]float64, n)

	start := time.Now()
	res := Result{Termination: IterationCap}
	for iter := 1; iter <= p.MaxIterations; iter++ {
		if err := e.step(ctx, prev, next); err != nil {
			return Result{}, fmt.Errorf("iteration %d: %w", iter, err)
		}
		delta := floats.Distance(next, prev, math.Inf(1))
		if p.Observer != nil {
			p.Observer(iter, next)
		}
		prev, next = next, prev
		res.Iterations = iter
		res.Delta = delta

		if iter%progressEvery == 0 {
			logger.Debug("rank progress",
				zap.Int("iteration", iter),
				zap.Int("max_iterations", p.MaxIterations),
				zap.Float64("delta", delta),
			)
		}
		if delta < p.Epsilon {
			res.Termination = Converged
			break
		}
	}
	res.Scores = prev

	metrics.ObserveRank(res.Termination.String(), res.Iterations)
	fields := []zap.Field{
		zap.Int("nodes", n),
		zap.Int("edges", g.EdgeCount()),
		zap.Stringer("termination", res.Termination),
		zap.Int("iterations", res.Iterations),
		zap.Float64("delta", res.Delta),
		zap.Float64("mass", floats.Sum(res.Scores)),
		zap.Duration("dur", time.Since(start)),
	}
	if res.Termination == IterationCap {
		logger.Warn("pagerank hit the iteration cap before converging", fields...)
	} else {
		logger.Info("pagerank converged", fields...)
	}
	return res, nil
}

type engine struct {
	g        *linkgraph.Graph
	alpha    float64
	n        float64
	invOut   []float64
	dangling []int
	chunks   [][2]int
}

func newEngine(g *linkgraph.Graph, p Params) *engine {
	n := g.Len()
	invOut := make([]float64, n)
	for id := range n {
		if d := g.OutDegree(id); d > 0 {
			invOut[id] = 1 / float64(d)
		}
	}
	return &engine{
		g:        g,
		alpha:    p.Alpha,
		n:        float64(n),
		invOut:   invOut,
		dangling: g.Dangling(),
		chunks:   partition(n, max(p.Workers, 1)),
	}
}

// step fills next from prev. Chunks write disjoint ranges of next.
func (e *engine) step(ctx context.Context, prev, next []float64) error {
	var dangling float64
	for _, id := range e.dangling {
		dangling += prev[id]
	}
	base := e.alpha/e.n + (1-e.alpha)*dangling/e.n

	if len(e.chunks) == 1 {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.accumulate(prev, next, base, 0, len(next))
		return nil
	}

	group, gctx := errgroup.WithContext(ctx)
	for _, c := range e.chunks {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e.accumulate(prev, next, base, c[0], c[1])
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return fmt.Errorf("accumulate: %w", err)
	}
	return nil
}

func (e *engine) accumulate(prev, next []float64, base float64, lo, hi int) {
	damp := 1 - e.alpha
	for i := lo; i < hi; i++ {
		var sum float64
		for _, in := range e.g.Inbound(i) {
			sum += prev[in.From] * float64(in.Weight) * e.invOut[in.From]
		}
		next[i] = base + damp*sum
	}
}

// partition splits [0,n) into at most k contiguous non-empty ranges.
func partition(n, k int) [][2]int {
	k = min(k, n)
	if k <= 1 {
		return [][2]int{{0, n}}
	}
	chunks := make([][2]int, 0, k)
	size, rem := n/k, n%k
	lo := 0
	for i := range k {
		hi := lo + size
		if i < rem {
			hi++
		}
		chunks = append(chunks, [2]int{lo, hi})
		lo = hi
	}
	return chunks
}
