package renderer

import (
	"context"
	"strconv"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/node_builder"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// programCache maps graph keys to compiled programs. Concurrent requests for the same key share one compile and
// failed compiles are never stored, so a fixed graph compiles on its next request.
type programCache struct {
	mu       *sync.Mutex
	builder  node_builder.NodeBuilder
	programs map[uint64]*node_builder.Program
	flight   *singleflight.Group
	executor *common.Executor
	tracer   trace.Tracer
	info     *Info
	logger   *zap.Logger
}

func newProgramCache(builder node_builder.NodeBuilder, executor *common.Executor, tracer trace.Tracer, info *Info, logger *zap.Logger) *programCache {
	return &programCache{
		mu:       &sync.Mutex{},
		builder:  builder,
		programs: map[uint64]*node_builder.Program{},
		flight:   &singleflight.Group{},
		executor: executor,
		tracer:   tracer,
		info:     info,
		logger:   logger,
	}
}

func (c *programCache) lookup(key uint64) (*node_builder.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.programs[key]
	return p, ok
}

// Get returns the program of g, compiling it on a miss.
//
// Parameters:
//   - ctx: bounds the compile
//   - g: the graph
//
// Returns:
//   - *node_builder.Program: the program
//   - error: a *ProgramError wrapping the compile diagnostics
func (c *programCache) Get(ctx context.Context, g node_builder.Graph) (*node_builder.Program, error) {
	key, err := c.builder.Key(g)
	if err != nil {
		return nil, &ProgramError{Material: g.Label, Err: err}
	}
	if p, ok := c.lookup(key); ok {
		c.info.recordLookup("program", true)
		return p, nil
	}
	c.info.recordLookup("program", false)

	v, err, _ := c.flight.Do(strconv.FormatUint(key, 16), func() (any, error) {
		if p, ok := c.lookup(key); ok {
			return p, nil
		}
		ctx, span := c.tracer.Start(ctx, "renderer.compile", trace.WithAttributes(
			attribute.String("graph", g.Label),
			attribute.String("target", c.builder.Target().String()),
		))
		defer span.End()

		p, err := c.builder.Compile(ctx, g)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		c.mu.Lock()
		c.programs[key] = p
		c.mu.Unlock()
		c.info.recordCompile()
		c.info.AddObjects(ObjectPrograms, 1)
		c.logger.Debug("program compiled", zap.String("graph", g.Label), zap.Uint64("program", key))
		return p, nil
	})
	if err != nil {
		return nil, &ProgramError{Material: g.Label, Err: err}
	}
	return v.(*node_builder.Program), nil
}

// GetAsync compiles g on the executor.
func (c *programCache) GetAsync(g node_builder.Graph) *common.Future[*node_builder.Program] {
	return common.Submit(c.executor, func() (*node_builder.Program, error) {
		return c.Get(context.Background(), g)
	})
}

// CompileAll compiles graphs concurrently and returns the first error.
func (c *programCache) CompileAll(ctx context.Context, graphs []node_builder.Graph) ([]*node_builder.Program, error) {
	out := make([]*node_builder.Program, len(graphs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for i, g := range graphs {
		eg.Go(func() error {
			p, err := c.Get(ctx, g)
			if err != nil {
				return err
			}
			out[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *programCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.programs)
}
