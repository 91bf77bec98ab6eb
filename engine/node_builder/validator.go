package node_builder

import (
	"context"
	"strconv"

	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/naga"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Validator checks generated source before it reaches a device.
type Validator interface {
	// Validate parses, lowers and validates one stage.
	//
	// Parameters:
	//   - ctx: the context of the compile
	//   - stage: the stage the source was generated for
	//   - source: the generated source
	//
	// Returns:
	//   - error: a *ValidationError describing every problem found, or nil
	Validate(ctx context.Context, stage node.Stage, source string) error
}

// validation is a cached verdict. A nil err is a valid source.
type validation struct {
	err error
}

// nagaValidator is the implementation of the Validator interface backed by the naga WGSL front end.
type nagaValidator struct {
	cache *lru.Cache[uint64, validation]
	group singleflight.Group
}

var _ Validator = &nagaValidator{}

// NewValidator creates a WGSL validator that remembers the verdict of the last size sources.
//
// Parameters:
//   - size: the number of verdicts to cache
//
// Returns:
//   - Validator: the validator
//   - error: an error if size is not positive
func NewValidator(size int) (Validator, error) {
	cache, err := lru.New[uint64, validation](size)
	if err != nil {
		return nil, err
	}
	return &nagaValidator{cache: cache}, nil
}

func (v *nagaValidator) Validate(ctx context.Context, stage node.Stage, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := xxhash.Sum64String(source)
	if res, ok := v.cache.Get(key); ok {
		return res.err
	}
	_, err, _ := v.group.Do(strconv.FormatUint(key, 16), func() (any, error) {
		err := validateWGSL(stage, source)
		v.cache.Add(key, validation{err: err})
		return nil, err
	})
	return err
}

func validateWGSL(stage node.Stage, source string) error {
	fail := func(msgs ...string) error {
		return &ValidationError{Stage: stage, Source: source, Messages: msgs}
	}
	ast, err := naga.Parse(source)
	if err != nil {
		return fail(err.Error())
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return fail(err.Error())
	}
	problems, err := naga.Validate(module)
	if err != nil {
		return fail(err.Error())
	}
	if len(problems) == 0 {
		return nil
	}
	msgs := make([]string, len(problems))
	for i, p := range problems {
		msgs[i] = p.Error()
	}
	return fail(msgs...)
}
