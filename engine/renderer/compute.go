package renderer

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/node_builder"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
)

// computeObject is the cached state of one compute node: its program, pipeline and bind groups.
type computeObject struct {
	node     *node.ComputeNode
	program  *node_builder.Program
	pipeline pipeline.Pipeline
	states   [3]*bindingState
}

func (co *computeObject) providers() []bind_group_provider.BindGroupProvider {
	out := make([]bind_group_provider.BindGroupProvider, len(co.states))
	for i, s := range co.states {
		out[i] = s.provider
	}
	return out
}

func (co *computeObject) release() {
	for _, s := range co.states {
		if s != nil {
			s.provider.Release()
		}
	}
}

func (r *renderer) Compute(nodes ...*node.ComputeNode) error {
	if err := r.ready(); err != nil {
		return err
	}
	if !r.backend.HasFeature(node.FeatureComputeShaders) {
		return fmt.Errorf("%w: %s has no compute shaders", ErrUnsupportedBackend, r.backend.Type())
	}
	if len(nodes) == 0 {
		return nil
	}
	r.BeginFrame()

	objects := make([]*computeObject, 0, len(nodes))
	for _, n := range nodes {
		co, err := r.computeObject(n)
		if err != nil {
			return err
		}
		objects = append(objects, co)
	}

	group := &ComputeGroup{ID: r.frame.RenderID, Label: "compute"}
	r.backend.InitTimestampQuery(TimestampQueryCompute, group.ID)
	if err := r.backend.BeginCompute(group); err != nil {
		return err
	}
	for _, co := range objects {
		r.frame.SetObject(co.node, nil)
		for _, u := range co.program.Updaters {
			if err := r.frame.UpdateNode(u); err != nil {
				return fmt.Errorf("update node %d: %w", u.ID(), err)
			}
		}
		for _, s := range co.states {
			if err := r.updateBindingState(s); err != nil {
				return err
			}
		}
		if err := r.backend.Compute(group, co.pipeline, co.providers(), co.node.DispatchSize()); err != nil {
			return err
		}
		r.info.RecordDispatch()
	}
	r.frame.SetObject(nil, nil)
	return r.backend.FinishCompute(group)
}

// computeObject returns the cached state of n, compiling its program and pipeline on first use.
func (r *renderer) computeObject(n *node.ComputeNode) (*computeObject, error) {
	r.mu.Lock()
	co, ok := r.computes[n.ID()]
	r.mu.Unlock()
	if ok {
		return co, nil
	}

	label := fmt.Sprintf("compute-%d", n.ID())
	prog, err := r.programs.Get(context.Background(), node_builder.Graph{Label: label, Compute: n})
	if err != nil {
		return nil, err
	}
	p, err := pipeline.NewPipeline(prog, pipeline.WithLabel(label))
	if err != nil {
		return nil, err
	}
	if err := r.backend.CreateComputePipeline(p); err != nil {
		return nil, err
	}
	r.info.AddObjects(ObjectPipelines, 1)

	co = &computeObject{node: n, program: prog, pipeline: p}
	for g := range co.states {
		co.states[g] = newBindingState(fmt.Sprintf("%s/%d", label, g), uint32(g), prog)
	}
	r.mu.Lock()
	r.computes[n.ID()] = co
	r.mu.Unlock()
	return co, nil
}
