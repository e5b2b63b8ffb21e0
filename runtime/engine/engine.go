// Package engine executes a pipeline graph over a persisted State. Failure
// semantics are layered: steps are fail-soft (a failing step records
// status=error on the state), the graph is fail-fast (the engine stops
// advancing the moment a step leaves the state in error), and only
// configuration errors abort the run with a non-nil error from Run.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/finclose/finclose/internal/clock"
	"github.com/finclose/finclose/model/graph"
	"github.com/finclose/finclose/model/types"
	"github.com/finclose/finclose/runtime/execution"
	"github.com/finclose/finclose/service/dao"
	"github.com/finclose/finclose/tracing"
)

// Engine runs one pipeline graph. It is stateless across runs; everything a
// run needs lives in the State and the checkpoint store.
type Engine struct {
	graph       *graph.Graph
	checkpoints dao.Service[string, execution.Checkpoint]
	logger      zerolog.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the step logger; the default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New validates the graph once and returns an engine bound to it and to a
// checkpoint store.
func New(g *graph.Graph, checkpoints dao.Service[string, execution.Checkpoint], options ...Option) (*Engine, error) {
	if g == nil {
		return nil, types.NewConfigurationError("graph is nil")
	}
	if checkpoints == nil {
		return nil, types.NewConfigurationError("checkpoint store is nil")
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	engine := &Engine{
		graph:       g,
		checkpoints: checkpoints,
		logger:      zerolog.Nop(),
	}
	for _, option := range options {
		option(engine)
	}
	return engine, nil
}

// Run executes the graph until the terminal sentinel or until a step leaves
// the state in error. A checkpoint is saved under threadID after every
// completed step; calling Run again with the same threadID resumes from the
// last persisted step instead of restarting. The returned error is non-nil
// only for configuration or checkpoint-storage failures — step outcomes are
// reported via State.Status and State.Error.
func (e *Engine) Run(ctx context.Context, initial *execution.State, threadID string) (*execution.State, error) {
	if threadID == "" {
		return nil, types.NewConfigurationError("thread id is required")
	}
	if initial == nil {
		return nil, types.NewConfigurationError("initial state is nil")
	}

	state := initial
	next := e.graph.EntryNode()

	checkpoint, err := e.checkpoints.Load(ctx, threadID)
	switch {
	case err == nil && checkpoint != nil:
		if checkpoint.State != nil {
			state = checkpoint.State
		}
		if checkpoint.Next != "" {
			next = checkpoint.Next
		}
		if state.Status.IsTerminal() || next == graph.End {
			return state, nil
		}
		e.logger.Info().Str("pipeline", e.graph.Name).Str("thread", threadID).
			Str("step", next).Msg("resuming from checkpoint")
	case errors.Is(err, dao.ErrNotFound) || (err == nil && checkpoint == nil):
		state.Status = execution.StatusInProgress
	default:
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", threadID, err)
	}

	return e.advance(ctx, state, threadID, next)
}

// Retry resumes a run that halted in status=error: the error is cleared and
// execution restarts at the step that failed, keeping everything before it.
func (e *Engine) Retry(ctx context.Context, threadID string) (*execution.State, error) {
	checkpoint, err := e.checkpoints.Load(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", threadID, err)
	}
	state := checkpoint.State
	if state == nil || state.Status != execution.StatusError {
		return nil, types.NewConfigurationError("thread %s is not in error state", threadID)
	}
	state.Status = execution.StatusInProgress
	state.Error = ""
	return e.advance(ctx, state, threadID, checkpoint.Next)
}

func (e *Engine) advance(ctx context.Context, state *execution.State, threadID, next string) (*execution.State, error) {
	for next != graph.End {
		node := e.graph.Node(next)
		if node == nil {
			// graph validation makes this unreachable unless the checkpoint
			// predates a graph change
			return state, types.NewConfigurationError("checkpointed step %q is not in graph %q", next, e.graph.Name)
		}

		e.logger.Info().Str("pipeline", e.graph.Name).Str("thread", threadID).
			Str("step", node.Name).Msg("running step")

		messages, stepErr := e.invoke(ctx, node, state)
		state.Append(messages...)

		if stepErr != nil {
			state.Fail(stepErr)
		}
		if state.Status == execution.StatusError {
			e.logger.Error().Str("pipeline", e.graph.Name).Str("thread", threadID).
				Str("step", node.Name).Str("error", state.Error).Msg("step failed, halting run")
			if err := e.save(ctx, threadID, node.Name, node.Name, state); err != nil {
				return state, err
			}
			return state, nil
		}

		to, routeErr := e.route(node, state)
		if routeErr != nil {
			_ = e.save(ctx, threadID, node.Name, node.Name, state)
			return state, routeErr
		}
		if err := e.save(ctx, threadID, node.Name, to, state); err != nil {
			return state, err
		}
		next = to
	}
	return state, nil
}

// invoke runs one handler inside a tracing span, converting panics to step
// errors so a misbehaving step cannot take the engine down.
func (e *Engine) invoke(ctx context.Context, node *graph.Node, state *execution.State) (messages []execution.Message, err error) {
	ctx, span := tracing.StartSpan(ctx, "step."+node.Name, map[string]string{
		"pipeline": e.graph.Name,
	})
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", node.Name, r)
		}
		span.SetStatus(err)
		span.End()
	}()
	return node.Handler(ctx, state)
}

// route dereferences the edge table after a completed step. An unknown branch
// key is a configuration error, not a data error: it aborts the run.
func (e *Engine) route(node *graph.Node, state *execution.State) (string, error) {
	if !node.IsDecision() {
		return node.Next, nil
	}
	branch := node.Selector(state)
	to, ok := node.Targets[branch]
	if !ok {
		return "", types.NewConfigurationError("step %q selector returned unknown branch %q", node.Name, branch)
	}
	return to, nil
}

func (e *Engine) save(ctx context.Context, threadID, step, next string, state *execution.State) error {
	checkpoint := &execution.Checkpoint{
		ThreadID:  threadID,
		Pipeline:  e.graph.Name,
		Step:      step,
		Next:      next,
		State:     state,
		UpdatedAt: clock.Now(),
	}
	if err := e.checkpoints.Save(ctx, checkpoint); err != nil {
		return fmt.Errorf("failed to checkpoint thread %s after step %s: %w", threadID, step, err)
	}
	return nil
}
