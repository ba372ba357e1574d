package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/seojin/mailflow/internal/queue"
)

// Coordinator owns the orchestrator side: it recovers unfinished instances
// at startup and runs at most one workflow goroutine per email ID. It
// implements queue.TaskHandler; the queue's dequeuer feeds it tasks.
type Coordinator struct {
	instances InstanceStore
	runner    *Runner
	hub       *Hub
	log       zerolog.Logger

	// lifeCtx bounds workflow goroutines. Task contexts only cover the
	// handoff; a workflow outlives the task that launched it.
	lifeCtx context.Context

	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

var _ queue.TaskHandler = (*Coordinator)(nil)

// NewCoordinator creates a Coordinator.
func NewCoordinator(instances InstanceStore, runner *Runner, hub *Hub, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		instances: instances,
		runner:    runner,
		hub:       hub,
		log:       log,
		running:   make(map[string]struct{}),
	}
}

// Start binds the coordinator to its lifetime context and relaunches every
// non-terminal instance in the store. Each resumed run recomputes its
// remaining waits from the persisted deadlines.
func (c *Coordinator) Start(ctx context.Context) error {
	c.lifeCtx = ctx

	unfinished, err := c.instances.ListUnfinishedInstances(ctx)
	if err != nil {
		return fmt.Errorf("recover unfinished workflows: %w", err)
	}
	for _, inst := range unfinished {
		c.launch(inst)
	}
	c.log.Info().Int("count", len(unfinished)).Msg("recovered unfinished workflows")
	return nil
}

// Wait blocks until all workflow goroutines have finished. Call after
// cancelling the lifetime context during shutdown.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// HandleTask dispatches one orchestration task. A returned error makes the
// queue redeliver the task; business-level drops (unknown signal, finished
// workflow) return nil so the task is acknowledged.
func (c *Coordinator) HandleTask(ctx context.Context, task *queue.Task) error {
	log := c.log.With().
		Str("email_id", task.EmailID).
		Str("kind", string(task.Kind)).
		Logger()

	switch task.Kind {
	case queue.TaskStartWorkflow:
		inst, err := c.instances.GetInstance(ctx, task.EmailID)
		if err != nil {
			if errors.Is(err, ErrInstanceNotFound) {
				log.Warn().Msg("start task for unknown instance dropped")
				return nil
			}
			return err
		}
		c.launch(inst)
		return nil

	case queue.TaskSignal:
		kind, err := ParseSignalKind(task.Signal)
		if err != nil {
			log.Error().Err(err).Msg("dropping malformed signal task")
			return nil
		}
		return c.deliver(ctx, task.EmailID, Signal{Kind: kind, Reason: task.Reason}, log)

	default:
		log.Error().Msg("dropping task of unknown kind")
		return nil
	}
}

// deliver routes a signal to the running workflow, launching it first when
// this process is not yet hosting it (e.g. right after a restart).
func (c *Coordinator) deliver(ctx context.Context, emailID string, sig Signal, log zerolog.Logger) error {
	if c.hub.Deliver(emailID, sig) {
		return nil
	}

	inst, err := c.instances.GetInstance(ctx, emailID)
	if err != nil {
		if errors.Is(err, ErrInstanceNotFound) {
			log.Warn().Msg("signal for unknown workflow dropped")
			return nil
		}
		return err
	}
	if inst.Terminal() {
		log.Info().Str("state", string(inst.State)).Msg("signal for finished workflow dropped")
		return nil
	}

	c.launch(inst)

	// The runner registers its signal channel as its first action; give it
	// a short window to come up before asking the queue to redeliver.
	for i := 0; i < 50; i++ {
		if c.hub.Deliver(emailID, sig) {
			return nil
		}
		select {
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("workflow %s did not accept signal %s", emailID, sig.Kind)
}

// launch starts a workflow goroutine unless one is already running for the
// email ID.
func (c *Coordinator) launch(inst *Instance) {
	c.mu.Lock()
	if _, ok := c.running[inst.EmailID]; ok {
		c.mu.Unlock()
		return
	}
	c.running[inst.EmailID] = struct{}{}
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.running, inst.EmailID)
			c.mu.Unlock()
		}()

		if err := c.runner.Run(c.lifeCtx, inst); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Error().Err(err).Str("email_id", inst.EmailID).Msg("workflow run failed")
		}
	}()
}
