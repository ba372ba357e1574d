package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/seojin/mailflow/internal/delivery"
	"github.com/seojin/mailflow/internal/metrics"
	"github.com/seojin/mailflow/internal/queue"
)

// ErrAlreadyExists is returned by Start when a workflow instance already
// exists for the email ID. Repeated submissions of the same email are not
// allowed to restart a delivery.
var ErrAlreadyExists = errors.New("workflow already exists for email")

// ErrTerminal is returned by signal operations against an instance that has
// already reached a terminal state.
var ErrTerminal = errors.New("workflow already reached a terminal state")

// Enqueuer hands orchestration tasks to the worker process.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *queue.Task) (string, error)
}

// Service is the control surface for delivery workflows: it persists new
// instances and routes signals, leaving execution to the orchestrator that
// consumes the task queue.
type Service struct {
	instances InstanceStore
	enqueuer  Enqueuer
	log       zerolog.Logger
}

// NewService creates a workflow service.
func NewService(instances InstanceStore, enqueuer Enqueuer, log zerolog.Logger) *Service {
	return &Service{instances: instances, enqueuer: enqueuer, log: log}
}

// Start persists a Pending instance for the request and enqueues the task
// that launches it. The instance is durable before the task is enqueued, so
// a lost task is recoverable from the store.
func (s *Service) Start(ctx context.Context, req delivery.SendRequest) (*Instance, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inst := NewInstance(req)
	inserted, err := s.instances.CreateInstance(ctx, inst)
	if err != nil {
		return nil, fmt.Errorf("create workflow instance: %w", err)
	}
	if !inserted {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, req.EmailID)
	}

	if _, err := s.enqueuer.Enqueue(ctx, queue.NewStartTask(req.EmailID)); err != nil {
		return nil, fmt.Errorf("enqueue start task: %w", err)
	}
	metrics.WorkflowStartedTotal.Inc()

	s.log.Info().
		Str("email_id", req.EmailID).
		Str("tenant_id", req.TenantID).
		Bool("requires_approval", req.RequiresApproval).
		Msg("workflow started")
	return inst, nil
}

// Approve signals an approval decision to the workflow.
func (s *Service) Approve(ctx context.Context, emailID string) error {
	return s.signal(ctx, emailID, SignalApprove, "")
}

// Reject signals a rejection with an optional reason.
func (s *Service) Reject(ctx context.Context, emailID, reason string) error {
	return s.signal(ctx, emailID, SignalReject, reason)
}

// Cancel requests cancellation of a pending or in-flight delivery. An
// attempt already handed to the provider is not retracted.
func (s *Service) Cancel(ctx context.Context, emailID, reason string) error {
	return s.signal(ctx, emailID, SignalCancel, reason)
}

// Get returns the stored instance for an email ID.
func (s *Service) Get(ctx context.Context, emailID string) (*Instance, error) {
	return s.instances.GetInstance(ctx, emailID)
}

func (s *Service) signal(ctx context.Context, emailID string, kind SignalKind, reason string) error {
	inst, err := s.instances.GetInstance(ctx, emailID)
	if err != nil {
		return err
	}
	if inst.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, emailID, inst.State)
	}

	if _, err := s.enqueuer.Enqueue(ctx, queue.NewSignalTask(emailID, string(kind), reason)); err != nil {
		return fmt.Errorf("enqueue %s signal: %w", kind, err)
	}

	s.log.Info().
		Str("email_id", emailID).
		Str("signal", string(kind)).
		Msg("workflow signal enqueued")
	return nil
}
