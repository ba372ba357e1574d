package workflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/seojin/mailflow/internal/delivery"
	"github.com/seojin/mailflow/internal/metrics"
	"github.com/seojin/mailflow/internal/provider"
)

// Sender performs one delivery attempt. Implementations must call beat
// periodically while the underlying provider call is outstanding; the
// runner's watchdog treats a silent attempt as stalled and retries it.
type Sender interface {
	Execute(ctx context.Context, msg *provider.Message, beat func()) (*provider.SendResult, error)
}

// Runner drives one workflow instance from its current state to a terminal
// outcome. It persists the instance before every suspend point (approval
// wait, scheduled timer, retry timer) and recomputes remaining waits from
// the current clock, so a run interrupted by a process restart resumes
// deterministically.
type Runner struct {
	instances InstanceStore
	events    EventAppender
	sender    Sender
	hub       *Hub
	policy    Policy
	log       zerolog.Logger
}

// NewRunner creates a Runner with the given default policy.
func NewRunner(instances InstanceStore, events EventAppender, sender Sender, hub *Hub, policy Policy, log zerolog.Logger) *Runner {
	return &Runner{
		instances: instances,
		events:    events,
		sender:    sender,
		hub:       hub,
		policy:    policy,
		log:       log,
	}
}

// Run executes the instance until it reaches a terminal state or the
// context is cancelled. A context cancellation leaves the instance
// non-terminal in the store; the next process picks it up via recovery.
func (r *Runner) Run(ctx context.Context, inst *Instance) error {
	if inst.Terminal() {
		return nil
	}

	sigCh := r.hub.Register(inst.EmailID)
	defer r.hub.Unregister(inst.EmailID)

	pol := r.policy.WithOverrides(inst.Request.Overrides)
	log := r.log.With().
		Str("email_id", inst.EmailID).
		Str("tenant_id", inst.TenantID).
		Logger()

	if inst.State == StatePending {
		if inst.Request.RequiresApproval {
			deadline := time.Now().UTC().Add(pol.ApprovalTimeout)
			inst.ApprovalDeadline = &deadline
			if err := r.transition(ctx, inst, StateAwaitingApproval); err != nil {
				return err
			}
			log.Info().Time("deadline", deadline).Str("reviewer_id", inst.Request.ReviewerID).Msg("awaiting approval")
		} else if err := r.transition(ctx, inst, StateScheduled); err != nil {
			return err
		}
	}

	if inst.State == StateAwaitingApproval {
		sig, timedOut, err := r.awaitApproval(ctx, inst, pol, sigCh)
		if err != nil {
			return err
		}
		switch {
		case timedOut:
			return r.finish(ctx, inst, StateApprovalTimeout, delivery.EventApprovalTimeout,
				"no approval decision before deadline", nil, log)
		case sig.Kind == SignalApprove:
			log.Info().Msg("send approved")
			if err := r.transition(ctx, inst, StateScheduled); err != nil {
				return err
			}
		case sig.Kind == SignalReject:
			return r.finish(ctx, inst, StateFailed, delivery.EventFailed,
				reasonOr(sig.Reason, "approval rejected"), nil, log)
		case sig.Kind == SignalCancel:
			return r.finish(ctx, inst, StateFailed, delivery.EventFailed,
				"cancelled: "+reasonOr(sig.Reason, "caller request"), nil, log)
		}
	}

	if inst.State == StateScheduled && inst.Request.ScheduledAt != nil {
		// The remaining delay is recomputed from the current clock: a
		// workflow restarted after ScheduledAt already passed sends
		// immediately rather than re-sleeping a stale duration.
		sig, err := r.sleepUntil(ctx, *inst.Request.ScheduledAt, sigCh)
		if err != nil {
			return err
		}
		if sig != nil {
			return r.finish(ctx, inst, StateFailed, delivery.EventFailed,
				"cancelled: "+reasonOr(sig.Reason, "caller request"), nil, log)
		}
	}

	return r.sendLoop(ctx, inst, pol, sigCh, log)
}

// sendLoop performs retrying send attempts until a terminal state.
func (r *Runner) sendLoop(ctx context.Context, inst *Instance, pol Policy, sigCh <-chan Signal, log zerolog.Logger) error {
	// A resume into Sending with no pending retry timer means the stored
	// attempt was interrupted mid-flight: re-run it under the same attempt
	// number. Re-invocation is safe because the provider deduplicates by
	// the idempotency key derived from the email ID.
	rerun := inst.State == StateSending && inst.Attempt > 0 && inst.NextWakeAt == nil

	for {
		if inst.NextWakeAt != nil {
			sig, err := r.sleepUntil(ctx, *inst.NextWakeAt, sigCh)
			if err != nil {
				return err
			}
			if sig != nil {
				return r.finish(ctx, inst, StateFailed, delivery.EventFailed,
					"cancelled: "+reasonOr(sig.Reason, "caller request"), nil, log)
			}
		}

		if rerun {
			rerun = false
		} else {
			inst.Attempt++
		}
		inst.NextWakeAt = nil
		if err := r.transition(ctx, inst, StateSending); err != nil {
			return err
		}
		log.Info().
			Int("attempt", inst.Attempt).
			Int("max_attempts", pol.MaxAttempts).
			Msg("send attempt starting")

		res, cancelSig, err := r.attempt(ctx, inst, pol, sigCh)
		switch {
		case cancelSig != nil:
			metrics.SendAttemptsTotal.WithLabelValues("cancelled").Inc()
			return r.finish(ctx, inst, StateFailed, delivery.EventFailed,
				"cancelled: "+reasonOr(cancelSig.Reason, "caller request"), res, log)

		case err == nil:
			metrics.SendAttemptsTotal.WithLabelValues("sent").Inc()
			return r.finish(ctx, inst, StateSent, delivery.EventSent, "", res, log)

		case ctx.Err() != nil:
			return ctx.Err()

		case provider.IsPermanent(err):
			metrics.SendAttemptsTotal.WithLabelValues("permanent_error").Inc()
			return r.finish(ctx, inst, StateFailed, delivery.EventFailed,
				"non-retryable: "+err.Error(), nil, log)

		default:
			metrics.SendAttemptsTotal.WithLabelValues("retryable_error").Inc()
			inst.LastError = err.Error()
			if inst.Attempt >= pol.MaxAttempts {
				return r.finish(ctx, inst, StateFailed, delivery.EventFailed,
					fmt.Sprintf("retries exhausted after %d attempts: %v", inst.Attempt, err), nil, log)
			}

			wake := time.Now().UTC().Add(pol.RetryInterval)
			inst.NextWakeAt = &wake
			if saveErr := r.save(ctx, inst); saveErr != nil {
				return saveErr
			}
			log.Warn().Err(err).
				Int("attempt", inst.Attempt).
				Time("next_attempt_at", wake).
				Msg("send attempt failed, retrying")
		}
	}
}

// attempt runs one send attempt under the activity timeout with a
// heartbeat watchdog. It returns the cancel signal when the attempt was
// cancelled externally; an attempt already handed to the provider is not
// retracted.
func (r *Runner) attempt(ctx context.Context, inst *Instance, pol Policy, sigCh <-chan Signal) (*provider.SendResult, *Signal, error) {
	msg := &provider.Message{
		EmailID:        inst.EmailID,
		TenantID:       inst.TenantID,
		From:           inst.Request.From,
		To:             inst.Request.To,
		Subject:        inst.Request.Subject,
		Body:           inst.Request.Body,
		IdempotencyKey: provider.IdempotencyKey(inst.EmailID),
	}

	attemptCtx, cancel := context.WithTimeout(ctx, pol.ActivityTimeout)
	defer cancel()

	beats := make(chan struct{}, 1)
	beat := func() {
		select {
		case beats <- struct{}{}:
		default:
		}
	}

	type outcome struct {
		res *provider.SendResult
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		res, err := r.sender.Execute(attemptCtx, msg, beat)
		done <- outcome{res: res, err: err}
	}()

	stallAfter := 2 * pol.HeartbeatInterval
	watchdog := time.NewTimer(stallAfter)
	defer watchdog.Stop()

	for {
		select {
		case out := <-done:
			metrics.SendDuration.Observe(time.Since(start).Seconds())
			return out.res, nil, out.err

		case <-beats:
			if !watchdog.Stop() {
				select {
				case <-watchdog.C:
				default:
				}
			}
			watchdog.Reset(stallAfter)

		case <-watchdog.C:
			// No heartbeat: the attempt is stalled, not merely slow. Do
			// not wait for the sender goroutine — a provider hung on a
			// dead connection may never observe the cancel. The buffered
			// done channel lets the abandoned goroutine exit, and the
			// idempotency key makes re-invocation safe.
			cancel()
			select {
			case out := <-done:
				// Finished just as the watchdog fired.
				metrics.SendDuration.Observe(time.Since(start).Seconds())
				return out.res, nil, out.err
			default:
			}
			return nil, nil, &provider.Error{
				Provider:  "activity",
				Message:   "attempt stalled: no heartbeat within " + stallAfter.String(),
				Permanent: false,
			}

		case sig := <-sigCh:
			if sig.Kind != SignalCancel {
				continue
			}
			cancel()
			return nil, &sig, nil

		case <-ctx.Done():
			cancel()
			return nil, nil, ctx.Err()
		}
	}
}

// awaitApproval suspends until an approval decision or the stored deadline.
// A deadline already in the past times out immediately.
func (r *Runner) awaitApproval(ctx context.Context, inst *Instance, pol Policy, sigCh <-chan Signal) (Signal, bool, error) {
	deadline := time.Now().UTC().Add(pol.ApprovalTimeout)
	if inst.ApprovalDeadline != nil {
		deadline = *inst.ApprovalDeadline
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return Signal{}, true, nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
		return Signal{}, true, nil
	case sig := <-sigCh:
		return sig, false, nil
	case <-ctx.Done():
		return Signal{}, false, ctx.Err()
	}
}

// sleepUntil suspends until the deadline, returning early with the signal
// if a cancel arrives. A past deadline returns immediately: no negative
// sleep, no error.
func (r *Runner) sleepUntil(ctx context.Context, deadline time.Time, sigCh <-chan Signal) (*Signal, error) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return nil, nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return nil, nil
		case sig := <-sigCh:
			if sig.Kind == SignalCancel {
				return &sig, nil
			}
			// Approval signals carry no meaning outside the approval gate.
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// finish performs the single terminal transition and records the terminal
// delivery event. Exactly one terminal state is reached per instance.
func (r *Runner) finish(ctx context.Context, inst *Instance, state State, evType delivery.EventType, reason string, res *provider.SendResult, log zerolog.Logger) error {
	if res != nil {
		inst.ProviderMessageID = res.ProviderMessageID
		inst.LastError = ""
	} else if reason != "" {
		inst.LastError = reason
	}
	if err := r.transition(ctx, inst, state); err != nil {
		return err
	}

	evt := delivery.NewEvent(inst.TenantID, inst.EmailID, evType, time.Now().UTC())
	evt.Metadata = map[string]string{
		"attempts": strconv.Itoa(inst.Attempt),
	}
	if reason != "" {
		evt.Metadata["reason"] = reason
	}
	if inst.ProviderMessageID != "" {
		evt.Metadata["provider_message_id"] = inst.ProviderMessageID
	}
	if _, err := r.events.InsertEvent(ctx, evt); err != nil {
		// The terminal state itself is already durable.
		log.Error().Err(err).Str("event_type", string(evType)).Msg("failed to record terminal event")
	}

	metrics.WorkflowTerminalTotal.WithLabelValues(string(state)).Inc()
	log.Info().
		Str("state", string(state)).
		Int("attempts", inst.Attempt).
		Str("reason", reason).
		Msg("workflow reached terminal state")
	return nil
}

func (r *Runner) transition(ctx context.Context, inst *Instance, to State) error {
	if err := checkTransition(inst.State, to); err != nil {
		return err
	}
	inst.State = to
	return r.save(ctx, inst)
}

func (r *Runner) save(ctx context.Context, inst *Instance) error {
	inst.UpdatedAt = time.Now().UTC()
	if err := r.instances.SaveInstance(ctx, inst); err != nil {
		return fmt.Errorf("save workflow instance %s: %w", inst.EmailID, err)
	}
	return nil
}

func reasonOr(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}
