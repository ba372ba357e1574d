// Package activity holds the side-effecting units executed by workflow
// runs. Each activity owns its heartbeat loop and classifies its failures
// as retryable or not before handing them back to the runner.
package activity

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/seojin/mailflow/internal/provider"
)

// SendActivity performs one provider send, emitting a heartbeat at a fixed
// interval while the call is outstanding.
type SendActivity struct {
	provider provider.Provider
	interval time.Duration
	log      zerolog.Logger
}

// NewSendActivity creates a SendActivity heartbeating every interval.
func NewSendActivity(p provider.Provider, interval time.Duration, log zerolog.Logger) *SendActivity {
	return &SendActivity{provider: p, interval: interval, log: log}
}

// Execute calls the provider once. The context carries the attempt timeout;
// a deadline hit is reported as a retryable error, so the runner schedules
// another attempt rather than failing the workflow.
func (a *SendActivity) Execute(ctx context.Context, msg *provider.Message, beat func()) (*provider.SendResult, error) {
	beat()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				beat()
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	res, err := a.provider.Send(ctx, msg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &provider.Error{
				Provider:  a.provider.Name(),
				Message:   "send attempt timed out",
				Permanent: false,
			}
		}
		a.log.Debug().Err(err).
			Str("email_id", msg.EmailID).
			Str("provider", a.provider.Name()).
			Bool("permanent", provider.IsPermanent(err)).
			Msg("send attempt failed")
		return nil, err
	}

	a.log.Debug().
		Str("email_id", msg.EmailID).
		Str("provider_message_id", res.ProviderMessageID).
		Msg("provider accepted message")
	return res, nil
}
