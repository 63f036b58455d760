package services

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Sender is what the pipeline sends through. ThrottledSender is the only
// production implementation.
type Sender interface {
	Send(ctx context.Context, recipient, body string) (string, error)
}

// ThrottledSender wraps the SMS transport with a fixed inter-send delay and a
// dry-run short circuit. The delay runs after every successful transport call
// and blocks the caller, which keeps sends within one job run strictly
// sequential and under the gateway's throughput ceiling.
type ThrottledSender struct {
	transport SMSService
	delay     time.Duration
	dryRun    bool
}

func NewThrottledSender(transport SMSService, delay time.Duration, dryRun bool) *ThrottledSender {
	return &ThrottledSender{
		transport: transport,
		delay:     delay,
		dryRun:    dryRun,
	}
}

// DryRun reports whether the sender is in dry-run mode.
func (s *ThrottledSender) DryRun() bool { return s.dryRun }

// Send dispatches one message. In dry-run mode no network call happens and a
// placeholder id comes back, so the caller's audit trail looks identical to a
// live send.
func (s *ThrottledSender) Send(ctx context.Context, recipient, body string) (string, error) {
	if s.dryRun {
		return "dry-" + uuid.NewString(), nil
	}

	id, err := s.transport.Send(ctx, recipient, body)
	if err != nil {
		return "", err
	}

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}
	return id, nil
}
