package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Notifier receives run lifecycle events.
type Notifier interface {
	RunStarted(ctx context.Context, s RunStart) error
	RunFinished(ctx context.Context, r RunResult) error
	RunAborted(ctx context.Context, r RunResult, reason string) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) RunStarted(context.Context, RunStart) error {
	return nil
}

func (Nop) RunFinished(context.Context, RunResult) error {
	return nil
}

func (Nop) RunAborted(context.Context, RunResult, string) error {
	return nil
}

// New returns a webhook notifier, or Nop when webhookURL is empty.
func New(webhookURL string) Notifier {
	if webhookURL == "" {
		return Nop{}
	}
	return NewWebhookClient(webhookURL)
}

// BestEffort wraps a Notifier so failures are logged instead of returned.
type BestEffort struct {
	Notifier Notifier
	Log      logrus.FieldLogger
}

func (b BestEffort) RunStarted(ctx context.Context, s RunStart) error {
	b.report("run started", b.Notifier.RunStarted(ctx, s))
	return nil
}

func (b BestEffort) RunFinished(ctx context.Context, r RunResult) error {
	b.report("run finished", b.Notifier.RunFinished(ctx, r))
	return nil
}

func (b BestEffort) RunAborted(ctx context.Context, r RunResult, reason string) error {
	b.report("run aborted", b.Notifier.RunAborted(ctx, r, reason))
	return nil
}

func (b BestEffort) report(event string, err error) {
	if err != nil && b.Log != nil {
		b.Log.Warnf("[Notify] Failed to send %s notification: %v", event, err)
	}
}
