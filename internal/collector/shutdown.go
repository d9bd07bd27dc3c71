package collector

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

// exit is replaced in tests.
var exit = os.Exit

// SetupSignalHandler returns a context cancelled on the first SIGTERM or
// SIGINT, after calling onShutdown if it is non-nil. A second signal exits
// the process immediately.
func SetupSignalHandler(parent context.Context, log logrus.FieldLogger, onShutdown func(context.Context)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigCh)

		var sig os.Signal
		select {
		case sig = <-sigCh:
		case <-ctx.Done():
			return
		}
		if log != nil {
			log.Warnf("[Signal] Received %v, finishing current request and checkpointing...", sig)
		}
		if onShutdown != nil {
			onShutdown(ctx)
		}
		cancel()

		select {
		case sig = <-sigCh:
		case <-parent.Done():
			return
		}
		if log != nil {
			log.Errorf("[Signal] Received second %v, forcing exit", sig)
		}
		exit(1)
	}()

	return ctx, cancel
}
