package cleanup

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// WatchSignals wires os/signal.NotifyContext(ctx, os.Interrupt,
// syscall.SIGTERM) — the same construct as the teacher's
// cmd/server/main.go graceful shutdown — into a dedicated goroutine
// that, on receipt, cancels run and drains registry, guaranteeing
// cleanup runs even though Go does not run destructors on a received
// signal. It returns a context that is cancelled either when a signal
// arrives or when parent is done, plus a stop function the caller must
// defer to release the signal notification.
func WatchSignals(parent context.Context, registry *Registry, logger *slog.Logger) (context.Context, func()) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-ctx.Done()
		if parent.Err() != nil {
			return // run already finished on its own; nothing to clean up here
		}
		logger.Warn("signal received, draining resources")
		for _, err := range registry.Drain(context.Background()) {
			logger.Error("cleanup error during signal drain", "error", err)
		}
	}()

	return ctx, stop
}
