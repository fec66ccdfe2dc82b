package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rently/internal/app/commands"
	bookinghandlers "rently/internal/app/handlers/booking"
)

var ErrWorkerNotConfigured = errors.New("sweep: worker missing dependencies")

// Worker periodically rejects PENDING holds older than the configured TTL.
// With TTL zero the worker is inert and Run returns immediately.
type Worker struct {
	Bus      commands.Bus
	TTL      time.Duration
	Interval time.Duration
	Logger   *slog.Logger
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Bus == nil {
		return ErrWorkerNotConfigured
	}
	if w.TTL <= 0 {
		return nil
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cmd := bookinghandlers.ExpirePendingCommand{TTL: w.TTL}
			if _, err := commands.Dispatch[bookinghandlers.ExpirePendingCommand, bookinghandlers.ExpirePendingResult](ctx, w.Bus, cmd); err != nil {
				if w.Logger != nil {
					w.Logger.Error("hold expiry sweep failed", "error", err)
				}
			}
		}
	}
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return time.Minute
	}
	return w.Interval
}
