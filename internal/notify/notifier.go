// Package notify delivers best-effort, per-user status messages. Delivery is
// fire-and-forget: callers never block and sender failures are logged,
// never propagated, so a broken channel cannot stall scanning or execution.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/arbradar/internal/domain"
)

// sendTimeout bounds one delivery attempt per sender.
const sendTimeout = 10 * time.Second

// Sender is one notification channel.
type Sender interface {
	// Send delivers a message addressed to the given user.
	Send(ctx context.Context, userID int64, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier fans each notification out to all registered senders from a
// detached goroutine. It implements domain.NotificationSink.
type Notifier struct {
	senders []Sender
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewNotifier creates a Notifier delivering to the given senders. With no
// senders it degrades to logging only.
func NewNotifier(senders []Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders: senders,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify dispatches the message to every sender without blocking the caller.
func (n *Notifier) Notify(userID int64, message string) {
	n.logger.Debug("notify",
		slog.Int64("user_id", userID),
		slog.String("message", message),
	)
	if len(n.senders) == 0 {
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		for _, s := range n.senders {
			if err := s.Send(ctx, userID, message); err != nil {
				n.logger.Warn("notification delivery failed",
					slog.String("sender", s.Name()),
					slog.Int64("user_id", userID),
					slog.String("error", err.Error()),
				)
			}
		}
	}()
}

// Flush waits for in-flight deliveries, bounded by the context. Used on
// shutdown so final status messages get a chance to leave the process.
func (n *Notifier) Flush(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

var _ domain.NotificationSink = (*Notifier)(nil)
