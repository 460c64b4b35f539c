// Package notify implements the external notifier consumed by the engine's
// dispatcher. Delivery is best-effort; evaluation state is authoritative.
package notify

import (
	"context"
	"errors"

	"alertpulse/internal/engine"
)

// Fanout forwards one notification to every configured notifier and joins
// their errors. Each notifier decides which targets concern it.
type Fanout []engine.Notifier

func (f Fanout) Notify(ctx context.Context, n engine.Notification) error {
	var errs []error
	for _, notifier := range f {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
