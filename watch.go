package batcher

import (
	"context"

	"github.com/rs/zerolog"
)

// watcher drives a subscription to a terminal outcome.
type watcher struct {
	sub           Subscription
	lookup        func() ErrorLookup
	waitFinalized bool
	logger        zerolog.Logger
}

// run consumes updates until a terminal status, a failure event, a stream
// error or cancellation. The subscription is torn down exactly once on
// every path. Events are inspected before status on each update.
func (w *watcher) run(ctx context.Context) (*TxUpdate, error) {
	defer w.sub.Unsubscribe()

	errs, updates := w.sub.Err(), w.sub.Updates()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			return nil, err
		case update, ok := <-updates:
			if !ok {
				return nil, ErrSubscriptionClosed
			}
			w.logger.Debug().
				Stringer("status", update.Status.Kind).
				Int("events", len(update.Events)).
				Msg("status update")

			if err := w.checkEvents(update.Events); err != nil {
				return &update, err
			}

			switch {
			case update.Status.Kind == StatusFinalized:
				return &update, nil
			case update.Status.Kind == StatusInBlock && !w.waitFinalized:
				return &update, nil
			case update.Status.Kind.IsError():
				return &update, &SubmissionRejectedError{Status: update.Status}
			}
		}
	}
}

func (w *watcher) checkEvents(events []Event) error {
	if ev, ok := findEvent(events, Event.IsTooManyCalls); ok {
		return &BatchSizeExceededError{Event: ev}
	}
	if ev, ok := findEvent(events, Event.IsBatchInterrupted); ok {
		return &BatchInterruptedError{Index: ev.Index, Err: w.classify(ev)}
	}
	if ev, ok := findEvent(events, Event.IsExtrinsicFailed); ok {
		return &ExtrinsicFailedError{Err: w.classify(ev)}
	}
	return nil
}

func (w *watcher) classify(ev Event) *ClassifiedError {
	var d DispatchError
	if ev.Error != nil {
		d = *ev.Error
	}
	var lookup ErrorLookup
	if w.lookup != nil {
		lookup = w.lookup()
	}
	return Classify(d, lookup)
}
