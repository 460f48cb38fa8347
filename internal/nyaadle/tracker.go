package nyaadle

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Tracker suppresses repeat downloads by remembering the latest item title
// handled for each watch-list key. Only one value per key is kept, so an
// older item seen after a newer one is not recognised as a repeat.
type Tracker struct {
	store TrackingStore
	log   logrus.FieldLogger
}

// NewTracker returns a Tracker backed by store.
func NewTracker(store TrackingStore, log logrus.FieldLogger) *Tracker {
	if log == nil {
		log = discardLogger()
	}
	return &Tracker{store: store, log: log}
}

// ShouldSkip reports whether candidate was the last item recorded for key.
// When it was not, candidate becomes the new latest value. Store failures
// are logged and never cause a skip.
func (t *Tracker) ShouldSkip(ctx context.Context, key, candidate string) bool {
	latest, err := t.store.Tracking(ctx, key)
	if err != nil {
		t.log.WithError(err).WithField("entry", key).Warn("Tracking lookup failed; treating item as new")
		latest = ""
	}
	if latest != "" && latest == candidate {
		return true
	}
	if err := t.store.UpsertTracking(ctx, key, candidate); err != nil {
		t.log.WithError(err).WithField("entry", key).Warn("Tracking update failed; repeat protection lost for this item")
	}
	return false
}
