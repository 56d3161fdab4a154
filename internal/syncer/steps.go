package syncer

import (
	"context"
	"fmt"

	"github.com/lildude/strautonotion/internal/sport"
	"github.com/sirupsen/logrus"
)

// exists reports whether the activity has already been synced. Errors are
// returned rather than treated as "not found" so a flaky query cannot cause
// a duplicate.
func (s *Syncer) exists(ctx context.Context, stravaID int64) (bool, error) {
	pages, err := s.store.QueryActivities(ctx, stravaID)
	if err != nil {
		return false, fmt.Errorf("checking for existing activity: %w", err)
	}
	return len(pages) > 0, nil
}

// findPlanned returns the planned activity for the date and category. The
// store returns matches oldest first and the first one wins. Query errors
// are logged and treated as no match.
func (s *Syncer) findPlanned(ctx context.Context, log logrus.FieldLogger, date string, category sport.Category) (string, bool) {
	log = log.WithField("date", date)

	pages, err := s.store.QueryPlanned(ctx, date, category)
	if err != nil {
		log.WithError(err).Warn("unable to find planned activity")
		return "", false
	}
	if len(pages) == 0 {
		log.Info("no matching planned activity found")
		return "", false
	}
	if len(pages) > 1 {
		log.WithField("matches", len(pages)).Warn("multiple planned activities match, using the oldest")
	}

	log.WithField("planned_id", pages[0].ID).Info("found matching planned activity")
	return pages[0].ID, true
}

// link relates the activity to the planned activity and then marks the plan
// done. It reports whether the relation was written; neither failure is
// returned.
func (s *Syncer) link(ctx context.Context, log logrus.FieldLogger, pageID, plannedID string) bool {
	log = log.WithField("planned_id", plannedID)

	if err := s.store.LinkPlanned(ctx, pageID, plannedID); err != nil {
		log.WithError(err).Warn("unable to link activity to planned activity")
		return false
	}
	log.Info("linked activity to planned activity")

	if err := s.store.SetPlannedStatus(ctx, plannedID, s.doneStatus); err != nil {
		log.WithError(err).Warn("unable to update planned activity status")
		return true
	}
	log.WithField("status", s.doneStatus).Info("updated planned activity status")
	return true
}
