// Package syncer copies Strava activities into Notion and marks the matching
// planned activity as done.
//
// Activities are processed one at a time, in order. The duplicate check
// relies on this: Notion does not enforce unique Strava IDs, so concurrent
// creates for the same activity would both pass the check.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/lildude/strautonotion/internal/config"
	"github.com/lildude/strautonotion/internal/mapper"
	"github.com/lildude/strautonotion/internal/notion"
	"github.com/lildude/strautonotion/internal/sport"
	"github.com/lildude/strautonotion/internal/strava"
	"github.com/sirupsen/logrus"
)

// Store is the Notion side of the sync.
type Store interface {
	QueryActivities(ctx context.Context, stravaID int64) ([]notion.Page, error)
	CreateActivity(ctx context.Context, r *mapper.Record) (string, error)
	QueryPlanned(ctx context.Context, date string, category sport.Category) ([]notion.Page, error)
	LinkPlanned(ctx context.Context, activityID, plannedID string) error
	SetPlannedStatus(ctx context.Context, plannedID, status string) error
}

// Source provides the activities to sync.
type Source interface {
	ListActivities(ctx context.Context, after time.Time, perPage int) ([]strava.Activity, error)
}

// Outcome is how the sync of a single activity ended.
type Outcome int

const (
	Failed Outcome = iota
	Created
	SkippedDuplicate
	SkippedUnsupported
	DryRun
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case SkippedDuplicate:
		return "duplicate"
	case SkippedUnsupported:
		return "unsupported"
	case DryRun:
		return "dry-run"
	default:
		return "failed"
	}
}

// Report describes the sync of a single activity.
type Report struct {
	Outcome   Outcome
	Category  sport.Category
	PageID    string
	PlannedID string
	// Linked is true when the activity page was related to PlannedID.
	Linked bool
}

// Result tallies a batch. Succeeded counts every outcome except Failed.
type Result struct {
	Succeeded   int
	Failed      int
	Created     int
	Duplicates  int
	Unsupported int
	Linked      int
}

func (r *Result) add(rep *Report, err error) {
	if err != nil {
		r.Failed++
		return
	}
	r.Succeeded++
	switch rep.Outcome {
	case Created:
		r.Created++
	case SkippedDuplicate:
		r.Duplicates++
	case SkippedUnsupported:
		r.Unsupported++
	}
	if rep.Linked {
		r.Linked++
	}
}

// Syncer runs the per-activity workflow against a Store.
type Syncer struct {
	store      Store
	log        logrus.FieldLogger
	doneStatus string
	dryRun     bool
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithDoneStatus sets the status a matched planned activity is moved to.
func WithDoneStatus(status string) Option {
	return func(s *Syncer) {
		if status != "" {
			s.doneStatus = status
		}
	}
}

// WithDryRun reads from the store but never writes to it.
func WithDryRun(dryRun bool) Option {
	return func(s *Syncer) {
		s.dryRun = dryRun
	}
}

func New(store Store, log logrus.FieldLogger, opts ...Option) *Syncer {
	s := &Syncer{store: store, log: log, doneStatus: config.DefaultDoneStatus}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncRecent fetches the activities started after the given time and syncs
// them. Only a failure to fetch is returned as an error.
func (s *Syncer) SyncRecent(ctx context.Context, src Source, after time.Time, perPage int) (Result, error) {
	s.log.WithField("after", after.Format(time.RFC3339)).Info("fetching activities")
	activities, err := src.ListActivities(ctx, after, perPage)
	if err != nil {
		return Result{}, fmt.Errorf("fetching activities: %w", err)
	}
	if len(activities) == 0 {
		s.log.Info("no new activities to sync")
		return Result{}, nil
	}
	s.log.WithField("count", len(activities)).Info("found activities to process")

	return s.Run(ctx, activities), nil
}

// Run syncs each activity in turn. A failed activity is logged and counted
// and the batch carries on.
func (s *Syncer) Run(ctx context.Context, activities []strava.Activity) Result {
	var res Result
	for i := range activities {
		a := &activities[i]
		rep, err := s.syncSafely(ctx, a)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"strava_id": a.ID,
				"name":      a.Name,
			}).WithError(err).Error("unable to sync activity")
		}
		res.add(rep, err)
	}

	s.log.WithFields(logrus.Fields{
		"succeeded":   res.Succeeded,
		"failed":      res.Failed,
		"created":     res.Created,
		"duplicates":  res.Duplicates,
		"unsupported": res.Unsupported,
		"linked":      res.Linked,
	}).Infof("sync complete: %d succeeded, %d failed", res.Succeeded, res.Failed)

	return res
}

func (s *Syncer) syncSafely(ctx context.Context, a *strava.Activity) (rep *Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			rep, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Sync(ctx, a)
}

// Sync runs the workflow for one activity. An error means the activity was
// not recorded; failures to match or link a planned activity are only logged.
func (s *Syncer) Sync(ctx context.Context, a *strava.Activity) (*Report, error) {
	log := s.log.WithFields(logrus.Fields{"strava_id": a.ID, "name": a.Name})

	exists, err := s.exists(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		log.Info("skipping duplicate activity")
		return &Report{Outcome: SkippedDuplicate}, nil
	}

	category := sport.Classify(a.Type, a.SportType)
	rep := &Report{Category: category}
	log = log.WithField("category", category)
	if !category.Supported() {
		log.WithField("sport_type", a.SportType).Info("skipping unsupported activity type")
		rep.Outcome = SkippedUnsupported
		return rep, nil
	}

	record := mapper.Map(a, category)
	if s.dryRun {
		log.WithField("record", record).Info("dry run: not creating activity")
		rep.Outcome = DryRun
		rep.PlannedID, _ = s.findPlanned(ctx, log, record.Date, category)
		return rep, nil
	}

	log.Info("processing activity")
	pageID, err := s.store.CreateActivity(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("creating activity: %w", err)
	}
	if pageID == "" {
		return nil, fmt.Errorf("creating activity: %w", notion.ErrNoPageID)
	}
	rep.Outcome, rep.PageID = Created, pageID
	log = log.WithField("page_id", pageID)

	if plannedID, ok := s.findPlanned(ctx, log, record.Date, category); ok {
		rep.PlannedID = plannedID
		rep.Linked = s.link(ctx, log, pageID, plannedID)
	}

	log.Info("successfully synced activity")
	return rep, nil
}
