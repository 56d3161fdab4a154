package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lildude/strautonotion/internal/mapper"
	"github.com/lildude/strautonotion/internal/notion"
	"github.com/lildude/strautonotion/internal/sport"
	"github.com/lildude/strautonotion/internal/strava"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plannedPage struct {
	id       string
	date     string
	category sport.Category
	status   string
}

// fakeStore is an in-memory Notion with switchable failures.
type fakeStore struct {
	created   map[int64]*mapper.Record
	pageIDs   map[int64]string
	planned   []*plannedPage
	relations map[string]string

	queryErr   error
	createErr  error
	plannedErr error
	linkErr    error
	statusErr  error
	noIDFor    map[int64]bool
	panicFor   map[int64]bool

	creates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		created:   map[int64]*mapper.Record{},
		pageIDs:   map[int64]string{},
		relations: map[string]string{},
		noIDFor:   map[int64]bool{},
		panicFor:  map[int64]bool{},
	}
}

func (f *fakeStore) QueryActivities(_ context.Context, stravaID int64) ([]notion.Page, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if id, ok := f.pageIDs[stravaID]; ok {
		return []notion.Page{{ID: id}}, nil
	}
	return nil, nil
}

func (f *fakeStore) CreateActivity(_ context.Context, r *mapper.Record) (string, error) {
	if f.panicFor[r.StravaID] {
		panic("boom")
	}
	if f.createErr != nil {
		return "", f.createErr
	}
	if f.noIDFor[r.StravaID] {
		return "", nil
	}
	f.creates++
	id := fmt.Sprintf("page-%d", r.StravaID)
	f.created[r.StravaID] = r
	f.pageIDs[r.StravaID] = id
	return id, nil
}

func (f *fakeStore) QueryPlanned(_ context.Context, date string, category sport.Category) ([]notion.Page, error) {
	if f.plannedErr != nil {
		return nil, f.plannedErr
	}
	var pages []notion.Page
	for _, p := range f.planned {
		if p.date == date && p.category == category {
			pages = append(pages, notion.Page{ID: p.id})
		}
	}
	return pages, nil
}

func (f *fakeStore) LinkPlanned(_ context.Context, activityID, plannedID string) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	f.relations[activityID] = plannedID
	return nil
}

func (f *fakeStore) SetPlannedStatus(_ context.Context, plannedID, status string) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	for _, p := range f.planned {
		if p.id == plannedID {
			p.status = status
			return nil
		}
	}
	return errors.New("planned page not found")
}

func (f *fakeStore) plannedStatus(id string) string {
	for _, p := range f.planned {
		if p.id == id {
			return p.status
		}
	}
	return ""
}

type fakeSource struct {
	activities []strava.Activity
	err        error
	after      time.Time
	perPage    int
}

func (f *fakeSource) ListActivities(_ context.Context, after time.Time, perPage int) ([]strava.Activity, error) {
	f.after, f.perPage = after, perPage
	return f.activities, f.err
}

func newSyncer(store Store, opts ...Option) (*Syncer, *logtest.Hook) {
	log, hook := logtest.NewNullLogger()
	return New(store, log, opts...), hook
}

func run(id int64, date string) strava.Activity {
	return strava.Activity{
		ID: id, Name: fmt.Sprintf("Run %d", id), Type: "Run", SportType: "Run",
		StartDate: date + "T07:00:00Z", Distance: 5000, MovingTime: 1500, AverageSpeed: 3.33,
	}
}

func TestSyncCreatesAndLinks(t *testing.T) {
	store := newFakeStore()
	store.planned = []*plannedPage{
		{id: "plan-ride", date: "2024-05-01", category: sport.Ride, status: "Pending"},
		{id: "plan-run", date: "2024-05-01", category: sport.Run, status: "Pending"},
	}
	s, _ := newSyncer(store)

	a := run(1, "2024-05-01")
	rep, err := s.Sync(context.Background(), &a)
	require.NoError(t, err)

	assert.Equal(t, Created, rep.Outcome)
	assert.Equal(t, sport.Run, rep.Category)
	assert.Equal(t, "page-1", rep.PageID)
	assert.Equal(t, "plan-run", rep.PlannedID)
	assert.True(t, rep.Linked)
	assert.Equal(t, "plan-run", store.relations["page-1"])
	assert.Equal(t, "Done", store.plannedStatus("plan-run"))
	assert.Equal(t, "Pending", store.plannedStatus("plan-ride"))

	rec := store.created[1]
	require.NotNil(t, rec)
	assert.Equal(t, "2024-05-01", rec.Date)
	assert.InDelta(t, 5.0, rec.DistanceKm, 1e-9)
	assert.Contains(t, rec.Metrics, mapper.AveragePace)
}

func TestSyncWithoutPlan(t *testing.T) {
	store := newFakeStore()
	s, _ := newSyncer(store)

	a := run(1, "2024-05-01")
	rep, err := s.Sync(context.Background(), &a)
	require.NoError(t, err)

	assert.Equal(t, Created, rep.Outcome)
	assert.Empty(t, rep.PlannedID)
	assert.False(t, rep.Linked)
	assert.Empty(t, store.relations)
}

func TestSyncSkipsDuplicate(t *testing.T) {
	store := newFakeStore()
	store.pageIDs[1] = "existing"
	s, _ := newSyncer(store)

	a := run(1, "2024-05-01")
	rep, err := s.Sync(context.Background(), &a)
	require.NoError(t, err)

	assert.Equal(t, SkippedDuplicate, rep.Outcome)
	assert.Zero(t, store.creates)
}

func TestSyncSkipsUnsupported(t *testing.T) {
	store := newFakeStore()
	s, _ := newSyncer(store)

	a := strava.Activity{ID: 2, Name: "Evening Walk", Type: "Walk", SportType: "Walk", StartDate: "2024-05-01T18:00:00Z"}
	rep, err := s.Sync(context.Background(), &a)
	require.NoError(t, err)

	assert.Equal(t, SkippedUnsupported, rep.Outcome)
	assert.Equal(t, sport.Other, rep.Category)
	assert.Zero(t, store.creates)
}

func TestSyncDuplicateCheckFailure(t *testing.T) {
	store := newFakeStore()
	store.queryErr = errors.New("502 Bad Gateway")
	s, _ := newSyncer(store)

	a := run(1, "2024-05-01")
	_, err := s.Sync(context.Background(), &a)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.queryErr)
	assert.Zero(t, store.creates)
}

func TestSyncCreateFailures(t *testing.T) {
	t.Run("store error", func(t *testing.T) {
		store := newFakeStore()
		store.createErr = errors.New("400 Bad Request")
		s, _ := newSyncer(store)

		a := run(1, "2024-05-01")
		_, err := s.Sync(context.Background(), &a)
		assert.ErrorIs(t, err, store.createErr)
	})

	t.Run("no page id", func(t *testing.T) {
		store := newFakeStore()
		store.noIDFor[1] = true
		s, _ := newSyncer(store)

		a := run(1, "2024-05-01")
		_, err := s.Sync(context.Background(), &a)
		assert.ErrorIs(t, err, notion.ErrNoPageID)
	})
}

func TestSyncSoftFailures(t *testing.T) {
	planned := func() []*plannedPage {
		return []*plannedPage{{id: "plan-run", date: "2024-05-01", category: sport.Run, status: "Pending"}}
	}

	t.Run("planned query fails", func(t *testing.T) {
		store := newFakeStore()
		store.planned = planned()
		store.plannedErr = errors.New("timeout")
		s, hook := newSyncer(store)

		a := run(1, "2024-05-01")
		rep, err := s.Sync(context.Background(), &a)
		require.NoError(t, err)
		assert.Equal(t, Created, rep.Outcome)
		assert.False(t, rep.Linked)
		assert.Equal(t, "Pending", store.plannedStatus("plan-run"))
		assert.True(t, hasEntry(hook, logrus.WarnLevel, "unable to find planned activity"))
	})

	t.Run("link fails so status is untouched", func(t *testing.T) {
		store := newFakeStore()
		store.planned = planned()
		store.linkErr = errors.New("409 Conflict")
		s, _ := newSyncer(store)

		a := run(1, "2024-05-01")
		rep, err := s.Sync(context.Background(), &a)
		require.NoError(t, err)
		assert.Equal(t, Created, rep.Outcome)
		assert.Equal(t, "plan-run", rep.PlannedID)
		assert.False(t, rep.Linked)
		assert.Equal(t, "Pending", store.plannedStatus("plan-run"))
	})

	t.Run("status update fails", func(t *testing.T) {
		store := newFakeStore()
		store.planned = planned()
		store.statusErr = errors.New("409 Conflict")
		s, hook := newSyncer(store)

		a := run(1, "2024-05-01")
		rep, err := s.Sync(context.Background(), &a)
		require.NoError(t, err)
		assert.True(t, rep.Linked)
		assert.Equal(t, "plan-run", store.relations["page-1"])
		assert.Equal(t, "Pending", store.plannedStatus("plan-run"))
		assert.True(t, hasEntry(hook, logrus.WarnLevel, "unable to update planned activity status"))
	})
}

func TestSyncFirstPlannedMatchWins(t *testing.T) {
	store := newFakeStore()
	store.planned = []*plannedPage{
		{id: "plan-easy", date: "2024-05-01", category: sport.Run, status: "Pending"},
		{id: "plan-tempo", date: "2024-05-01", category: sport.Run, status: "Pending"},
	}
	s, hook := newSyncer(store)

	a := run(1, "2024-05-01")
	rep, err := s.Sync(context.Background(), &a)
	require.NoError(t, err)

	assert.Equal(t, "plan-easy", rep.PlannedID)
	assert.Equal(t, "Done", store.plannedStatus("plan-easy"))
	assert.Equal(t, "Pending", store.plannedStatus("plan-tempo"))
	assert.True(t, hasEntry(hook, logrus.WarnLevel, "multiple planned activities match, using the oldest"))
}

func TestSyncCustomDoneStatus(t *testing.T) {
	store := newFakeStore()
	store.planned = []*plannedPage{{id: "plan-swim", date: "2024-05-03", category: sport.Swim, status: "Pending"}}
	s, _ := newSyncer(store, WithDoneStatus("Completed"))

	a := strava.Activity{ID: 3, Type: "Swim", SportType: "OpenWaterSwim", StartDate: "2024-05-03T06:00:00Z", AverageSpeed: 1}
	_, err := s.Sync(context.Background(), &a)
	require.NoError(t, err)
	assert.Equal(t, "Completed", store.plannedStatus("plan-swim"))
	assert.Equal(t, mapper.DefaultTitle, store.created[3].Title)
}

func TestSyncDryRun(t *testing.T) {
	store := newFakeStore()
	store.planned = []*plannedPage{{id: "plan-run", date: "2024-05-01", category: sport.Run, status: "Pending"}}
	s, _ := newSyncer(store, WithDryRun(true))

	a := run(1, "2024-05-01")
	rep, err := s.Sync(context.Background(), &a)
	require.NoError(t, err)

	assert.Equal(t, DryRun, rep.Outcome)
	assert.Equal(t, "plan-run", rep.PlannedID)
	assert.False(t, rep.Linked)
	assert.Zero(t, store.creates)
	assert.Empty(t, store.relations)
	assert.Equal(t, "Pending", store.plannedStatus("plan-run"))
}

func TestRunContinuesAfterFailures(t *testing.T) {
	store := newFakeStore()
	store.noIDFor[2] = true
	s, hook := newSyncer(store)

	activities := []strava.Activity{run(1, "2024-05-01"), run(2, "2024-05-02"), run(3, "2024-05-03"), run(4, "2024-05-04")}
	res := s.Run(context.Background(), activities)

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, 3, res.Created)
	assert.Contains(t, store.created, int64(4))

	var failure *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			failure = e
		}
	}
	require.NotNil(t, failure)
	assert.Equal(t, int64(2), failure.Data["strava_id"])
	assert.Equal(t, "Run 2", failure.Data["name"])
}

func TestRunRecoversPanics(t *testing.T) {
	store := newFakeStore()
	store.panicFor[1] = true
	s, _ := newSyncer(store)

	res := s.Run(context.Background(), []strava.Activity{run(1, "2024-05-01"), run(2, "2024-05-02")})

	assert.Equal(t, Result{Succeeded: 1, Failed: 1, Created: 1}, res)
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.planned = []*plannedPage{{id: "plan-run", date: "2024-05-01", category: sport.Run, status: "Pending"}}
	s, _ := newSyncer(store)

	activities := []strava.Activity{
		run(1, "2024-05-01"),
		{ID: 2, Name: "Yoga", Type: "Yoga", SportType: "Yoga", StartDate: "2024-05-01T19:00:00Z"},
		{ID: 3, Name: "Commute", Type: "Ride", SportType: "EBikeRide", StartDate: "2024-05-02T08:00:00Z", AverageSpeed: 6},
	}

	first := s.Run(context.Background(), activities)
	assert.Equal(t, Result{Succeeded: 3, Created: 2, Unsupported: 1, Linked: 1}, first)

	second := s.Run(context.Background(), activities)
	assert.Equal(t, Result{Succeeded: 3, Duplicates: 2, Unsupported: 1}, second)
	assert.Equal(t, 2, store.creates)
}

func TestSyncRecent(t *testing.T) {
	store := newFakeStore()
	s, _ := newSyncer(store)
	after := time.Date(2024, 4, 24, 7, 0, 0, 0, time.UTC)

	src := &fakeSource{activities: []strava.Activity{run(1, "2024-05-01")}}
	res, err := s.SyncRecent(context.Background(), src, after, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, after, src.after)
	assert.Equal(t, 50, src.perPage)

	res, err = s.SyncRecent(context.Background(), &fakeSource{}, after, 30)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	srcErr := errors.New("401 Unauthorized")
	_, err = s.SyncRecent(context.Background(), &fakeSource{err: srcErr}, after, 30)
	assert.ErrorIs(t, err, srcErr)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "created", Created.String())
	assert.Equal(t, "duplicate", SkippedDuplicate.String())
	assert.Equal(t, "unsupported", SkippedUnsupported.String())
	assert.Equal(t, "dry-run", DryRun.String())
	assert.Equal(t, "failed", Failed.String())
}

func hasEntry(hook *logtest.Hook, level logrus.Level, msg string) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}
