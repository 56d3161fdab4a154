// Package mapper converts Strava activities into the records written to the
// Notion activities database.
package mapper

import (
	"github.com/lildude/strautonotion/internal/sport"
	"github.com/lildude/strautonotion/internal/strava"
)

// DefaultTitle is used when an activity has no name.
const DefaultTitle = "Untitled Activity"

// Names of the sport-specific metrics, matching the Notion property names.
const (
	AveragePace  = "Average Pace"
	AverageHR    = "Average HR"
	Cadence      = "Cadence"
	AverageSpeed = "Average Speed"
	AveragePower = "Average Power"
)

// Record is a normalised activity ready to be stored.
type Record struct {
	Title      string
	StravaID   int64
	Category   sport.Category
	Date       string
	DistanceKm float64
	// DurationMin is the moving time in minutes.
	DurationMin float64
	Elevation   float64
	// Metrics holds the sport-specific fields. A metric is only present when
	// its source value was.
	Metrics map[string]float64
}

type deriveFunc func(a *strava.Activity) map[string]float64

var derivers = map[sport.Category]deriveFunc{
	sport.Run:  runMetrics,
	sport.Ride: rideMetrics,
	sport.Swim: swimMetrics,
}

// Map builds the record for an activity in the given category. Categories
// without derived metrics only get the common fields.
func Map(a *strava.Activity, category sport.Category) *Record {
	title := a.Name
	if title == "" {
		title = DefaultTitle
	}

	r := &Record{
		Title:       title,
		StravaID:    a.ID,
		Category:    category,
		Date:        a.Date(),
		DistanceKm:  a.Distance / 1000,
		DurationMin: float64(a.MovingTime) / 60,
		Elevation:   a.TotalElevationGain,
		Metrics:     map[string]float64{},
	}
	if derive, ok := derivers[category]; ok {
		r.Metrics = derive(a)
	}
	return r
}

// runMetrics returns pace in min/km, heart rate and cadence in steps per
// minute. Strava reports running cadence for one leg.
func runMetrics(a *strava.Activity) map[string]float64 {
	m := map[string]float64{}
	if kmh := mpsToKmh(a.AverageSpeed); kmh > 0 {
		m[AveragePace] = 60 / kmh
	}
	if a.AverageHeartrate > 0 {
		m[AverageHR] = a.AverageHeartrate
	}
	if a.AverageCadence > 0 {
		m[Cadence] = a.AverageCadence * 2
	}
	return m
}

// rideMetrics returns speed in km/h, power and heart rate.
func rideMetrics(a *strava.Activity) map[string]float64 {
	m := map[string]float64{}
	if a.AverageSpeed > 0 {
		m[AverageSpeed] = mpsToKmh(a.AverageSpeed)
	}
	if a.AverageWatts > 0 {
		m[AveragePower] = a.AverageWatts
	}
	if a.AverageHeartrate > 0 {
		m[AverageHR] = a.AverageHeartrate
	}
	return m
}

// swimMetrics returns pace in minutes per 100m.
func swimMetrics(a *strava.Activity) map[string]float64 {
	m := map[string]float64{}
	if a.AverageSpeed > 0 {
		m[AveragePace] = (100 / a.AverageSpeed) / 60
	}
	return m
}

func mpsToKmh(mps float64) float64 {
	return mps * 3.6
}
