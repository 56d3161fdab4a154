// Package sport classifies Strava activities into the categories tracked in Notion.
package sport

// Category is the simplified sport an activity is filed under.
type Category string

const (
	Run   Category = "Run"
	Ride  Category = "Ride"
	Swim  Category = "Swim"
	Other Category = "Other"
)

// categories maps Strava sport types to the categories we track.
var categories = map[string]Category{
	"Run":              Run,
	"TrailRun":         Run,
	"VirtualRun":       Run,
	"Ride":             Ride,
	"VirtualRide":      Ride,
	"MountainBikeRide": Ride,
	"GravelRide":       Ride,
	"EBikeRide":        Ride,
	"Swim":             Swim,
	"OpenWaterSwim":    Swim,
}

// Classify returns the category for an activity. The sport type is preferred
// as it is more specific; the legacy activity type is used when it is empty.
func Classify(activityType, sportType string) Category {
	key := sportType
	if key == "" {
		key = activityType
	}
	if c, ok := categories[key]; ok {
		return c
	}
	return Other
}

// Supported reports whether activities in the category are synced.
func (c Category) Supported() bool {
	return c == Run || c == Ride || c == Swim
}

func (c Category) String() string {
	return string(c)
}
