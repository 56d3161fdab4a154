// Package strava fetches recent athlete activities from the Strava API.
package strava

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lildude/strautonotion/internal/client"
	"github.com/lildude/strautonotion/internal/config"
	"golang.org/x/oauth2"
)

var (
	BaseURL  = "https://www.strava.com/api/v3/"
	TokenURL = "https://www.strava.com/oauth/token"
	AuthURL  = "https://www.strava.com/oauth/authorize"
)

// DefaultPerPage matches the Strava API default page size.
const DefaultPerPage = 30

// maxPages bounds a single listing so a very old "after" cannot page forever.
const maxPages = 10

// Activity holds only the data we sync from the Strava API summary activity.
// Optional averages are zero when Strava omits them.
type Activity struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	Type               string  `json:"type"`
	SportType          string  `json:"sport_type"`
	StartDate          string  `json:"start_date"`
	Distance           float64 `json:"distance"`
	MovingTime         int64   `json:"moving_time"`
	TotalElevationGain float64 `json:"total_elevation_gain"`
	AverageSpeed       float64 `json:"average_speed"`
	AverageHeartrate   float64 `json:"average_heartrate"`
	AverageCadence     float64 `json:"average_cadence"`
	AverageWatts       float64 `json:"average_watts"`
}

// Date returns the date part of the start timestamp, e.g. "2024-05-01".
func (a *Activity) Date() string {
	d, _, _ := strings.Cut(a.StartDate, "T")
	return d
}

// Client lists activities for the athlete that owns the refresh token.
type Client struct {
	rc *client.Client
}

// OAuthConfig returns the OAuth2 configuration for the Strava application.
// Strava expects the client credentials in the request body.
func OAuthConfig(cfg config.StravaConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   AuthURL,
			TokenURL:  TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{"activity:read_all"},
	}
}

// New returns a Client authenticated with the configured refresh token. An
// access token is obtained on the first request and refreshed transparently.
func New(ctx context.Context, cfg config.StravaConfig) (*Client, error) {
	u, err := url.Parse(BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing strava base url: %w", err)
	}
	ts := OAuthConfig(cfg).TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	return NewWithClient(client.NewClient(u, oauth2.NewClient(ctx, ts))), nil
}

// NewWithClient wraps an already configured REST client.
func NewWithClient(rc *client.Client) *Client {
	return &Client{rc: rc}
}

// ListActivities returns the activities started after the given time, oldest
// first, fetching pages of perPage until a short page is returned. A zero
// after lists the most recent activities.
func (c *Client) ListActivities(ctx context.Context, after time.Time, perPage int) ([]Activity, error) {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	var all []Activity
	for page := 1; page <= maxPages; page++ {
		activities, err := c.listPage(ctx, after, perPage, page)
		if err != nil {
			return nil, err
		}
		all = append(all, activities...)
		if len(activities) < perPage {
			break
		}
	}
	return all, nil
}

func (c *Client) listPage(ctx context.Context, after time.Time, perPage, page int) ([]Activity, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	if !after.IsZero() {
		q.Set("after", strconv.FormatInt(after.Unix(), 10))
	}

	req, err := c.rc.NewRequest(ctx, http.MethodGet, "athlete/activities?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating list activities request: %w", err)
	}

	var activities []Activity
	resp, err := c.rc.Do(req, &activities)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("listing activities page %d: %w", page, err)
	}

	return activities, nil
}
