// Package notion reads and writes pages in the Notion activities and planned
// activities databases.
package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lildude/strautonotion/internal/client"
	"github.com/lildude/strautonotion/internal/config"
	"github.com/lildude/strautonotion/internal/mapper"
	"github.com/lildude/strautonotion/internal/sport"
	"golang.org/x/oauth2"
)

var BaseURL = "https://api.notion.com/v1/"

// APIVersion is the Notion-Version header sent with every request.
const APIVersion = "2022-06-28"

// Property names shared by both databases.
const (
	PropName      = "Name"
	PropStravaID  = "Strava ID"
	PropType      = "Type"
	PropDate      = "Date"
	PropDistance  = "Distance"
	PropDuration  = "Duration"
	PropElevation = "Elevation"
	PropPlanned   = "Planned Activity"
	PropStatus    = "Status"
)

// ErrNoPageID is returned when Notion accepts a create request but the
// response carries no page ID.
var ErrNoPageID = errors.New("notion returned no page id")

// Page is the subset of a Notion page object we need.
type Page struct {
	ID          string    `json:"id"`
	CreatedTime time.Time `json:"created_time"`
}

// Client talks to the two Notion databases.
type Client struct {
	rc           *client.Client
	activitiesDB string
	plannedDB    string
}

// New returns a Client authenticated with the integration token.
func New(ctx context.Context, cfg config.NotionConfig) (*Client, error) {
	u, err := url.Parse(BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing notion base url: %w", err)
	}
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	rc := client.NewClient(u, hc, client.WithHeader("Notion-Version", APIVersion))
	return NewWithClient(rc, cfg), nil
}

// NewWithClient wraps an already configured REST client.
func NewWithClient(rc *client.Client, cfg config.NotionConfig) *Client {
	return &Client{rc: rc, activitiesDB: cfg.ActivitiesDBID, plannedDB: cfg.PlannedDBID}
}

// QueryActivities returns the activity pages with the given Strava ID.
func (c *Client) QueryActivities(ctx context.Context, stravaID int64) ([]Page, error) {
	id := float64(stravaID)
	q := &query{
		Filter:   &filter{Property: PropStravaID, Number: &numberFilter{Equals: &id}},
		PageSize: 1,
	}
	pages, err := c.query(ctx, c.activitiesDB, q)
	if err != nil {
		return nil, fmt.Errorf("querying activities for strava id %d: %w", stravaID, err)
	}
	return pages, nil
}

// QueryPlanned returns the planned activities on the date for the category,
// oldest first.
func (c *Client) QueryPlanned(ctx context.Context, date string, category sport.Category) ([]Page, error) {
	q := &query{
		Filter: &filter{And: []filter{
			{Property: PropDate, Date: &dateFilter{Equals: date}},
			{Property: PropType, Select: &selectFilter{Equals: category.String()}},
		}},
		Sorts:    []sortSpec{{Timestamp: "created_time", Direction: "ascending"}},
		PageSize: 10,
	}
	pages, err := c.query(ctx, c.plannedDB, q)
	if err != nil {
		return nil, fmt.Errorf("querying planned %s on %s: %w", category, date, err)
	}
	return pages, nil
}

// CreateActivity creates a page in the activities database and returns its ID.
func (c *Client) CreateActivity(ctx context.Context, r *mapper.Record) (string, error) {
	body := &createPage{
		Parent:     parent{DatabaseID: c.activitiesDB},
		Properties: activityProperties(r),
	}

	req, err := c.rc.NewRequest(ctx, http.MethodPost, "pages", body)
	if err != nil {
		return "", fmt.Errorf("creating create page request: %w", err)
	}

	var p Page
	resp, err := c.rc.Do(req, &p)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return "", fmt.Errorf("creating activity page for strava id %d: %w", r.StravaID, err)
	}
	if p.ID == "" {
		return "", fmt.Errorf("creating activity page for strava id %d: %w", r.StravaID, ErrNoPageID)
	}

	return p.ID, nil
}

// LinkPlanned points the activity page's planned relation at the planned page.
func (c *Client) LinkPlanned(ctx context.Context, activityID, plannedID string) error {
	props := map[string]property{
		PropPlanned: {Relation: []relation{{ID: plannedID}}},
	}
	if err := c.updatePage(ctx, activityID, props); err != nil {
		return fmt.Errorf("linking %s to planned %s: %w", activityID, plannedID, err)
	}
	return nil
}

// SetPlannedStatus sets the status of a planned activity page.
func (c *Client) SetPlannedStatus(ctx context.Context, plannedID, status string) error {
	props := map[string]property{
		PropStatus: {Status: &option{Name: status}},
	}
	if err := c.updatePage(ctx, plannedID, props); err != nil {
		return fmt.Errorf("setting status of planned %s to %s: %w", plannedID, status, err)
	}
	return nil
}

func (c *Client) query(ctx context.Context, databaseID string, q *query) ([]Page, error) {
	req, err := c.rc.NewRequest(ctx, http.MethodPost, "databases/"+databaseID+"/query", q)
	if err != nil {
		return nil, err
	}

	var qr queryResponse
	resp, err := c.rc.Do(req, &qr)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return qr.Results, nil
}

func (c *Client) updatePage(ctx context.Context, pageID string, props map[string]property) error {
	req, err := c.rc.NewRequest(ctx, http.MethodPatch, "pages/"+pageID, &updatePage{Properties: props})
	if err != nil {
		return err
	}

	resp, err := c.rc.Do(req, nil)
	if resp != nil {
		defer resp.Body.Close()
	}
	return err
}
