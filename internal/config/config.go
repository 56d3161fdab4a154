// Package config loads and validates the credentials and settings needed for a sync run.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// DefaultDoneStatus is the status a planned activity is moved to once it has been completed.
const DefaultDoneStatus = "Done"

// ErrMissingCredentials is returned when one or more required variables are unset.
var ErrMissingCredentials = errors.New("missing required credentials")

// Config is the complete configuration for a sync run.
type Config struct {
	Strava StravaConfig
	Notion NotionConfig
	// RedisURL enables the run lock when set.
	RedisURL string
	LogLevel string
}

// StravaConfig holds the OAuth application and refresh token used to read activities.
type StravaConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// NotionConfig holds the integration token and the databases synced to.
type NotionConfig struct {
	Token             string
	ActivitiesDBID    string
	PlannedDBID       string
	PlannedDoneStatus string
}

// FromEnv builds a Config from environment variables. It does not validate.
func FromEnv() *Config {
	return &Config{
		Strava: StravaConfig{
			ClientID:     os.Getenv("STRAVA_CLIENT_ID"),
			ClientSecret: os.Getenv("STRAVA_CLIENT_SECRET"),
			RefreshToken: os.Getenv("STRAVA_REFRESH_TOKEN"),
		},
		Notion: NotionConfig{
			Token:             os.Getenv("NOTION_TOKEN"),
			ActivitiesDBID:    os.Getenv("NOTION_ACTIVITIES_DB_ID"),
			PlannedDBID:       os.Getenv("NOTION_PLANNED_DB_ID"),
			PlannedDoneStatus: os.Getenv("NOTION_DONE_STATUS"),
		},
		RedisURL: os.Getenv("REDIS_URL"),
		LogLevel: os.Getenv("LOG_LEVEL"),
	}
}

// Validate checks all credentials are present, reporting every missing
// variable at once, and normalises the Notion database IDs.
func (c *Config) Validate() error {
	var missing []string
	for env, err := range map[string]error{
		"STRAVA_CLIENT_ID":        validation.Validate(c.Strava.ClientID, validation.Required),
		"STRAVA_CLIENT_SECRET":    validation.Validate(c.Strava.ClientSecret, validation.Required),
		"STRAVA_REFRESH_TOKEN":    validation.Validate(c.Strava.RefreshToken, validation.Required),
		"NOTION_TOKEN":            validation.Validate(c.Notion.Token, validation.Required),
		"NOTION_ACTIVITIES_DB_ID": validation.Validate(c.Notion.ActivitiesDBID, validation.Required),
		"NOTION_PLANNED_DB_ID":    validation.Validate(c.Notion.PlannedDBID, validation.Required),
	} {
		if err != nil {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	return c.Notion.normalize()
}

func (c *NotionConfig) normalize() error {
	if c.PlannedDoneStatus == "" {
		c.PlannedDoneStatus = DefaultDoneStatus
	}

	// Notion accepts database IDs with or without dashes, as copied from a share URL.
	for _, id := range []*string{&c.ActivitiesDBID, &c.PlannedDBID} {
		u, err := uuid.Parse(*id)
		if err != nil {
			return fmt.Errorf("invalid notion database id %q: %w", *id, err)
		}
		*id = u.String()
	}
	return nil
}
