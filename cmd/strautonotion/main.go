package main

import (
	"context"
	"fmt"
	"os"
	"time"

	// Autoloads .env file to supply environment variables
	_ "github.com/joho/godotenv/autoload"

	"github.com/google/uuid"
	"github.com/lildude/strautonotion/internal/config"
	"github.com/lildude/strautonotion/internal/lock"
	"github.com/lildude/strautonotion/internal/logger"
	"github.com/lildude/strautonotion/internal/notion"
	"github.com/lildude/strautonotion/internal/strava"
	"github.com/lildude/strautonotion/internal/syncer"
	"github.com/urfave/cli/v3"
)

// lockTTL comfortably exceeds a normal run.
const lockTTL = 15 * time.Minute

func main() {
	cmd := &cli.Command{
		Name:   "strautonotion",
		Usage:  "Sync recent Strava activities into Notion and tick off planned sessions",
		Action: run,
		Commands: []*cli.Command{
			{
				Name:   "authorize",
				Usage:  "Obtain the Strava refresh token: run without --code for the URL to visit, then again with the code from the redirect",
				Action: authorize,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "code",
						Usage: "Code parameter from the URL Strava redirected to",
					},
					&cli.StringFlag{
						Name:    "redirect-uri",
						Usage:   "Redirect URI registered with the Strava application",
						Value:   strava.DefaultRedirectURL,
						Sources: cli.EnvVars("STRAVA_REDIRECT_URI"),
					},
				},
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "after",
				Usage:   "Only sync activities started after this time (RFC3339 or YYYY-MM-DD)",
				Sources: cli.EnvVars("SYNC_AFTER"),
			},
			&cli.IntFlag{
				Name:    "days",
				Usage:   "Lookback window in days when --after is not set",
				Value:   7,
				Sources: cli.EnvVars("SYNC_DAYS"),
			},
			&cli.IntFlag{
				Name:    "per-page",
				Usage:   "Number of activities requested per Strava page",
				Value:   strava.DefaultPerPage,
				Sources: cli.EnvVars("SYNC_PER_PAGE"),
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Usage:   "Log what would be synced without writing to Notion",
				Sources: cli.EnvVars("SYNC_DRY_RUN", "DEBUG"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.NewLogger(os.Getenv("LOG_LEVEL")).WithError(err).Error("sync failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	after, err := lookback(cmd.String("after"), int(cmd.Int("days")), time.Now())
	if err != nil {
		return err
	}

	log := logger.NewLogger(cfg.LogLevel).WithField("run_id", uuid.NewString())
	log.Info("starting Strava to Notion sync")

	var locker lock.Locker = lock.Noop{}
	if cfg.RedisURL != "" {
		rl, err := lock.NewRedisLocker(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rl.Close()
		locker = rl
	}
	l, err := locker.Acquire(ctx, lock.DefaultKey, lockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Release(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("unable to release run lock")
		}
	}()

	sc, err := strava.New(ctx, cfg.Strava)
	if err != nil {
		return err
	}
	nc, err := notion.New(ctx, cfg.Notion)
	if err != nil {
		return err
	}

	s := syncer.New(nc, log,
		syncer.WithDoneStatus(cfg.Notion.PlannedDoneStatus),
		syncer.WithDryRun(cmd.Bool("dry-run")),
	)
	_, err = s.SyncRecent(ctx, sc, after, int(cmd.Int("per-page")))
	return err
}

func authorize(ctx context.Context, cmd *cli.Command) error {
	cfg := config.FromEnv()
	a, err := strava.NewAuthorizer(cfg.Strava, cmd.String("redirect-uri"))
	if err != nil {
		return err
	}

	code := cmd.String("code")
	if code == "" {
		fmt.Fprintln(os.Stdout, "Visit this URL and authorize access, then rerun with --code:")
		fmt.Fprintln(os.Stdout, a.AuthCodeURL(uuid.NewString()))
		return nil
	}

	refreshToken, username, err := a.Exchange(ctx, code)
	if err != nil {
		return err
	}
	logger.NewLogger(cfg.LogLevel).WithField("username", username).Info("successfully authenticated")
	fmt.Fprintf(os.Stdout, "STRAVA_REFRESH_TOKEN=%s\n", refreshToken)
	return nil
}

// lookback returns the time to sync from: the explicit after value when set,
// otherwise days before now.
func lookback(after string, days int, now time.Time) (time.Time, error) {
	if after == "" {
		if days <= 0 {
			return time.Time{}, fmt.Errorf("invalid lookback of %d days", days)
		}
		return now.AddDate(0, 0, -days), nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, after); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid after time %q: want RFC3339 or YYYY-MM-DD", after)
}
