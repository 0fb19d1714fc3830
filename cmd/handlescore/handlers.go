package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/elonfeng/handlescore/internal/config"
	"github.com/elonfeng/handlescore/internal/logging"
	"github.com/elonfeng/handlescore/internal/refresh"
	"github.com/elonfeng/handlescore/internal/scheduler"
	"github.com/elonfeng/handlescore/internal/store"
	"github.com/elonfeng/handlescore/pkg/notify"
	"github.com/elonfeng/handlescore/pkg/score"
	"github.com/elonfeng/handlescore/pkg/server"
	"github.com/elonfeng/handlescore/pkg/source"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// app bundles everything a command needs.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	db      *store.SQLiteStore
	loc     *time.Location
	engine  *score.Engine
	refresh *refresh.Service
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(os.Stderr, cfg.Log.Level)

	loc, err := cfg.Scoring.Location()
	if err != nil {
		return nil, err
	}
	profiles, err := buildProfiles(cfg)
	if err != nil {
		return nil, err
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	engine := score.NewEngine(db, profiles, loc, logger)
	svc := refresh.New(db, engine, buildFetchers(cfg), buildNotifier(cfg),
		cfg.Scoring.ParseFreshness(), cfg.Scoring.Adjustment, logger)

	return &app{
		cfg:     cfg,
		log:     logger,
		db:      db,
		loc:     loc,
		engine:  engine,
		refresh: svc,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func buildProfiles(cfg *config.Config) (map[source.Platform]score.Profile, error) {
	overrides := map[source.Platform]config.ProfileConfig{
		source.PlatformInstagram: cfg.Platforms.Instagram.Profile,
		source.PlatformTwitter:   cfg.Platforms.Twitter.Profile,
		source.PlatformLinkedIn:  cfg.Platforms.LinkedIn.Profile,
	}

	profiles := score.DefaultProfiles()
	for platform, o := range overrides {
		p := profiles[platform]
		if o.Multiplier != nil {
			p.Multiplier = *o.Multiplier
		}
		if o.BaseOffset != nil {
			p.BaseOffset = *o.BaseOffset
		}
		switch store.DailyMode(o.DailyMode) {
		case "":
		case store.DailyEngagement, store.DailyPosts:
			p.DailyMode = store.DailyMode(o.DailyMode)
		default:
			return nil, fmt.Errorf("%s: invalid daily_mode %q", platform, o.DailyMode)
		}
		if o.DateZone != "" {
			loc, err := time.LoadLocation(o.DateZone)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid date_zone %s: %w", platform, o.DateZone, err)
			}
			p.DateZone = loc
		}
		profiles[platform] = p
	}
	return profiles, nil
}

func buildFetchers(cfg *config.Config) []source.Fetcher {
	var fetchers []source.Fetcher
	key := cfg.Platforms.RapidAPIKey

	if cfg.Platforms.Instagram.Enabled {
		fetchers = append(fetchers, source.NewInstagram(key, cfg.Platforms.Instagram.BaseURL, cfg.Platforms.Instagram.Limit))
	}
	if cfg.Platforms.Twitter.Enabled {
		fetchers = append(fetchers, source.NewTwitter(key, cfg.Platforms.Twitter.BaseURL, cfg.Platforms.Twitter.Count))
	}
	if cfg.Platforms.LinkedIn.Enabled {
		fetchers = append(fetchers, source.NewLinkedIn(key, cfg.Platforms.LinkedIn.BaseURL))
	}

	return fetchers
}

func buildNotifier(cfg *config.Config) *notify.Manager {
	var notifiers []notify.Notifier

	if cfg.Notify.Webhook.Enabled && cfg.Notify.Webhook.URL != "" {
		notifiers = append(notifiers, notify.NewWebhook(cfg.Notify.Webhook.URL, cfg.Notify.Webhook.Secret))
	}

	return notify.NewManager(notifiers)
}

func runScore(platformName, handle, userID string, adjustment *float64, force, jsonOutput bool, inputFile string) error {
	platform, err := source.ParsePlatform(platformName)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	var out *refresh.Outcome
	if inputFile != "" {
		out, err = a.scoreFile(ctx, platform, handle, userID, adjustment, inputFile)
	} else {
		out, err = a.refresh.Refresh(ctx, refresh.Params{
			UserID:     userID,
			Platform:   platform,
			Handle:     handle,
			Adjustment: adjustment,
			Force:      force,
		})
	}
	if err != nil {
		return fmt.Errorf("score %s @%s (handle_score 0): %w", platform, handle, err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if out.Skipped {
		fmt.Printf("%s @%s: %d (fresh, %d posts this week)\n", platform, handle, out.Score, out.PostCount)
		return nil
	}

	res := out.Result
	fmt.Printf("%s @%s: %d\n", platform, handle, res.Score)
	fmt.Printf("  posts this week:   %d\n", res.PostCount)
	fmt.Printf("  total engagement:  %d (avg %d)\n", res.TotalEngagement, res.AvgEngagement)
	fmt.Printf("  consistency weeks: %d\n", res.ConsistencyWeeks)
	fmt.Printf("  previous score:    %d\n", res.PreviousScore)
	if res.BestPost != nil {
		fmt.Printf("  best post:         %s (%s)\n", res.BestPost.URL, res.BestPost.Date)
	}
	return nil
}

// scoreFile scores a saved batch without calling the upstream API.
func (a *app) scoreFile(ctx context.Context, platform source.Platform, handle, userID string, adjustment *float64, path string) (*refresh.Outcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input %s: %w", path, err)
	}
	var batch source.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("%w: parse input %s: %w", source.ErrUpstream, path, err)
	}
	batch.Platform = platform
	if batch.Handle == "" {
		batch.Handle = handle
	}

	prior, err := a.db.GetUserAnalytics(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	adj := a.cfg.Scoring.Adjustment
	if adjustment != nil {
		adj = *adjustment
	}

	res, err := a.engine.ScorePlatform(ctx, score.Request{
		Platform:   platform,
		UserID:     userID,
		Batch:      &batch,
		Prior:      prior,
		Adjustment: adj,
	})
	if err != nil {
		return nil, err
	}
	return &refresh.Outcome{
		Platform:  platform,
		Handle:    handle,
		Score:     res.Score,
		PostCount: res.PostCount,
		Result:    res,
	}, nil
}

func runRefresh(userID string, force bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	var outcomes []refresh.Outcome
	if userID != "" {
		outcomes, err = a.refresh.RefreshUser(ctx, userID, force)
	} else {
		outcomes, err = a.refresh.RefreshAll(ctx, force, 4)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLATFORM\tHANDLE\tSCORE\tPOSTS\tSTATUS")
	for _, o := range outcomes {
		status := "scored"
		switch {
		case o.Error != "":
			status = "error: " + o.Error
		case o.Skipped:
			status = "fresh"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", o.Platform, o.Handle, o.Score, o.PostCount, status)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	return err
}

func runOverview(userID string, jsonOutput bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	analytics, err := a.db.GetUserAnalytics(ctx, userID)
	if err != nil {
		return err
	}
	conns, err := a.db.ListConnections(ctx, store.ConnectionListOpts{UserID: userID})
	if err != nil {
		return err
	}
	connected := make([]source.Platform, 0, len(conns))
	for _, c := range conns {
		connected = append(connected, c.Platform)
	}
	ov := score.BuildOverview(analytics, connected)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ov)
	}

	fmt.Printf("handle score: %d (%+d vs previous %d)\n", ov.HandleScore, ov.ScoreDelta, ov.PreviousScore)
	fmt.Printf("consistency:  %d weeks\n", ov.ConsistencyWeeks)
	fmt.Printf("interactions: %d (avg engagement %d)\n", ov.TotalInteractions, ov.AverageEngagement)
	if ov.TopPlatform != "" {
		fmt.Printf("top platform: %s\n", ov.TopPlatform)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nPLATFORM\tSCORE\tPOSTS\tENGAGEMENT\tAVG")
	for _, p := range source.AllPlatforms() {
		st, ok := ov.Platforms[p]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", p, st.Score, st.PostCount, st.TotalEngagement, st.AvgEngagement)
	}
	return w.Flush()
}

func runConnect(userID, platformName, handle string, remove bool) error {
	platform, err := source.ParsePlatform(platformName)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if remove {
		if err := a.db.RemoveConnection(ctx, userID, platform); err != nil {
			return err
		}
		fmt.Printf("removed %s connection for %s\n", platform, userID)
		return nil
	}

	if handle == "" {
		return fmt.Errorf("handle is required")
	}
	if err := a.db.AddConnection(ctx, &store.Connection{UserID: userID, Platform: platform, Handle: handle}); err != nil {
		return err
	}
	fmt.Printf("connected %s @%s to %s\n", platform, handle, userID)
	return nil
}

func runServe(port int, withScheduler bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if withScheduler && a.cfg.Schedule.Enabled {
		sched, err := scheduler.New(a.refresh, a.cfg.Schedule.Refresh, a.loc, 4, a.log)
		if err != nil {
			return err
		}
		go func() {
			if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
				a.log.Error("scheduler error", "error", err)
			}
		}()
	}

	srv := server.New(a.db, a.refresh, port, a.log)
	err = srv.ListenAndServe(ctx)
	a.log.Info("shutting down")
	return err
}
