// cmd/match-dry-run/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"caring-compass-workers/internal/caregivers"
	"caring-compass-workers/internal/common/config"
	"caring-compass-workers/internal/common/database"
	"caring-compass-workers/internal/common/logger"
	"caring-compass-workers/internal/matching"
)

type flags struct {
	configFile  string
	latitude    float64
	longitude   float64
	skills      []string
	languages   []string
	gender      string
	maxDistance float64
	date        string
	duration    float64
	debug       bool
}

// openStore returns the caregiver store and a cleanup func.
type openStore func(ctx context.Context, cfg *config.Config, log logger.Logger) (matching.CaregiverStore, func(), error)

func main() {
	if err := newRootCmd(os.Stdout, openDatabaseStore).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer, open openStore) *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "match-dry-run",
		Short: "Rank active caregivers for a hypothetical visit without assigning anyone",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), out, f, open)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&f.configFile, "config", "", "config file (default configs/config.yaml)")
	cmd.Flags().Float64Var(&f.latitude, "lat", 0, "client latitude")
	cmd.Flags().Float64Var(&f.longitude, "lon", 0, "client longitude")
	cmd.Flags().StringSliceVar(&f.skills, "skills", nil, "required skills, comma separated")
	cmd.Flags().StringSliceVar(&f.languages, "languages", nil, "preferred languages, comma separated")
	cmd.Flags().StringVar(&f.gender, "gender", "", "gender preference (MALE or FEMALE)")
	cmd.Flags().Float64Var(&f.maxDistance, "max-distance", 10, "search radius in miles")
	cmd.Flags().StringVar(&f.date, "date", "", "visit start, RFC3339")
	cmd.Flags().Float64Var(&f.duration, "duration", 1, "visit duration in hours")
	cmd.Flags().BoolVarP(&f.debug, "debug", "d", false, "verbose logging")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func run(ctx context.Context, out io.Writer, f *flags, open openStore) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(f.configFile)
	if err != nil {
		return err
	}

	criteria, err := criteriaFromFlags(f, cfg.Matching.Location())
	if err != nil {
		return err
	}

	level := "warn"
	if f.debug {
		level = "debug"
	}
	log := logger.NewZapAdapter(logger.NewWithOutput(level, "console", "stderr"))

	store, cleanup, err := open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := matching.NewMatcher(store, log).FindMatches(ctx, criteria)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func criteriaFromFlags(f *flags, loc *time.Location) (matching.Criteria, error) {
	start, err := time.Parse(time.RFC3339, f.date)
	if err != nil {
		return matching.Criteria{}, fmt.Errorf("--date: %w", err)
	}
	if f.maxDistance <= 0 {
		return matching.Criteria{}, fmt.Errorf("--max-distance must be positive")
	}
	if f.duration <= 0 {
		return matching.Criteria{}, fmt.Errorf("--duration must be positive")
	}

	return matching.Criteria{
		ClientLocation:     matching.Coordinate{Latitude: f.latitude, Longitude: f.longitude},
		RequiredSkills:     f.skills,
		PreferredLanguages: f.languages,
		GenderPreference:   f.gender,
		RequestedStart:     start.In(loc),
		VisitDurationHours: f.duration,
		MaxDistanceMiles:   f.maxDistance,
	}, nil
}

// openDatabaseStore connects to Postgres, and Redis when the cache is enabled.
func openDatabaseStore(ctx context.Context, cfg *config.Config, log logger.Logger) (matching.CaregiverStore, func(), error) {
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Ping(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}

	var store matching.CaregiverStore = caregivers.NewPostgresStore(pg.DB)
	cleanup := func() { _ = pg.Close() }

	if cfg.Matching.CacheEnabled {
		rdb, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if err := rdb.Ping(ctx); err != nil {
			log.Warn("redis unreachable, reading postgres directly", map[string]interface{}{"error": err})
			_ = rdb.Close()
		} else {
			store = caregivers.NewCachedStore(store, rdb.Client, config.GetDuration(cfg.Matching.CacheTTL), log)
			cleanup = func() {
				_ = rdb.Close()
				_ = pg.Close()
			}
		}
	}
	return store, cleanup, nil
}
