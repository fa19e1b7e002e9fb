package main

import (
	"context"

	"github.com/desertthunder/scout/internal/quota"
	"github.com/urfave/cli/v3"
)

// CacheStats prints the quota budget and response-cache statistics for this
// process. Both reset with the process; a long-lived `serve` is where the
// numbers accumulate.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	limiter, cache := r.ensureQuota()

	stats := struct {
		Quota quota.Stats      `json:"quota"`
		Cache quota.CacheStats `json:"cache"`
	}{
		Quota: limiter.Snapshot(),
		Cache: cache.Stats(),
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, cmd.Bool("pretty"))
	}

	r.writePlain("Quota budget: %d units/day\n", stats.Quota.DailyBudget)
	r.writePlain("Spent today: %d units\n", stats.Quota.Spent)
	r.writePlain("Remaining: %d units\n", stats.Quota.Remaining)
	r.writePlain("\n")
	r.writePlain("Cache entries: %d\n", stats.Cache.Entries)
	r.writePlain("Cache hits: %d\n", stats.Cache.Hits)
	r.writePlain("Cache misses: %d\n", stats.Cache.Misses)
	r.writePlain("Cache evictions: %d\n", stats.Cache.Evictions)

	return nil
}

// CacheClear drops every cached response.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	_, cache := r.ensureQuota()

	before := cache.Stats().Entries
	cache.Clear()

	r.logger.Info("response cache cleared", "entries", before)
	r.writePlain("✓ Response cache cleared (%d entries dropped)\n", before)
	return nil
}

// CachePrune drops expired entries, the same sweep the nightly quota reset
// runs.
func (r *Runner) CachePrune(ctx context.Context, cmd *cli.Command) error {
	_, cache := r.ensureQuota()

	removed := cache.PruneExpired()
	r.writePlain("✓ Pruned %d expired cache entries\n", removed)
	return nil
}

// cacheCommand reports and resets quota and response-cache state
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and reset the response cache and quota budget",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show quota budget and cache statistics",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
				},
				Action: r.CacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Drop all cached responses",
				Action: r.CacheClear,
			},
			{
				Name:   "prune",
				Usage:  "Drop expired cached responses",
				Action: r.CachePrune,
			},
		},
	}
}
