package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sydlexius/milkcrate/internal/source/discogs"
	"github.com/sydlexius/milkcrate/internal/source/roon"
	"github.com/sydlexius/milkcrate/internal/sync"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var sources []string
	var all bool
	var force bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run source syncs against the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(sources) == 0 && !all {
				return errors.New("specify --source at least once, or --all")
			}

			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			logger := cliLogger()

			db, err := openCatalog(cfg)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			svc := buildServices(cfg, db, logger)

			var results []sync.RunResult
			if all {
				results = svc.coordinator.RunAll(cmd.Context(), force)
			} else {
				for _, name := range sources {
					res, err := svc.coordinator.Run(cmd.Context(), name, force)
					if err != nil {
						return err
					}
					results = append(results, *res)
				}
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(results))
			failed := 0
			for _, r := range results {
				if r.Status == sync.StatusFailed {
					failed++
				}
				display := string(r.Status)
				if r.Detail != "" {
					display = r.Detail
				}
				rows = append(rows, []string{
					r.Source,
					display,
					strconv.Itoa(r.Records),
					strconv.Itoa(r.Errors),
					formatDuration(r.DurationMS),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Source", "Status", "Records", "Errors", "Duration"},
				rows, 3, 4, 5))

			if rebuilt := shouldRebuildMatches(results); rebuilt {
				rr, err := svc.liveShows.Rebuild(cmd.Context())
				if err != nil {
					return fmt.Errorf("rebuilding live show matches: %w", err)
				}
				fmt.Fprintf(out, "Live shows: %d bootlegs, %d exact, %d partial, %d manual, %d unmatched\n",
					rr.Bootlegs, rr.Exact, rr.Partial, rr.Manual, rr.Unmatched)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d syncs failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&sources, "source", "s", nil, "Source to sync (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "Sync every registered source")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Bypass the skip window")
	return cmd
}

// shouldRebuildMatches reports whether any completed run touched the
// albums or records the live-show matcher draws from.
func shouldRebuildMatches(results []sync.RunResult) bool {
	for _, r := range results {
		if r.Status != sync.StatusSucceeded || r.Records == 0 {
			continue
		}
		if r.Source == roon.SourceAlbums || r.Source == discogs.SourceCollection {
			return true
		}
	}
	return false
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", ms)
	}
	return d.Round(100 * time.Millisecond).String()
}
