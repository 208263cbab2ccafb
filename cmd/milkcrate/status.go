package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sydlexius/milkcrate/internal/sync"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-source sync state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}

			db, err := openCatalog(cfg)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			store := sync.NewStore(db)
			states, err := store.ListStates(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(states) == 0 {
				fmt.Fprintln(out, "No syncs have run yet")
				return nil
			}

			rows := make([][]string, 0, len(states))
			for _, st := range states {
				last := "never"
				if st.LastSync != nil {
					last = st.LastSync.Local().Format("2006-01-02 15:04")
				}
				rows = append(rows, []string{
					st.SourceName,
					st.SyncStatus,
					last,
					strconv.Itoa(st.RecordsCount),
					strconv.Itoa(st.ErrorCount),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Source", "Status", "Last Sync", "Records", "Errors"},
				rows, 4, 5))

			counts, err := store.CollectionCounts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Catalog: %d digital albums, %d tracks, %d plays, %d physical records, %d wantlist entries, %d listening events\n",
				counts.DigitalAlbums, counts.DigitalTracks, counts.PlayEvents,
				counts.PhysicalRecords, counts.WantlistEntries, counts.ListeningEvents)
			return nil
		},
	}
}
