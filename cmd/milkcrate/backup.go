package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sydlexius/milkcrate/internal/backup"
)

func newBackupCommand(ctx *commandContext) *cobra.Command {
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage database snapshots",
	}

	backupCmd.AddCommand(newBackupCreateCommand(ctx))
	backupCmd.AddCommand(newBackupListCommand(ctx))
	backupCmd.AddCommand(newBackupPruneCommand(ctx))

	return backupCmd
}

func backupService(ctx *commandContext) (*backup.Service, func(), error) {
	cfg, err := ctx.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := openCatalog(cfg)
	if err != nil {
		return nil, nil, err
	}
	svc := backup.NewService(db, cfg.BackupDir(), cfg.Backup.Keep, cfg.Backup.MaxAgeDays, cliLogger())
	return svc, func() { _ = db.Close() }, nil
}

func newBackupCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Snapshot the database with VACUUM INTO",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeDB, err := backupService(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			info, err := svc.Create(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", info.Filename, formatBytes(info.Size))
			return nil
		},
	}
}

func newBackupListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeDB, err := backupService(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			snaps, err := svc.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(snaps) == 0 {
				fmt.Fprintln(out, "No snapshots yet")
				return nil
			}
			rows := make([][]string, 0, len(snaps))
			for _, sn := range snaps {
				rows = append(rows, []string{
					sn.Filename,
					formatBytes(sn.Size),
					sn.CreatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Snapshot", "Size", "Created"}, rows, 2))
			return nil
		},
	}
}

func newBackupPruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete snapshots beyond the retention policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeDB, err := backupService(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			pruned, err := svc.Prune()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d snapshots\n", pruned)
			return nil
		},
	}
}
