// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/tomtom215/tenantvault/internal/api"
	"github.com/tomtom215/tenantvault/internal/backup"
)

func newBackupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup TENANT",
		Short: "Create a backup of one tenant now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			var res backup.BackupResult
			if err := c.do(ctx, http.MethodPost, tenantPath(args[0], "backups"), &res); err != nil {
				return err
			}
			if opts.json {
				return opts.printJSON(res)
			}
			fmt.Fprintf(opts.out, "Created archive %s for %s: %d records, %d bytes\n",
				res.ArchiveID, res.TenantID, res.TotalRecordCount, res.SizeBytes)
			if res.Retention != nil && len(res.Retention.Deleted) > 0 {
				fmt.Fprintf(opts.out, "Retention removed %d archive(s)\n", len(res.Retention.Deleted))
			}
			return nil
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list TENANT",
		Short: "List a tenant's archives, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			var list api.ArchiveList
			if err := c.do(ctx, http.MethodGet, tenantPath(args[0], "backups"), &list); err != nil {
				return err
			}
			if opts.json {
				return opts.printJSON(list)
			}
			tw := tablewriter.NewWriter(opts.out)
			tw.SetHeader([]string{"ARCHIVE_ID", "CREATED_AT", "RECORDS", "SIZE", "COLLECTIONS"})
			for _, a := range list.Archives {
				tw.Append([]string{
					a.ArchiveID,
					a.CreatedAt.Format(time.RFC3339),
					fmt.Sprintf("%d", a.TotalRecordCount),
					fmt.Sprintf("%d", a.SizeBytes),
					strings.Join(a.CollectionNames, ","),
				})
			}
			tw.Render()
			return nil
		},
	}
}

func newDueCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "due TENANT",
		Short: "Report whether a tenant is due for a scheduled backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			var due api.DueStatus
			if err := c.do(ctx, http.MethodGet, tenantPath(args[0], "backups", "due"), &due); err != nil {
				return err
			}
			if opts.json {
				return opts.printJSON(due)
			}
			if due.Due {
				fmt.Fprintf(opts.out, "%s is due for a backup\n", due.TenantID)
			} else {
				fmt.Fprintf(opts.out, "%s is not due\n", due.TenantID)
			}
			return nil
		},
	}
}

func newRestoreCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "restore TENANT ARCHIVE_ID",
		Short: "Replace a tenant's data with an archive",
		Long: "Replace every allow-listed collection of the tenant with the archive's contents.\n" +
			"Records created after the archive are deleted. Requires --yes.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("restore overwrites tenant data; pass --yes to confirm")
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			var res backup.RestoreResult
			err = c.do(ctx, http.MethodPost, tenantPath(args[0], "backups", args[1], "restore"), &res)
			var re *RemoteError
			partial := errors.As(err, &re) && re.StatusCode == http.StatusMultiStatus
			if err != nil && !partial {
				return err
			}
			if opts.json {
				if jerr := opts.printJSON(res); jerr != nil {
					return jerr
				}
				return err
			}
			fmt.Fprintf(opts.out, "Restored %d records of %s into %s (%s)\n",
				res.RestoredRecordCount, res.ArchiveID, res.TenantID, res.Status)
			if len(res.CollectionsFailed) > 0 {
				fmt.Fprintf(opts.out, "Failed collections: %s\n", strings.Join(res.CollectionsFailed, ", "))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the restore")
	return cmd
}

func newPruneCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune TENANT",
		Short: "Delete archives beyond the retention count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			var res backup.RetentionResult
			if err := c.do(ctx, http.MethodPost, tenantPath(args[0], "retention"), &res); err != nil {
				return err
			}
			if opts.json {
				return opts.printJSON(res)
			}
			fmt.Fprintf(opts.out, "Kept %d, deleted %d", res.Kept, len(res.Deleted))
			if len(res.Failed) > 0 {
				fmt.Fprintf(opts.out, ", failed %d", len(res.Failed))
			}
			fmt.Fprintln(opts.out)
			return nil
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the scheduler state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			var st backup.SchedulerStatus
			if err := c.do(ctx, http.MethodGet, "/api/v1/scheduler", &st); err != nil {
				return err
			}
			if opts.json {
				return opts.printJSON(st)
			}
			fmt.Fprintf(opts.out, "Running:          %v\n", st.Running)
			fmt.Fprintf(opts.out, "Timer active:     %v\n", st.HasActiveTimer)
			fmt.Fprintf(opts.out, "Pending retries:  %s\n", orNone(st.PendingRetries))
			if !st.LastSweepAt.IsZero() {
				fmt.Fprintf(opts.out, "Last sweep:       %s (%d errors)\n",
					st.LastSweepAt.Format(time.RFC3339), st.LastSweepErrors)
			}
			return nil
		},
	}
}

func newSweepCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one scheduler sweep now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			var rep backup.SweepReport
			if err := c.do(ctx, http.MethodPost, "/api/v1/scheduler/sweep", &rep); err != nil {
				return err
			}
			if opts.json {
				return opts.printJSON(rep)
			}
			fmt.Fprintf(opts.out, "Checked %d tenants\n", rep.Checked)
			fmt.Fprintf(opts.out, "Backed up: %s\n", orNone(rep.BackedUp))
			fmt.Fprintf(opts.out, "Not due:   %s\n", orNone(rep.NotDue))
			fmt.Fprintf(opts.out, "Skipped:   %s\n", orNone(rep.Skipped))
			for _, f := range rep.Failed {
				fmt.Fprintf(opts.out, "Failed:    %s: %s\n", f.TenantID, f.Error)
			}
			if rep.Interrupted {
				fmt.Fprintln(opts.out, "Sweep was interrupted before every tenant was checked")
			}
			return nil
		},
	}
}

func orNone(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}
