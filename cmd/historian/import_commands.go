// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/historian/internal/models"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var (
		serverID   string
		daysBack   int
		maxResults int
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import history from a registered server and wait for it to finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.dispatcher(cmd.Context())
			if err != nil {
				return err
			}

			var limit *int
			if cmd.Flags().Changed("max") {
				limit = &maxResults
			}

			result, err := svc.ImportHistory(cmd.Context(), serverID, daysBack, limit, "")
			if err != nil {
				return err
			}
			printImportResult(cmd.OutOrStdout(), result)
			if !result.Success {
				return errors.New("import failed: " + result.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&serverID, "server", "s", "", "Server id")
	cmd.Flags().IntVarP(&daysBack, "days", "d", 30, "Days of history to import")
	cmd.Flags().IntVarP(&maxResults, "max", "m", 0, "Stop after this many history entries")
	_ = cmd.MarkFlagRequired("server")
	return cmd
}

func printImportResult(out io.Writer, r *models.ImportResult) {
	status := "completed"
	if !r.Success {
		status = "failed"
	}
	rows := [][]string{
		{"Server", r.ServerID + " (" + r.ServerType + ")"},
		{"Status", status},
		{"Fetched", strconv.Itoa(r.TotalFetched)},
		{"Processed", strconv.Itoa(r.TotalProcessed)},
		{"Stored", strconv.Itoa(r.TotalStored)},
		{"Skipped", strconv.Itoa(r.Skipped)},
		{"Duration", r.Duration.Round(time.Millisecond).String()},
	}
	if r.Error != "" {
		rows = append(rows, []string{"Error", r.Error})
	}
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var serverID string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize imported history for a server",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.dispatcher(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := svc.GetImportStatistics(cmd.Context(), serverID)
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Imported sessions", strconv.FormatInt(stats.TotalEntries, 10)},
				{"Unique users", strconv.FormatInt(stats.UniqueUsers, 10)},
				{"Earliest", formatStamp(stats.DateRange.Start)},
				{"Latest", formatStamp(stats.DateRange.End)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Server " + serverID, ""}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&serverID, "server", "s", "", "Server id")
	_ = cmd.MarkFlagRequired("server")
	return cmd
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	var (
		serverID string
		confirm  bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every imported session for a server",
		Long:  "Delete every imported session for a server. Sessions recorded live are kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to delete imported history without --yes")
			}
			svc, err := ctx.dispatcher(cmd.Context())
			if err != nil {
				return err
			}
			deleted, err := svc.ClearHistoricalData(cmd.Context(), serverID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d imported sessions from %s\n", deleted, serverID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&serverID, "server", "s", "", "Server id")
	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm deletion")
	_ = cmd.MarkFlagRequired("server")
	return cmd
}

func formatStamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
