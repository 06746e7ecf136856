// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomtom215/historian/internal/config"
	"github.com/tomtom215/historian/internal/models"
	"github.com/tomtom215/historian/internal/validation"
)

func newServersCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Manage registered media servers",
	}
	cmd.AddCommand(newServersAddCommand(ctx))
	cmd.AddCommand(newServersListCommand(ctx))
	return cmd
}

func newServersAddCommand(ctx *commandContext) *cobra.Command {
	var req models.MediaServerCreateRequest

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a media server",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.ServerType = strings.ToLower(strings.TrimSpace(req.ServerType))
			if verr := validation.ValidateStruct(&req); verr != nil {
				return verr
			}

			db, err := ctx.database(cmd.Context())
			if err != nil {
				return err
			}
			server := &models.MediaServer{
				ID:         req.ID,
				Name:       req.Name,
				ServerType: req.ServerType,
				URL:        strings.TrimRight(req.URL, "/"),
				Token:      req.Token,
			}
			if err := db.CreateServer(cmd.Context(), server); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s server %s (%s)\n", server.ServerType, server.ID, server.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ID, "id", "", "Server id (generated when empty)")
	cmd.Flags().StringVar(&req.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&req.ServerType, "type", "", "plex, jellyfin, emby or audiobookshelf")
	cmd.Flags().StringVar(&req.URL, "url", "", "Base URL")
	cmd.Flags().StringVar(&req.Token, "token", "", "API token")
	return cmd
}

func newServersListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered media servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.database(cmd.Context())
			if err != nil {
				return err
			}
			servers, err := db.ListServers(cmd.Context())
			if err != nil {
				return err
			}
			if len(servers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No servers registered")
				return nil
			}

			rows := make([][]string, 0, len(servers))
			for _, s := range servers {
				rows = append(rows, []string{s.ID, s.Name, s.ServerType, s.URL, config.MaskCredential(s.Token)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Type", "URL", "Token"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
