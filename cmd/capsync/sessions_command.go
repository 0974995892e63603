package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"capsync/internal/ipc"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recent recording sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SessionList(limit)
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("missing session list response")
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Sessions) == 0 {
					fmt.Fprintln(stdout, "No sessions recorded")
					return nil
				}
				rows := make([][]string, 0, len(resp.Sessions))
				for _, s := range resp.Sessions {
					rows = append(rows, sessionRow(s))
				}
				table := renderTable(
					[]string{"Session", "User", "Status", "Started", "Video", "Audio", "Failed"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
				)
				fmt.Fprintln(stdout, table)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to list")
	return cmd
}

func sessionRow(s ipc.SessionSummary) []string {
	failed := s.VideoFailed + s.AudioFailed
	return []string{
		shortID(s.ID),
		s.UserID,
		s.Status,
		s.StartedAt,
		strconv.Itoa(s.VideoUploaded),
		strconv.Itoa(s.AudioUploaded),
		strconv.Itoa(failed),
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
