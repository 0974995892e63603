package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"capsync/internal/ipc"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Control recording sessions",
	}

	var userID string
	var audioInput string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a recording session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordStart(ipc.RecordStartRequest{
					UserID:     userID,
					AudioInput: audioInput,
				})
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("missing record start response")
				}
				stdout := cmd.OutOrStdout()
				if !resp.Started {
					return fmt.Errorf("recording not started: %s", resp.Message)
				}
				fmt.Fprintf(stdout, "Recording started (session %s)\n", resp.SessionID)
				return nil
			})
		},
	}
	startCmd.Flags().StringVarP(&userID, "user", "u", "", "User the session belongs to")
	startCmd.Flags().StringVar(&audioInput, "audio-input", "", "Override the configured audio capture device")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the active recording session and drain uploads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordStop()
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("missing record stop response")
				}
				stdout := cmd.OutOrStdout()
				if !resp.Stopped {
					fmt.Fprintln(stdout, resp.Message)
					return nil
				}
				fmt.Fprintf(stdout, "Recording stopped (session %s)\n", resp.SessionID)
				fmt.Fprintf(stdout, "Uploaded %d video and %d audio segments in %s\n",
					resp.VideoUploaded, resp.AudioUploaded, resp.Duration)
				if resp.ScreenshotUploaded {
					fmt.Fprintln(stdout, "Screenshot uploaded")
				}
				if resp.Failed > 0 {
					fmt.Fprintf(stdout, "Warning: %d segment uploads failed; see the daemon log\n", resp.Failed)
				}
				return nil
			})
		},
	}

	recordCmd.AddCommand(startCmd)
	recordCmd.AddCommand(stopCmd)
	return recordCmd
}
