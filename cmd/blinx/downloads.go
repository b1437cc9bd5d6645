package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/blinx/internal/downloads"
	"pkt.systems/blinx/schema"
	"pkt.systems/pslog"
)

func newDownloadsCmd() *cobra.Command {
	flags := &profileFlags{}
	cmd := &cobra.Command{
		Use:   "downloads",
		Short: "Inspect the download history",
	}
	flags.register(cmd)

	cmd.AddCommand(newDownloadsListCmd(flags))
	cmd.AddCommand(newDownloadsClearCmd(flags))
	cmd.AddCommand(newDownloadsRemoveCmd(flags))

	return cmd
}

// withTracker loads the history under the profile lock: loading marks
// in-progress records as interrupted, which is only true with no shell
// running.
func withTracker(cmd *cobra.Command, flags *profileFlags, fn func(tracker *downloads.Tracker) error) error {
	p, err := flags.open()
	if err != nil {
		return err
	}
	if err := p.lockProfile(); err != nil {
		return err
	}
	logger := pslog.Ctx(cmd.Context())
	store, err := p.state(logger)
	if err != nil {
		_ = p.Close()
		return err
	}
	runErr := fn(downloads.New(store, nil, logger))
	if err := p.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func newDownloadsListCmd(flags *profileFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List downloads, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd, flags, func(tracker *downloads.Tracker) error {
				out := cmd.OutOrStdout()
				for _, download := range tracker.History() {
					_, _ = fmt.Fprintln(out, formatDownload(download))
				}
				return nil
			})
		},
	}
}

func newDownloadsClearCmd(flags *profileFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop finished downloads from the history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd, flags, func(tracker *downloads.Tracker) error {
				removed := tracker.Clear()
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "removed %d\n", removed)
				return err
			})
		},
	}
}

func newDownloadsRemoveCmd(flags *profileFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove one download from the history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd, flags, func(tracker *downloads.Tracker) error {
				return tracker.Remove(schema.DownloadID(args[0]))
			})
		},
	}
}

func formatDownload(d schema.Download) string {
	line := fmt.Sprintf("%s\t%s\t%.0f%%\t%s\t%s", d.ID, d.Status, d.Progress, d.Filename, d.Path)
	if d.Error != "" {
		line += "\t" + d.Error
	}
	return line
}
