package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/blinx/internal/settings"
	"pkt.systems/blinx/schema"
	"pkt.systems/pslog"
)

func newSettingsCmd() *cobra.Command {
	flags := &profileFlags{}
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change preferences",
	}
	flags.register(cmd)

	cmd.AddCommand(newSettingsListCmd(flags))
	cmd.AddCommand(newSettingsGetCmd(flags))
	cmd.AddCommand(newSettingsSetCmd(flags))

	return cmd
}

func withSettings(cmd *cobra.Command, flags *profileFlags, fn func(store *settings.Store) error) error {
	p, err := flags.open()
	if err != nil {
		return err
	}
	logger := pslog.Ctx(cmd.Context())
	store, err := p.state(logger)
	if err != nil {
		_ = p.Close()
		return err
	}
	runErr := fn(settings.New(store, settings.Defaults(p.cfg), logger))
	if err := p.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func newSettingsListCmd(flags *profileFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, flags, func(store *settings.Store) error {
				out := cmd.OutOrStdout()
				for _, key := range schema.SettingKeys() {
					value, err := store.Value(key)
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(out, "%s=%s\n", key, value)
				}
				return nil
			})
		},
	}
}

func newSettingsGetCmd(flags *profileFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, flags, func(store *settings.Store) error {
				value, err := store.Value(args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
				return err
			})
		},
	}
}

func newSettingsSetCmd(flags *profileFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting; a running shell picks it up",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, flags, func(store *settings.Store) error {
				return store.Set(args[0], args[1])
			})
		},
	}
}
