package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/blinx/internal/bookmarks"
	"pkt.systems/blinx/schema"
	"pkt.systems/pslog"
)

type profileFlags struct {
	cfgPath    string
	profileDir string
}

func (f *profileFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&f.cfgPath, "config", "c", "", "path to config file")
	cmd.PersistentFlags().StringVar(&f.profileDir, "profile", "", "profile directory (overrides config)")
}

func (f *profileFlags) open() (*profile, error) {
	cfg, err := loadShellConfig(f.cfgPath, f.profileDir)
	if err != nil {
		return nil, err
	}
	return &profile{cfg: cfg}, nil
}

func newBookmarksCmd() *cobra.Command {
	flags := &profileFlags{}
	cmd := &cobra.Command{
		Use:   "bookmarks",
		Short: "Manage bookmarks",
	}
	flags.register(cmd)

	cmd.AddCommand(newBookmarksListCmd(flags))
	cmd.AddCommand(newBookmarksAddCmd(flags))
	cmd.AddCommand(newBookmarksRemoveCmd(flags))
	cmd.AddCommand(newBookmarksFoldersCmd(flags))
	cmd.AddCommand(newBookmarksMkdirCmd(flags))
	cmd.AddCommand(newBookmarksRmdirCmd(flags))

	return cmd
}

func withBookmarks(cmd *cobra.Command, flags *profileFlags, fn func(store *bookmarks.Store) error) error {
	p, err := flags.open()
	if err != nil {
		return err
	}
	logger := pslog.Ctx(cmd.Context())
	store, err := p.bookmarks(logger)
	if err != nil {
		_ = p.Close()
		return err
	}
	runErr := fn(store)
	if err := p.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func newBookmarksListCmd(flags *profileFlags) *cobra.Command {
	var folder string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bookmarks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBookmarks(cmd, flags, func(store *bookmarks.Store) error {
				list := store.List()
				if folder != "" {
					id, err := resolveFolder(store, folder)
					if err != nil {
						return err
					}
					if list, err = store.ListFolder(id); err != nil {
						return err
					}
				}
				out := cmd.OutOrStdout()
				for _, bookmark := range list {
					_, _ = fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", bookmark.ID, bookmark.Folder, bookmark.Title, bookmark.URL)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "only list bookmarks in this folder (id or title)")
	return cmd
}

func newBookmarksAddCmd(flags *profileFlags) *cobra.Command {
	var folder string
	cmd := &cobra.Command{
		Use:   "add <url> [title]",
		Short: "Add a bookmark",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBookmarks(cmd, flags, func(store *bookmarks.Store) error {
				title := args[0]
				if len(args) > 1 {
					title = args[1]
				}
				req := bookmarks.AddRequest{URL: args[0], Title: title}
				if folder != "" {
					id, err := resolveFolder(store, folder)
					if err != nil {
						return err
					}
					req.Folder = id
				}
				bookmark, err := store.Add(req)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), bookmark.ID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "folder id or title")
	return cmd
}

func newBookmarksRemoveCmd(flags *profileFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a bookmark by id or unique id prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBookmarks(cmd, flags, func(store *bookmarks.Store) error {
				id, err := resolveBookmark(store, args[0])
				if err != nil {
					return err
				}
				return store.Remove(id)
			})
		},
	}
}

func newBookmarksFoldersCmd(flags *profileFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "folders",
		Short: "List bookmark folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBookmarks(cmd, flags, func(store *bookmarks.Store) error {
				out := cmd.OutOrStdout()
				for _, folder := range store.Folders() {
					_, _ = fmt.Fprintf(out, "%s\t%s\n", folder.ID, folder.Title)
				}
				return nil
			})
		},
	}
}

func newBookmarksMkdirCmd(flags *profileFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <title>",
		Short: "Create a bookmark folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBookmarks(cmd, flags, func(store *bookmarks.Store) error {
				folder, err := store.AddFolder(args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), folder.ID)
				return err
			})
		},
	}
}

func newBookmarksRmdirCmd(flags *profileFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir <folder>",
		Short: "Remove a folder; its bookmarks move to the bookmarks bar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBookmarks(cmd, flags, func(store *bookmarks.Store) error {
				id, err := resolveFolder(store, args[0])
				if err != nil {
					return err
				}
				return store.RemoveFolder(id)
			})
		},
	}
}

func resolveBookmark(store *bookmarks.Store, raw string) (schema.BookmarkID, error) {
	raw = strings.TrimSpace(raw)
	var match schema.BookmarkID
	for _, bookmark := range store.List() {
		if string(bookmark.ID) == raw {
			return bookmark.ID, nil
		}
		if raw != "" && strings.HasPrefix(string(bookmark.ID), raw) {
			if match != "" {
				return "", fmt.Errorf("bookmark prefix %q is ambiguous", raw)
			}
			match = bookmark.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%s: %w", raw, schema.ErrBookmarkNotFound)
	}
	return match, nil
}

func resolveFolder(store *bookmarks.Store, raw string) (schema.FolderID, error) {
	raw = strings.TrimSpace(raw)
	if raw == string(schema.RootFolder) {
		return schema.RootFolder, nil
	}
	for _, folder := range store.Folders() {
		if string(folder.ID) == raw || strings.EqualFold(folder.Title, raw) {
			return folder.ID, nil
		}
	}
	return "", fmt.Errorf("%s: %w", raw, schema.ErrFolderNotFound)
}
