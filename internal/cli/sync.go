package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-offline-store/bgsync"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <tag>",
		Short: "Move pending submissions for a sync tag",
		Long: fmt.Sprintf(`Move every pending submission for a sync tag into its completed
collection and notify for each one.

Tags: %s.`, strings.Join(bgsync.NewSyncer(nil, nil).Tags(), ", ")),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, args[0], cmd)
		},
	}
}

func runSync(opts *RootOptions, tag string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	container, err := opts.container(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	defer container.Close()

	res, err := container.Syncer().Handle(cmd.Context(), tag)
	switch {
	case errors.Is(err, bgsync.ErrUnknownTag), errors.Is(err, bgsync.ErrSourceUnavailable):
		return formatter.Fail(ExitCommandError, ErrCodeSync, err)
	case err != nil:
		return formatter.Fail(ExitFailure, ErrCodeSync, err)
	}

	if err := formatter.Success(res, fmt.Sprintf("%s: %d synced, %d failed", res.Tag, res.Synced, res.Failed)); err != nil {
		return err
	}
	if res.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d item(s) failed to sync", res.Failed))
	}
	return nil
}
