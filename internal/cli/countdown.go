package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-offline-store/site"
)

// now is replaced in tests.
var now = time.Now

// NewCountdownCommand creates the countdown command.
func NewCountdownCommand(rootOpts *RootOptions) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:           "countdown",
		Short:         "Show the time left before the tournament",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCountdown(rootOpts, target, cmd)
		},
	}

	cmd.Flags().StringVar(&target, "target", site.TournamentStart.Format(time.RFC3339), "tournament start (RFC 3339)")
	return cmd
}

func runCountdown(opts *RootOptions, target string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	at, err := time.Parse(time.RFC3339, target)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, WrapExitError(ExitCommandError, "invalid --target", err))
	}

	remaining := site.Countdown(now(), at)
	return formatter.Success(remaining, remaining.String())
}
