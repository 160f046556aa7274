package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-offline-store/store"
)

// NewLeaderboardCommand creates the leaderboard command.
func NewLeaderboardCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "leaderboard",
		Short:         "Show fans ranked by referrals",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeaderboard(rootOpts, limit, cmd)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of fans (default store.leaderboard_size)")
	return cmd
}

func runLeaderboard(opts *RootOptions, limit int, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if limit < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, NewExitError(ExitCommandError, "--limit must not be negative"))
	}

	container, err := opts.container(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	defer container.Close()

	if limit == 0 {
		limit = container.Config().Store.LeaderboardSize
	}
	board, err := container.Store().Leaderboard(cmd.Context(), limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}

	return formatter.Success(board, leaderboardLines(board)...)
}

func leaderboardLines(board []store.Record) []string {
	if len(board) == 0 {
		return []string{"no fans registered yet"}
	}
	lines := make([]string, 0, len(board))
	for i, fan := range board {
		name := strings.TrimSpace(fan.String("firstName") + " " + fan.String("lastName"))
		if name == "" {
			name = fan.ID()
		}
		lines = append(lines, fmt.Sprintf("%3d. %-30s %4d", i+1, name, fan.Referrals()))
	}
	return lines
}
