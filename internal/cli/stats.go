package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-offline-store/site"
	"github.com/goliatone/go-offline-store/store"
)

// sleep is replaced in tests.
var sleep = time.Sleep

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	var animate bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show registration totals and sponsor pledges",
		Long: `Show how many teams, fans, subscribers and sponsor inquiries are
registered, the referral total and the pledged sponsorship in naira.

With --animate the counters count up the way the site's stat counters do.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(rootOpts, animate, cmd)
		},
	}

	cmd.Flags().BoolVar(&animate, "animate", false, "count up to each total (text output only)")
	return cmd
}

type statLine struct {
	label string
	value int
}

func runStats(opts *RootOptions, animate bool, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	container, err := opts.container(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	defer container.Close()

	st, err := store.CollectStats(cmd.Context(), container.Store())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}

	lines := []statLine{
		{"teams", st.Teams},
		{"fans", st.Fans},
		{"subscribers", st.Subscribers},
		{"sponsors", st.Sponsors},
		{"referrals", st.Referrals},
	}
	pledged := fmt.Sprintf("%-12s %s", "pledged", st.PledgedText)

	if animate && !formatter.JSON() {
		step := site.CounterStep(site.CounterSteps)
		for _, l := range lines {
			for _, v := range site.CounterFrames(l.value, site.CounterSteps) {
				fmt.Fprintf(formatter.Writer, "\r%-12s %d", l.label, v)
				sleep(step)
			}
			fmt.Fprintln(formatter.Writer)
		}
		return formatter.Success(st, pledged)
	}

	text := make([]string, 0, len(lines)+1)
	for _, l := range lines {
		text = append(text, fmt.Sprintf("%-12s %d", l.label, l.value))
	}
	return formatter.Success(st, append(text, pledged)...)
}
