package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-offline-store/offline"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the offline cache",
		Long: `Manage the offline cache partitions.

Use cache.storage=sqlite for results that outlive the command.`,
	}
	cmd.AddCommand(newCacheInstallCommand(rootOpts))
	cmd.AddCommand(newCacheListCommand(rootOpts))
	return cmd
}

// PartitionInfo describes one cache partition.
type PartitionInfo struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
}

// InstallResult is the cache install payload.
type InstallResult struct {
	State      string          `json:"state"`
	Partitions []PartitionInfo `json:"partitions"`
}

func newCacheInstallCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Pre-cache the manifest and activate the configured version",
		Long: `Fetch every manifest resource into the static partition, then activate
the version, deleting partitions of older versions.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheInstall(rootOpts, cmd)
		},
	}
}

func runCacheInstall(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	container, err := opts.container(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	defer container.Close()

	ctrl, err := container.Install(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInstall, err)
	}
	formatter.VerboseLog("controller %s", ctrl.State())

	// a manually activated version waits for SKIP_WAITING
	if ctrl.State() == offline.StateWaiting {
		if err := container.Registration().SkipWaiting(cmd.Context()); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeInstall, err)
		}
	}

	parts, err := listPartitions(cmd, container.Storage())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}

	res := InstallResult{State: ctrl.State().String(), Partitions: parts}
	lines := []string{fmt.Sprintf("installed %s (%s)", ctrl.Config().StaticName, res.State)}
	return formatter.Success(res, append(lines, partitionLines(parts)...)...)
}

func newCacheListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List cache partitions and their entry counts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheList(rootOpts, cmd)
		},
	}
}

func runCacheList(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	container, err := opts.container(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	defer container.Close()

	parts, err := listPartitions(cmd, container.Storage())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}
	lines := partitionLines(parts)
	if len(lines) == 0 {
		lines = []string{"no cache partitions"}
	}
	return formatter.Success(parts, lines...)
}

func listPartitions(cmd *cobra.Command, storage offline.Storage) ([]PartitionInfo, error) {
	ctx := cmd.Context()
	names, err := storage.Names(ctx)
	if err != nil {
		return nil, err
	}

	parts := make([]PartitionInfo, 0, len(names))
	for _, name := range names {
		p, err := storage.Open(ctx, name)
		if err != nil {
			return nil, err
		}
		keys, err := p.Keys(ctx)
		if err != nil {
			return nil, err
		}
		parts = append(parts, PartitionInfo{Name: name, Entries: len(keys)})
	}
	return parts, nil
}

func partitionLines(parts []PartitionInfo) []string {
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		lines = append(lines, fmt.Sprintf("%-32s %d entries", p.Name, p.Entries))
	}
	return lines
}
