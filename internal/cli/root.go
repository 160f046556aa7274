// Package cli implements the fanzone command line.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-offline-store/config"
	"github.com/goliatone/go-offline-store/pkg/di"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"

	// extra is applied to every container the commands build.
	extra []di.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command. opts are passed to every
// container a subcommand builds.
func NewRootCommand(opts ...di.Option) *cobra.Command {
	rootOpts := &RootOptions{extra: opts}

	cmd := &cobra.Command{
		Use:   "fanzone",
		Short: "Naija5Fest fan zone",
		Long:  "Serve the Naija5Fest site with an offline cache and manage its registration data.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, rootOpts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", rootOpts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&rootOpts.ConfigPath, "config", "c", "", "config file (YAML)")
	cmd.PersistentFlags().BoolVarP(&rootOpts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&rootOpts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(rootOpts))
	cmd.AddCommand(NewRegisterCommand(rootOpts))
	cmd.AddCommand(NewSubscribeCommand(rootOpts))
	cmd.AddCommand(NewLeaderboardCommand(rootOpts))
	cmd.AddCommand(NewCacheCommand(rootOpts))
	cmd.AddCommand(NewSyncCommand(rootOpts))
	cmd.AddCommand(NewCountdownCommand(rootOpts))
	cmd.AddCommand(NewStatsCommand(rootOpts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// loadConfig reads the configuration named by --config on top of the
// persistent CLI defaults.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath, config.CLIDefaults()...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// container loads the configuration and wires the components.
func (o *RootOptions) container(ctx context.Context) (*di.Container, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	c, err := di.NewContainer(ctx, cfg, o.extra...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "initialise", err)
	}
	return c, nil
}
