package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the site through the offline cache",
		Long: `Install the configured cache version, then serve the site and the
data store API until interrupted.

If the install fails the site is still proxied, straight to the network.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, addr, cmd)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(opts *RootOptions, addr string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := opts.container(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	defer container.Close()

	logger := container.Logger()
	if _, err := container.Install(ctx); err != nil {
		logger.Warn("offline cache not installed, serving from network", zap.Error(err))
	}

	srv, err := container.Server()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}

	if addr == "" {
		addr = container.Config().Server.Addr
	}
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}
	logger.Info("server stopped")
	return nil
}
