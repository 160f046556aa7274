package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goliatone/go-offline-store/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		// commands report their own failures; only print what they did not
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "fanzone:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
