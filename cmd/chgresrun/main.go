package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/chgresrun/internal/app"
	"github.com/vk/chgresrun/internal/cli"
	"github.com/vk/chgresrun/internal/orchestrator"
)

// main is the entrypoint for the chgresrun application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args[1:])
	stop()
	os.Exit(exitCode(err, os.Stderr))
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	chgresApp := app.NewApp(outW, appConfig, nil)
	return chgresApp.Run(ctx)
}

// exitCode reports err on errW and maps it to the process exit status.
func exitCode(err error, errW io.Writer) int {
	if err == nil {
		return 0
	}

	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(errW, exitErr.Message)
		return exitErr.Code
	}

	var failure *orchestrator.DriverFailure
	if errors.As(err, &failure) {
		fmt.Fprintf(errW, "Error occurred running %s. Please see component error logs.\n", failure.Driver)
		return 1
	}

	fmt.Fprintln(errW, err)
	return 1
}
