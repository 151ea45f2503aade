// Package main is the entry point for the ralphgate CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LISSConsulting/LISSTech.RalphGate/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

// exitError carries a process exit code out of a command without printing
// anything further.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := rootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ralphgate",
		Short:         "Completion gate for the Ralph loop",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			return initCLILogging(verbose)
		},
	}
	root.PersistentFlags().Bool("verbose", false, "log to stderr at debug level")
	root.PersistentFlags().String("dir", "", "project directory (default: $CLAUDE_PROJECT_DIR or the working directory)")

	root.AddCommand(
		hookCmd(),
		startCmd(),
		cancelCmd(),
		statusCmd(),
		checkCmd(),
		watchCmd(),
		initCmd(),
	)
	return root
}

func initCLILogging(verbose bool) error {
	if !verbose {
		_, err := logging.Init(logging.Config{Level: "disabled"})
		return err
	}
	_, err := logging.Init(logging.Config{Level: "debug", Format: "console", Output: os.Stderr})
	return err
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
