package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ligustah/csvsync/internal/syncjob"
)

// Exit codes
const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitInvalidArgs   = 2
	ExitLookupFailed  = 3
	ExitAuthFailed    = 4
	ExitStreamFailed  = 5
	ExitParseFailed   = 6
	ExitArchiveFailed = 7
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "run":
		return runSync(cmdArgs)
	case "latest":
		return runLatest(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: csvsync <command> [options]

Commands:
  run     Resolve the latest export, download it and parse its records
  latest  Print the URL of the latest export and exit

Configuration is read from -config (YAML), a .env file in the working
directory and CSVSYNC_* environment variables, in that order.

Run 'csvsync <command> -h' for command-specific help.`)
}

// exitCode maps a run error to the process exit code.
func exitCode(err error) int {
	var (
		le *syncjob.LookupError
		ae *syncjob.AuthError
		se *syncjob.StreamError
		pe *syncjob.ParseError
		ar *syncjob.ArchiveError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &le):
		return ExitLookupFailed
	case errors.As(err, &ae):
		return ExitAuthFailed
	case errors.As(err, &se):
		return ExitStreamFailed
	case errors.As(err, &pe):
		return ExitParseFailed
	case errors.As(err, &ar):
		return ExitArchiveFailed
	default:
		return ExitGeneralError
	}
}
