package main

import (
	"fmt"
	"io"
	"os"

	"github.com/MrSnakeDoc/dlbridge/internal/app"
	"github.com/MrSnakeDoc/dlbridge/internal/config"
	"github.com/MrSnakeDoc/dlbridge/internal/version"
)

// Exit codes
const (
	ExitSuccess        = 0
	ExitGeneralError   = 1
	ExitInvalidArgs    = 2
	ExitServiceOffline = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		return runServe(stderr)
	case "probe":
		return runProbe(args, stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, version.String())
		return ExitSuccess
	case "help", "-h", "--help":
		printUsage(stdout)
		return ExitSuccess
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return ExitInvalidArgs
	}
}

func runServe(stderr io.Writer) int {
	a, err := app.New(config.Load())
	if err != nil {
		fmt.Fprintf(stderr, "❌ dlbridge failed to start: %v\n", err)
		return ExitGeneralError
	}
	if err := a.Run(); err != nil {
		fmt.Fprintf(stderr, "❌ dlbridge stopped with error: %v\n", err)
		return ExitGeneralError
	}
	return ExitSuccess
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: dlbridge [command] [options]

Commands:
  serve     Run the bridge daemon (default)
  probe     Check which ports and endpoints of the download service answer
  version   Print build information

Run 'dlbridge probe -h' for probe options.`)
}
