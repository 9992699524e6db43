package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "backfill":
		return runBackfill(args[1:])
	case "cleanup":
		return runCleanup(args[1:])
	case "audit":
		return runAudit(args[1:])
	case "genkey":
		return runGenKey(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "homedog CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  homedog <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health    Verify database connectivity and report counters")
	fmt.Fprintln(os.Stderr, "  ingest    Run scraped listing payloads through the dedup gate")
	fmt.Fprintln(os.Stderr, "  backfill  Recompute entity fingerprints for stored listings")
	fmt.Fprintln(os.Stderr, "  cleanup   Plan or apply duplicate-group merges")
	fmt.Fprintln(os.Stderr, "  audit     Show recent dedup audit events")
	fmt.Fprintln(os.Stderr, "  genkey    Hash an API key for API_KEY_HASH")
	fmt.Fprintln(os.Stderr, "  serve     Start the Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"homedog <command> -h\" for command-specific flags.")
}
