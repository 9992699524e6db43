package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tsesc/tw-homedog/internal/auth"
)

func runGenKey(args []string) int {
	fs := flag.NewFlagSet("genkey", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	key := fs.String("key", "", "API key to hash")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if strings.TrimSpace(*key) == "" {
		fmt.Fprintln(os.Stderr, "--key is required")
		return 2
	}

	hash, err := auth.HashAPIKey(*key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash key: %v\n", err)
		return 1
	}

	fmt.Printf("API_KEY_HASH=%s\n", hash)
	return 0
}
