package commands

import (
	"os"
	"strconv"
)

// envOrEmpty reads an environment variable, returning "" when unset —
// a small wrapper so call sites never need a second return value.
func envOrEmpty(name string) string {
	return os.Getenv(name)
}

func parseSeconds(s string) (int, error) {
	return strconv.Atoi(s)
}

// resolveFormat lets a command-local --format flag (spec §6) override the
// global --output persistent flag; an empty local value defers to --output.
func resolveFormat(local, global string) string {
	if local != "" {
		return local
	}
	return global
}
