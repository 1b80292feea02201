package config

import (
	"fmt"
	"io"
	"os"
)

var (
	exit             = os.Exit
	stderr io.Writer = os.Stderr
)

// Exitf writes a formatted message to stderr and exits with code 1. It is
// meant for main functions that cannot recover from a startup or run error.
func Exitf(format string, args ...any) {
	fmt.Fprintf(stderr, format+"\n", args...)
	exit(1)
}
