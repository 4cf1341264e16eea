// Package main es la CLI de operacion de authsuite.
package main

import (
	"fmt"
	"os"
)

// Se setean en build.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cmd := NewRootCmd(openRuntime)
	cmd.Version = fmt.Sprintf("%s (commit: %s)", version, commit)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
