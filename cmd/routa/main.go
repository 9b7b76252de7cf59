// Command routa is the coordination core's command-line entry point.
package main

import (
	"fmt"
	"os"

	"github.com/routa-dev/routa/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
