// replog replays recorded observability activity into a live backend.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "replog: %s\n", err)
		os.Exit(1)
	}
}
