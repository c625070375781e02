// Command rye is a terminal chat with a language model that saves every
// conversation as a markdown file.
package main

import (
	"fmt"
	"os"

	"github.com/petasbytes/rye/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
