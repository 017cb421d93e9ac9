// Command dayplan is a terminal day planner that keeps the day as one
// gapless sequence of tasks.
package main

import (
	"os"

	"github.com/sandeepkv93/dayplan/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
