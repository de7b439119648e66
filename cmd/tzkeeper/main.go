package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/tzkeeper/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if app.IsUsageError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
