package main

import (
	"fmt"
	"os"

	"github.com/go-faster/errors"

	"github.com/hitoshi/gameshelf/internal/app"
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 && (args[0] == "-h" || args[0] == "--help" || args[0] == "help") {
		fmt.Fprint(os.Stdout, app.Usage())
		return
	}

	if err := app.Run(os.Stdout, args); err != nil {
		fmt.Fprintf(os.Stderr, "gameshelf: %v\n", err)
		if errors.Is(err, app.ErrMissingImportSource) {
			fmt.Fprint(os.Stderr, app.Usage())
		}
		os.Exit(1)
	}
}
