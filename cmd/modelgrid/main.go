package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/acrebrook/modelgrid/internal/cli"
)

func main() {
	// Best-effort .env load so MODELGRID_* defaults apply before the
	// command tree reads them.
	_ = godotenv.Load()

	if err := run(context.Background(), os.Stdout, os.Stderr, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the command tree. Split from main so tests can drive it
// with their own streams and arguments.
func run(ctx context.Context, out, errW io.Writer, args []string) error {
	return cli.New(out, errW).Run(ctx, args)
}
