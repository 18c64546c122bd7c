package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// Version задается при сборке через -ldflags="-X main.Version=X.Y.Z"
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp(os.Stdout, os.Stderr).Run(ctx, os.Args)
	stop()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newApp(out, errOut io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "commentctl",
		Usage:     "Read and write threaded post comments",
		Version:   Version,
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "Comment API URL (default from COMMENTS_SERVER_URL)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log requests to stderr",
			},
		},
		Commands: []*cli.Command{
			accountCommand(),
			postCommand(),
			commentCommand(),
		},
	}
}
