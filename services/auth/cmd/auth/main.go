package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "auth",
		Usage: "shop authentication and session service",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "env-file",
				Value: []string{".env"},
				Usage: "dotenv files loaded before reading the environment",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the scheduled cleanup",
				Action: runServe,
			},
			{
				Name:   "cleanup",
				Usage:  "purge expired sessions and abandoned registrations once",
				Action: runCleanup,
			},
			{
				Name:   "migrate",
				Usage:  "create or update the auth schema",
				Action: runMigrate,
			},
		},
		DefaultCommand: "serve",
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
