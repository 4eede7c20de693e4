package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:   "dashboard",
		Usage:  "Watch ERC-20 transfers of one contract and serve aggregated views",
		Flags:  globalFlags(),
		Before: loadEnvFile,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the views over HTTP and websocket, optionally exporting them to Kafka",
				Flags:  serveFlags(),
				Action: run,
			},
			{
				Name:   "show",
				Usage:  "Fetch every view once and print it to the terminal",
				Flags:  showFlags(),
				Action: show,
			},
		},
	}
}

// loadEnvFile loads --env-file into the process environment. Variables that are already
// set keep their value.
func loadEnvFile(c *cli.Context) error {
	path := c.String("env-file")
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %q: %w", path, err)
	}
	return nil
}
