// Command fasctl drives a fasdesk server from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load(".env")

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "fasctl",
		Usage: "Chat with the AAOIFI FAS assistant from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   "http://localhost:8080",
				Usage:   "fasdesk server URL",
				EnvVars: []string{"FASDESK_SERVER"},
			},
			&cli.StringFlag{
				Name:    "session",
				Usage:   "Session ID sent in the X-Session-ID header",
				EnvVars: []string{"FASDESK_SESSION"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token when the server has authentication enabled",
				EnvVars: []string{"FASDESK_TOKEN"},
			},
		},
		Commands: []*cli.Command{
			SessionCommand(),
			CategoryCommand(),
			SendCommand(),
			NewCommand(),
			ListCommand(),
			LoadCommand(),
			RenameCommand(),
			DeleteCommand(),
			MessagesCommand(),
			ClearCommand(),
			DownloadCommand(),
			UploadCommand(),
			RenderCommand(),
		},
	}
}

func clientFrom(c *cli.Context) *apiClient {
	return newAPIClient(c.String("server"), c.String("session"), c.String("token"))
}
