// Command natya recognises activities from a live accelerometer stream.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &serveOptions{}

	root := &cobra.Command{
		Use:   "natya",
		Short: "Train and recognise activities from accelerometer data",
		Long: `natya reads accelerometer samples from a DIPPID sender (UDP, serial or
MQTT), extracts frequency features over a sliding window and trains an SVM
on labelled recordings. Predictions are streamed over WebSocket, optionally
published to MQTT and archived to sqlite.

Without a subcommand natya runs serve.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	opts.bind(root)

	serve := &cobra.Command{
		Use:          "serve",
		Short:        "Run the sensor pipeline and the HTTP control surface",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	opts.bind(serve)

	root.AddCommand(serve, &cobra.Command{
		Use:   "version",
		Short: "Print the natya version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "natya", version)
		},
	})
	return root
}
