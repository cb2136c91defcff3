// Command fakehost plays the privileged host over stdio so upbridge can be run against
// it with transport.kind=process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snowmerak/upbridge/lib/hostsim"
	"github.com/snowmerak/upbridge/lib/transport"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var codecName string
	var verbose bool

	cmd := &cobra.Command{
		Use:          "fakehost",
		Short:        "Answer upbridge commands with a canned profile",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := transport.CodecByName(codecName)
			if err != nil {
				return err
			}

			logger := zap.NewNop()
			if verbose {
				// stdout carries frames, so logs must stay on stderr.
				zc := zap.NewDevelopmentConfig()
				zc.OutputPaths = []string{"stderr"}
				if logger, err = zc.Build(); err != nil {
					return err
				}
			}
			defer logger.Sync()

			host := hostsim.New(hostsim.DefaultSeed(), logger)
			return host.Serve(cmd.Context(), os.Stdin, os.Stdout, codec)
		},
	}
	cmd.Flags().StringVar(&codecName, "codec", "json", "wire codec: json or protobuf")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log commands to stderr")

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
