package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upbridge",
		Short: "Dashboard bridge to the user-profile host",
		Long: `upbridge speaks the dashboard side of the user-profile host protocol.

It performs the prefs/payload handshake, keeps the synchronized state, and
prints every state change or sends a single command to the host.

Configuration is read from $HOME/.config/upbridge/config.yaml (or the file
named by UPBRIDGE_CONFIG) and UPBRIDGE_* environment variables.

Examples:
  upbridge watch                         # print each state change as JSON
  upbridge toggle                        # flip the feature on or off
  upbridge site disable example.com      # block a requesting site
  upbridge interest share Cooking true   # mark an interest sharable`,
		SilenceUsage: true,
	}

	cmd.AddCommand(watchCmd(), toggleCmd(), siteCmd(), interestCmd())
	return cmd
}
