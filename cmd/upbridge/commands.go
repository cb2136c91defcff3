package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/snowmerak/upbridge/lib/store"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print every published state change as a JSON line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			enc := json.NewEncoder(consoleOut(s.cfg, cmd.OutOrStdout(), cmd.ErrOrStderr()))
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case ev, ok := <-s.events:
					if !ok {
						return nil
					}
					if err := enc.Encode(ev); err != nil {
						return fmt.Errorf("failed to write event: %w", err)
					}
				}
			}
		},
	}
}

// runOneShot opens a session, waits for the handshake, runs send, and waits for one of
// the reply events within the --wait timeout.
func runOneShot(cmd *cobra.Command, wait time.Duration, send func(context.Context, *session), replies ...store.EventName) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), wait)
	defer cancel()

	if _, err := s.waitFor(ctx, store.EventPrefChanged); err != nil {
		return fmt.Errorf("host did not answer the handshake: %w", err)
	}

	send(ctx, s)

	ev, err := s.waitFor(ctx, replies...)
	if err != nil {
		return fmt.Errorf("host did not confirm: %w", err)
	}
	return json.NewEncoder(consoleOut(s.cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())).Encode(ev)
}

func toggleCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "toggle",
		Short: "Turn the feature off if it is on, on if it is off",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd, wait, func(ctx context.Context, s *session) {
				s.bridge.Toggle(ctx)
			}, store.EventPrefChanged)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long to wait for the host")
	return cmd
}

func siteCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:       "site enable|disable <site>",
		Short:     "Allow or block a requesting site",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"enable", "disable"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action, site := args[0], args[1]
			switch action {
			case "enable", "disable":
			default:
				return fmt.Errorf("unknown site action %q - valid values: enable, disable", action)
			}

			return runOneShot(cmd, wait, func(ctx context.Context, s *session) {
				if action == "enable" {
					s.bridge.EnableSite(ctx, site)
				} else {
					s.bridge.DisableSite(ctx, site)
				}
			}, store.EventSitePrefReceived)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long to wait for the host")
	return cmd
}

func interestCmd() *cobra.Command {
	var wait time.Duration

	share := &cobra.Command{
		Use:   "share <interest> <true|false>",
		Short: "Set whether an interest may be shared with sites",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			interest := args[0]
			value, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid sharable value %q: %w", args[1], err)
			}

			return runOneShot(cmd, wait, func(ctx context.Context, s *session) {
				s.bridge.SetInterestSharable(ctx, interest, value)
			}, store.EventSharableUpdateReceived, store.EventPageloadReceived)
		},
	}
	share.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long to wait for the host")

	cmd := &cobra.Command{
		Use:   "interest",
		Short: "Manage interests in the profile",
	}
	cmd.AddCommand(share)
	return cmd
}
