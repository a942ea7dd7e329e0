package client

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	transports "github.com/gemdrive/gemdrive/internal/cmd/client/transports"
	"github.com/gemdrive/gemdrive/internal/eventlog"
)

// newTailCommand constructs the `tail` subcommand.
func newTailCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print mutation events as they happen",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sinceStr, _ := cmd.Flags().GetString("since")
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")
			kind, _ := cmd.Flags().GetString("transport")
			token, _ := cmd.Flags().GetString("token")

			since, err := parseSince(sinceStr)
			if err != nil {
				return err
			}
			t, err := newFeedTransport(kind, baseURL(), token)
			if err != nil {
				return err
			}
			emit := eventPrinter(cmd.OutOrStdout())
			n := 0
			return t.Tail(cmd.Context(), transports.TailRequest{Since: since, Filter: filter}, func(ev eventlog.Event) error {
				if err := emit(ev); err != nil {
					return err
				}
				n++
				if limit > 0 && n >= limit {
					return transports.ErrStop
				}
				return nil
			})
		},
	}
	cmd.Flags().String("since", "", "Replay from timestamp: RFC3339 or ms (default: live only)")
	cmd.Flags().String("filter", "", "CEL filter (server-side)")
	cmd.Flags().Int("limit", 0, "Stop after N events (0 = infinite)")
	cmd.Flags().String("transport", "http", "Transport: http|grpc")
	cmd.Flags().String("token", tokenFromEnv(), "Bearer token (env GEMDRIVE_TOKEN)")
	return cmd
}

// newEventsCommand constructs the `events` subcommand.
func newEventsCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print logged events since a timestamp and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sinceStr, _ := cmd.Flags().GetString("since")
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")
			waitMs, _ := cmd.Flags().GetInt("wait-ms")
			token, _ := cmd.Flags().GetString("token")

			since, err := parseSince(sinceStr)
			if err != nil {
				return err
			}
			if since == nil {
				return errors.New("--since is required")
			}
			t := transports.NewHTTPTransport(baseURL(), token)
			evs, err := t.Log(cmd.Context(), transports.LogRequest{
				Since:  *since,
				Limit:  limit,
				Filter: filter,
				Wait:   time.Duration(waitMs) * time.Millisecond,
			})
			if err != nil {
				return err
			}
			emit := eventPrinter(cmd.OutOrStdout())
			for _, ev := range evs {
				if err := emit(ev); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().String("since", "", "Start timestamp: RFC3339 or ms")
	cmd.Flags().String("filter", "", "CEL filter (server-side)")
	cmd.Flags().Int("limit", 0, "Max events (0 = server default)")
	cmd.Flags().Int("wait-ms", 0, "Long-poll up to this long when nothing matches yet")
	cmd.Flags().String("token", tokenFromEnv(), "Bearer token (env GEMDRIVE_TOKEN)")
	return cmd
}
