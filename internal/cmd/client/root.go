package client

import (
	"github.com/spf13/cobra"
)

// Commands returns the client subcommands for embedding in a root command.
func Commands(baseURL BaseURLFunc) []*cobra.Command {
	return []*cobra.Command{
		newTailCommand(baseURL),
		newEventsCommand(baseURL),
		newMirrorCommand(baseURL),
		newTokenCommand(),
	}
}

// NewRoot constructs a root Cobra command for the gemdrive client.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "gemdrive",
		Short: "gemdrive client commands",
	}
	root.AddCommand(Commands(baseURL)...)
	return root
}
