package client

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gemdrive/gemdrive/internal/auth"
)

// newTokenCommand constructs the `token` subcommand.
func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development HS256 token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, _ := cmd.Flags().GetString("secret")
			subject, _ := cmd.Flags().GetString("subject")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			issuer, _ := cmd.Flags().GetString("issuer")
			audience, _ := cmd.Flags().GetString("audience")
			if secret == "" {
				return errors.New("--secret (or GEMDRIVE_AUTH_SECRET) is required")
			}
			if subject == "" {
				return errors.New("--subject is required")
			}
			tok, err := auth.NewJWT(secret, issuer, audience).Mint(subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().String("secret", os.Getenv("GEMDRIVE_AUTH_SECRET"), "HMAC secret shared with the server")
	cmd.Flags().String("subject", "", "Token subject (becomes the event owner)")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	cmd.Flags().String("issuer", os.Getenv("GEMDRIVE_AUTH_ISSUER"), "Issuer claim")
	cmd.Flags().String("audience", os.Getenv("GEMDRIVE_AUTH_AUDIENCE"), "Audience claim")
	return cmd
}
