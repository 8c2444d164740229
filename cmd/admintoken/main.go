// Command admintoken mints a bearer token for the /admin routes.  It signs
// with JWT_SECRET, read from the environment or a .env file.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zapshift/parcel-service/internal/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admintoken [subject]",
		Short:         "Issue an admin bearer token",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if !cmd.Flags().Changed("ttl") {
				if mins, err := strconv.Atoi(os.Getenv("ADMIN_TOKEN_TTL_MIN")); err == nil && mins > 0 {
					ttl = time.Duration(mins) * time.Minute
				}
			}

			tok, err := utils.NewAccessToken(secret, args[0], role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", tok.Exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringP("role", "r", utils.RoleAdmin, "role claim")
	cmd.Flags().DurationP("ttl", "t", time.Hour, "token lifetime (defaults to ADMIN_TOKEN_TTL_MIN minutes)")
	return cmd
}
