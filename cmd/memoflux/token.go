package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"memoflux/internal/auth"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Issue an API bearer token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.APITokenSecret == "" {
			return errors.New("API_TOKEN_SECRET is not set")
		}
		tok, err := auth.NewJWT(cfg.APITokenSecret).Sign(args[0], tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", auth.DefaultTTL, "token lifetime")
}
