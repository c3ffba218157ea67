package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/stemsi/prairie-backend/internal/service"
)

var errTokenInvalid = errors.New("token is invalid")

func newTokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Sign or check variant tokens",
	}

	tokenCmd.AddCommand(&cobra.Command{
		Use:   "sign <variant_id>",
		Short: "Print a variant token for the grading socket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			variantID, err := parseID(args[0])
			if err != nil {
				return err
			}
			cfg, log := setup(cmd)
			tokens, err := service.NewTokenService(cfg, log)
			if err != nil {
				return err
			}
			token, err := tokens.SignVariantToken(variantID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	})

	tokenCmd.AddCommand(&cobra.Command{
		Use:   "check <variant_id> <token>",
		Short: "Check a variant token; exits non-zero when invalid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			variantID, err := parseID(args[0])
			if err != nil {
				return err
			}
			cfg, log := setup(cmd)
			tokens, err := service.NewTokenService(cfg, log)
			if err != nil {
				return err
			}
			if !tokens.CheckVariantToken(args[1], variantID) {
				return errTokenInvalid
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	})

	return tokenCmd
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
