package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MJE43/lattice-walk-go/internal/auth"
)

// tokenStore opens the keyring-backed token store. An empty fallbackPath
// falls back to a file next to the run database.
func (a *app) tokenStore(fallbackPath string) *auth.TokenStore {
	if fallbackPath == "" {
		fallbackPath = filepath.Join(filepath.Dir(a.cfg.Store.Path), "token.json")
	}
	return auth.NewTokenStore(a.cfg.Server.KeyringService, fallbackPath)
}

func (a *app) tokenCmd() *cobra.Command {
	var fallbackPath string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the API bearer token",
		Long: `Stores the bearer token "walksim serve" requires in the OS keyring.

Available subcommands:
  set [TOKEN] - store TOKEN, or generate a random one when omitted
  show        - print the stored token (masked unless --reveal)
  clear       - remove the stored token`,
	}
	cmd.PersistentFlags().StringVar(&fallbackPath, "token-file", "", "token file used when no OS keyring is available")

	setCmd := &cobra.Command{
		Use:   "set [TOKEN]",
		Short: "Store a token, generating one when omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts := a.tokenStore(fallbackPath)
			if len(args) == 1 {
				if err := ts.Set(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, "token stored")
				return nil
			}
			token, err := ts.Generate()
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, token)
			return nil
		},
	}

	var reveal bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.tokenStore(fallbackPath).Get()
			if errors.Is(err, auth.ErrNoToken) {
				fmt.Fprintln(a.stdout, "no token stored")
				return nil
			}
			if err != nil {
				return err
			}
			if !reveal {
				token = auth.Mask(token)
			}
			fmt.Fprintln(a.stdout, token)
			return nil
		},
	}
	showCmd.Flags().BoolVar(&reveal, "reveal", false, "print the token unmasked")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.tokenStore(fallbackPath).Clear(); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, "token cleared")
			return nil
		},
	}

	cmd.AddCommand(setCmd, showCmd, clearCmd)
	return cmd
}
