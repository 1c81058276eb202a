package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var resetConfirmed bool

var twoFactorCmd = &cobra.Command{
	Use:   "2fa",
	Short: "Inspect or recover two-factor authentication",
	Long: `Operator commands run against the configured settings store. Use them
when the authenticator device is lost. The bolt backend is locked while the
server runs, so stop it first.`,
}

var twoFactorStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether two-factor authentication is enabled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStack(cmd, func(st *stack) error {
			status, err := st.auth.TwoFactorStatus(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "enabled:    %t\n", status.Enabled)
			fmt.Fprintf(out, "has secret: %t\n", status.HasSecret)
			switch {
			case status.SecretUnusable:
				fmt.Fprintln(out, "warning: the stored secret cannot be read; restore CALI_SETTINGS_KEY or run 2fa reset --yes")
			case status.Misconfigured():
				fmt.Fprintln(out, "warning: 2FA is enabled without a secret; logins are refused until it is reset")
			}
			return nil
		})
	},
}

var twoFactorDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable two-factor authentication, keeping the stored secret",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStack(cmd, func(st *stack) error {
			if err := st.auth.Disable(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "two-factor authentication disabled")
			return nil
		})
	},
}

var twoFactorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Disable two-factor authentication and erase the stored secret",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetConfirmed {
			return errors.New("reset erases the TOTP secret; pass --yes to confirm")
		}
		return withStack(cmd, func(st *stack) error {
			if err := st.auth.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "two-factor authentication reset")
			return nil
		})
	},
}

func withStack(cmd *cobra.Command, fn func(*stack) error) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStack(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func init() {
	rootCmd.AddCommand(twoFactorCmd)
	twoFactorCmd.AddCommand(twoFactorStatusCmd, twoFactorDisableCmd, twoFactorResetCmd)
	twoFactorResetCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "Confirm erasing the secret")
}
