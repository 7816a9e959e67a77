package cli

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "walletctl",
		Short:         "Manage the agent wallet secret",
		Long:          "walletctl creates, imports, inspects and removes the XRP Ledger seed used by the local wallet gateway.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newInitCmd(app),
		newImportCmd(app),
		newAddressCmd(app),
		newStatusCmd(app),
		newResetCmd(app),
		newAuditCmd(app),
	)

	return rootCmd
}
