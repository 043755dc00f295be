package cli

import (
	"fmt"

	apperrors "github.com/DeBrosOfficial/caseledger/pkg/errors"
	"github.com/spf13/cobra"
)

func newConnectCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Connect the configured wallet and print the active account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			account, err := s.Connection.Connect(s.ctx)
			if err != nil {
				return err
			}
			chainID, err := s.Guard.CurrentChainID(s.ctx)
			if err != nil {
				return err
			}

			target := s.Guard.Target()
			if o.format == FormatJSON {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"account":       account.Hex(),
					"chainId":       chainID,
					"targetChainId": target.ChainID,
					"onTarget":      chainID == target.ChainID,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connected:  %s\n", account.Hex())
			fmt.Fprintf(out, "Chain:      %d\n", chainID)
			if chainID != target.ChainID {
				fmt.Fprintf(out, "Wallet is not on %s (%d); run 'evidencectl network ensure'\n", target.Name, target.ChainID)
			}
			return nil
		},
	}
}

func newNetworkCmd(o *rootOptions) *cobra.Command {
	networkCmd := &cobra.Command{
		Use:   "network",
		Short: "Inspect or switch the wallet's network",
	}

	ensureCmd := &cobra.Command{
		Use:   "ensure",
		Short: "Switch the wallet to the target network, registering it when unknown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			ok, err := s.Guard.EnsureCorrectNetwork(s.ctx)
			if err != nil {
				return err
			}
			target := s.Guard.Target()
			if o.format == FormatJSON {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"chainId":  target.ChainID,
					"name":     target.Name,
					"onTarget": ok,
				})
			}
			if !ok {
				have, _ := s.Guard.CurrentChainID(s.ctx)
				return apperrors.NewWrongNetworkError(target.ChainID, have)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wallet is on %s (%d)\n", target.Name, target.ChainID)
			return nil
		},
	}

	networkCmd.AddCommand(ensureCmd)
	return networkCmd
}
