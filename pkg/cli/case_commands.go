package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func parseID(name, s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, s)
	}
	return id, nil
}

func newCaseCmd(o *rootOptions) *cobra.Command {
	caseCmd := &cobra.Command{
		Use:   "case",
		Short: "Create and inspect cases",
	}

	var description string
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a case owned by the connected account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.connect(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			res, err := s.Facade.CreateCase(s.ctx, args[0], description)
			if err != nil {
				return err
			}
			if o.format == FormatJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printWrite(cmd.OutOrStdout(), "Case created", res)
			return nil
		},
	}
	createCmd.Flags().StringVarP(&description, "description", "d", "", "case description")

	getCmd := &cobra.Command{
		Use:   "get <caseId>",
		Short: "Show a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, err := parseID("case id", args[0])
			if err != nil {
				return err
			}
			s, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			c, err := s.Facade.GetCase(s.ctx, caseID)
			if err != nil {
				return err
			}
			if o.format == FormatJSON {
				return printJSON(cmd.OutOrStdout(), c)
			}
			printCase(cmd.OutOrStdout(), c)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every case on the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			cases, err := s.Facade.ListCases(s.ctx)
			if err != nil {
				return err
			}
			if o.format == FormatJSON {
				return printJSON(cmd.OutOrStdout(), cases)
			}
			printCases(cmd.OutOrStdout(), cases)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:       "status <caseId> <open|closed>",
		Short:     "Open or close a case (owner only)",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"open", "closed"},
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, err := parseID("case id", args[0])
			if err != nil {
				return err
			}
			var active bool
			switch args[1] {
			case "open":
				active = true
			case "closed":
				active = false
			default:
				return fmt.Errorf("invalid status %q: want open or closed", args[1])
			}

			s, err := o.connect(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			res, err := s.Facade.SetCaseStatus(s.ctx, caseID, active)
			if err != nil {
				return err
			}
			if o.format == FormatJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printWrite(cmd.OutOrStdout(), fmt.Sprintf("Case %d is now %s", caseID, statusLabel(active)), res)
			return nil
		},
	}

	summaryCmd := &cobra.Command{
		Use:   "summary <caseId>",
		Short: "Count a case's evidence by admissibility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, err := parseID("case id", args[0])
			if err != nil {
				return err
			}
			s, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			sum, err := s.Facade.Summarize(s.ctx, caseID)
			if err != nil {
				return err
			}
			if o.format == FormatJSON {
				return printJSON(cmd.OutOrStdout(), sum)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Case %d\n", sum.CaseID)
			fmt.Fprintf(out, "Total:       %d\n", sum.Total)
			fmt.Fprintf(out, "Admissible:  %d\n", sum.Admissible)
			fmt.Fprintf(out, "Pending:     %d\n", sum.Pending)
			return nil
		},
	}

	caseCmd.AddCommand(createCmd, getCmd, listCmd, statusCmd, summaryCmd)
	return caseCmd
}
