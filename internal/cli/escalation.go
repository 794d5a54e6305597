package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/loanflow/internal/ports/primary"
)

// EscalationCmd returns the escalation command group.
func EscalationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "escalation",
		Short: "Inspect and resolve escalations",
	}
	cmd.AddCommand(escalationListCmd())
	cmd.AddCommand(escalationResolveCmd())
	return cmd
}

func escalationListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List escalations",
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID, _ := cmd.Flags().GetString("entity")
			openOnly, _ := cmd.Flags().GetBool("open")

			application, _, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			escalations, err := application.Escalations.List(NewContext(), primary.EscalationFilters{
				EntityID: entityID,
				OpenOnly: openOnly,
			})
			if err != nil {
				return fmt.Errorf("failed to list escalations: %w", err)
			}

			if len(escalations) == 0 {
				fmt.Println("No escalations found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tENTITY\tLEVEL\tREASON\tOPENED\tRESOLVED")
			for _, item := range escalations {
				resolved := "-"
				if item.ResolvedAt.Valid {
					resolved = item.ResolvedAt.Time.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					item.ID,
					item.EntityID,
					item.Level,
					item.Reason,
					item.OpenedAt.Format(time.RFC3339),
					resolved,
				)
			}
			w.Flush()
			return nil
		},
	}
	cmd.Flags().String("entity", "", "filter by entity id")
	cmd.Flags().Bool("open", false, "only show open escalations")
	return cmd
}

func escalationResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <escalation-id>",
		Short: "Resolve an escalation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolvedBy, _ := cmd.Flags().GetString("by")

			application, _, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Escalations.Resolve(NewContext(), args[0], resolvedBy); err != nil {
				return fmt.Errorf("failed to resolve escalation: %w", err)
			}
			fmt.Printf("Escalation %s resolved.\n", args[0])
			return nil
		},
	}
	cmd.Flags().String("by", "operator", "who is resolving the escalation")
	return cmd
}
