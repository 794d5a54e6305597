package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/loanflow/internal/models"
	"github.com/example/loanflow/internal/ports/secondary"
)

// JobCmd returns the job command group.
func JobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect reminder jobs",
	}
	cmd.AddCommand(jobListCmd())
	return cmd
}

func jobListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reminder jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			entityID, _ := cmd.Flags().GetString("entity")

			application, _, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			jobs, err := application.Jobs.List(NewContext(), secondary.JobFilters{
				EntityID: entityID,
				Status:   models.JobStatus(status),
			})
			if err != nil {
				return fmt.Errorf("failed to list jobs: %w", err)
			}

			if len(jobs) == 0 {
				fmt.Println("No reminder jobs found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tENTITY\tCHANNEL\tTEMPLATE\tSCHEDULED\tSTATUS\tATTEMPTS\tLAST ERROR")
			for _, job := range jobs {
				lastError := job.LastError
				if lastError == "" {
					lastError = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\n",
					job.ID,
					job.EntityID,
					job.Channel,
					job.TemplateName,
					job.ScheduledAt.Format(time.RFC3339),
					colorStatus(job.Status),
					job.Attempts,
					job.MaxRetries,
					lastError,
				)
			}
			w.Flush()
			return nil
		},
	}
	cmd.Flags().String("status", "", "filter by status (QUEUED, SENDING, SENT, FAILED, EXHAUSTED, CANCELLED)")
	cmd.Flags().String("entity", "", "filter by entity id")
	return cmd
}

func colorStatus(status models.JobStatus) string {
	switch status {
	case models.JobSent:
		return color.GreenString(string(status))
	case models.JobFailed, models.JobExhausted:
		return color.RedString(string(status))
	case models.JobSending:
		return color.YellowString(string(status))
	default:
		return string(status)
	}
}
