package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/loanflow/internal/cli"
	"github.com/example/loanflow/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "loanflow",
		Short:   "loanflow - workflow automation core for the loan-origination CRM",
		Version: version.String(),
		Long: `loanflow validates stage transitions, evaluates automation rules,
tracks SLA dwell windows and dispatches reminder jobs for leads,
loan cases and bank applications.`,
	}
	cli.RootFlags(rootCmd)

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.JobCmd())
	rootCmd.AddCommand(cli.EscalationCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
