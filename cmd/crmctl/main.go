package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd(openRuntime).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "crmctl",
		Short:         "Operator tooling for the bank CRM document store",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(statsCmd(open))
	rootCmd.AddCommand(customerCmd(open))
	rootCmd.AddCommand(ticketCmd(open))
	rootCmd.AddCommand(migrateCmd())

	return rootCmd
}
