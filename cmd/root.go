// Package cmd implements the mavrika command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mavrika",
	Short: "mavrika - Atlas orchestrator and knowledge base",
	Long: `mavrika runs the Atlas orchestrator: a conversational agent grounded in
the company knowledge base that can provision EVE agents, assign them
tasks, and store new knowledge.

Running mavrika without a subcommand starts an interactive chat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
