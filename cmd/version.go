/*
Copyright © 2026 Deutsche Telekom AG.
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/rbac-lookup/internal/system"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := fmt.Fprint(cmd.OutOrStdout(), system.PrettyInfo())
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
