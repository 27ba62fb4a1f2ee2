package main

import (
	"github.com/sagarc03/stowgate/clientcli"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <remote-path> [remote-path...]",
	Short: "Delete files from the server",
	Long: `Delete one or more files from the server.

Deleting a key that does not exist succeeds.

Examples:
  stowgate-cli delete path/file.txt
  stowgate-cli delete old/a.txt old/b.txt old/c.txt
  stowgate-cli delete -q temp/file.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	results, err := client.Delete(cmd.Context(), clientcli.DeleteOptions{Paths: args})
	if err != nil {
		return handleError(cmd.ErrOrStderr(), err)
	}

	if err := getFormatter().FormatDelete(cmd.OutOrStdout(), results); err != nil {
		return err
	}

	if clientcli.HasDeleteErrors(results) {
		return &exitError{code: 1}
	}

	return nil
}
