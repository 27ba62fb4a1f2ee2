package main

import (
	"fmt"

	"github.com/sagarc03/stowgate"
	"github.com/sagarc03/stowgate/clientcli"
	"github.com/spf13/cobra"
)

var visibilityText bool

var visibilityCmd = &cobra.Command{
	Use:   "visibility <remote-path> <public|private>",
	Short: "Change the visibility of an object",
	Long: `Replace the metadata of an object without re-uploading it.

The replacement is complete: an object uploaded with --text loses its text
type unless --text is given again.

Examples:
  stowgate-cli visibility reports/q1.pdf public
  stowgate-cli visibility --text notes.md private`,
	Args: cobra.ExactArgs(2),
	RunE: runVisibility,
}

func init() {
	visibilityCmd.Flags().BoolVarP(&visibilityText, "text", "t", false, "keep or set the text type")
}

func runVisibility(cmd *cobra.Command, args []string) error {
	visibility, err := stowgate.ParseVisibility(args[1])
	if err != nil {
		return fmt.Errorf("visibility: %w", err)
	}

	opts := clientcli.MetadataOptions{
		RemotePath: args[0],
		Visibility: visibility,
	}
	if visibilityText {
		opts.Type = stowgate.ObjectTypeText
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.SetMetadata(cmd.Context(), opts)
	if err != nil {
		return handleError(cmd.ErrOrStderr(), err)
	}

	return getFormatter().FormatMetadata(cmd.OutOrStdout(), result)
}
