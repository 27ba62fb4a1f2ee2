package main

import (
	"time"

	"github.com/sagarc03/stowgate/clientcli"
	"github.com/spf13/cobra"
)

var shareExpires time.Duration

var shareCmd = &cobra.Command{
	Use:   "share <remote-path>",
	Short: "Create a temporary download link",
	Long: `Create a presigned link that downloads one object, private or not,
until it expires. The link is signed locally; nothing is sent to the server.

Examples:
  stowgate-cli share reports/q1.pdf
  stowgate-cli share --expires 24h reports/q1.pdf
  stowgate-cli share -q reports/q1.pdf | pbcopy`,
	Args: cobra.ExactArgs(1),
	RunE: runShare,
}

func init() {
	shareCmd.Flags().DurationVar(&shareExpires, "expires", clientcli.DefaultShareExpiry, "link lifetime (max: 168h)")
}

func runShare(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.Share(clientcli.ShareOptions{
		RemotePath: args[0],
		Expires:    shareExpires,
	})
	if err != nil {
		return handleError(cmd.ErrOrStderr(), err)
	}

	return getFormatter().FormatShare(cmd.OutOrStdout(), result)
}
