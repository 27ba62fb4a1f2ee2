package main

import (
	"github.com/sagarc03/stowgate/clientcli"
	"github.com/spf13/cobra"
)

var (
	listPrefix string
	listLimit  int
	listAll    bool
	listCursor string
)

var listCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List objects on the server",
	Long: `List objects on the server.

NOTE: The server must run with server.list_enabled; otherwise this
      returns a 404 error.

Examples:
  stowgate-cli list
  stowgate-cli list images/
  stowgate-cli list --prefix documents/ --limit 10
  stowgate-cli list --all
  stowgate-cli list --cursor "documents/report.pdf"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listPrefix, "prefix", "", "filter by key prefix")
	listCmd.Flags().IntVarP(&listLimit, "limit", "l", 100, "max results per page (max: 1000)")
	listCmd.Flags().BoolVar(&listAll, "all", false, "fetch all pages")
	listCmd.Flags().StringVar(&listCursor, "cursor", "", "pagination cursor")
}

func runList(cmd *cobra.Command, args []string) error {
	prefix := listPrefix
	if len(args) > 0 {
		prefix = args[0]
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.List(cmd.Context(), clientcli.ListOptions{
		Prefix: prefix,
		Limit:  listLimit,
		Cursor: listCursor,
		All:    listAll,
	})
	if err != nil {
		return handleError(cmd.ErrOrStderr(), err)
	}

	return getFormatter().FormatList(cmd.OutOrStdout(), result)
}
