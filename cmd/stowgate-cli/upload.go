package main

import (
	"github.com/sagarc03/stowgate"
	"github.com/sagarc03/stowgate/clientcli"
	"github.com/spf13/cobra"
)

var (
	uploadRecursive bool
	uploadPublic    bool
	uploadText      bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <local-path> [remote-path]",
	Short: "Upload files to the server",
	Long: `Upload files to the server. Objects are private unless --public is given.

Without a remote path the local path, cleaned of leading "./" and "../", is
used as the key.

Examples:
  stowgate-cli upload ./file.txt path/file.txt
  stowgate-cli upload --public ./logo.png assets/logo.png
  stowgate-cli upload --text ./notes.md
  stowgate-cli upload -r ./images/ media/images/`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().BoolVarP(&uploadRecursive, "recursive", "r", false, "upload directory recursively")
	uploadCmd.Flags().BoolVar(&uploadPublic, "public", false, "make the objects readable without auth")
	uploadCmd.Flags().BoolVarP(&uploadText, "text", "t", false, "serve the objects as UTF-8 text")
}

func runUpload(cmd *cobra.Command, args []string) error {
	opts := clientcli.UploadOptions{
		LocalPath:  args[0],
		Visibility: stowgate.VisibilityPrivate,
		Recursive:  uploadRecursive,
	}
	if len(args) > 1 {
		opts.RemotePath = args[1]
	}
	if uploadPublic {
		opts.Visibility = stowgate.VisibilityPublic
	}
	if uploadText {
		opts.Type = stowgate.ObjectTypeText
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	results, err := client.Upload(cmd.Context(), opts)
	if err != nil {
		return handleError(cmd.ErrOrStderr(), err)
	}

	if err := getFormatter().FormatUpload(cmd.OutOrStdout(), results); err != nil {
		return err
	}

	for i := range results {
		if results[i].Err != nil {
			return &exitError{code: 1}
		}
	}

	return nil
}
