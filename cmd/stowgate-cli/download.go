package main

import (
	"io"
	"path/filepath"

	"github.com/sagarc03/stowgate/clientcli"
	"github.com/spf13/cobra"
)

var (
	downloadOutput string
	downloadStdout bool
)

var downloadCmd = &cobra.Command{
	Use:   "download <remote-path> [local-path]",
	Short: "Download a file from the server",
	Long: `Download a file from the server.

Private objects are only visible with the shared secret; without it they
report not found, just like missing ones.

Examples:
  stowgate-cli download path/file.txt
  stowgate-cli download path/file.txt ./local-file.txt
  stowgate-cli download --stdout config.json | jq .
  stowgate-cli download -o ./output.txt path/file.txt`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output file path")
	downloadCmd.Flags().BoolVar(&downloadStdout, "stdout", false, "write to stdout")
}

func runDownload(cmd *cobra.Command, args []string) error {
	remotePath := args[0]

	localPath := ""
	if len(args) > 1 {
		localPath = args[1]
	}
	if downloadOutput != "" {
		localPath = downloadOutput
	}
	if downloadStdout {
		localPath = "-"
	}
	if localPath == "" {
		localPath = filepath.Base(remotePath)
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	result, reader, err := client.Download(cmd.Context(), clientcli.DownloadOptions{
		RemotePath: remotePath,
		LocalPath:  localPath,
	})
	if err != nil {
		return handleError(cmd.ErrOrStderr(), err)
	}

	if reader != nil {
		defer func() { _ = reader.Close() }()
		if _, err := io.Copy(cmd.OutOrStdout(), reader); err != nil {
			return err
		}
		// content owns stdout; metadata only in JSON mode, on stderr
		if jsonOutput {
			return getFormatter().FormatDownload(cmd.ErrOrStderr(), result)
		}
		return nil
	}

	return getFormatter().FormatDownload(cmd.OutOrStdout(), result)
}
