package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stowgate"
	"github.com/sagarc03/stowgate/backend"
	"github.com/sagarc03/stowgate/config"
)

var addCmd = &cobra.Command{
	Use:   "add [flags] <file1> [file2] ...",
	Short: "Import local files into the backend",
	Long: `Import files from local paths straight into the configured backend,
without going through the HTTP gateway. Objects are private unless --public
is given.

Examples:
  # Add a single file
  stowgate add /path/to/file.txt

  # Add with a destination prefix
  stowgate add --dest images/ /path/to/photo.jpg

  # Add a directory recursively as public objects
  stowgate add -r --public /path/to/assets

  # Skip existing objects
  stowgate add --no-clobber /path/to/file.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var (
	addDest      string
	addRecursive bool
	addNoClobber bool
	addQuiet     bool
	addPublic    bool
	addText      bool
)

func init() {
	addCmd.Flags().StringVarP(&addDest, "dest", "d", "", "destination key prefix")
	addCmd.Flags().BoolVarP(&addRecursive, "recursive", "r", false, "recursively add directories")
	addCmd.Flags().BoolVarP(&addNoClobber, "no-clobber", "n", false, "skip existing objects instead of overwriting")
	addCmd.Flags().BoolVarP(&addQuiet, "quiet", "q", false, "suppress per-file output")
	addCmd.Flags().BoolVar(&addPublic, "public", false, "mark objects public")
	addCmd.Flags().BoolVar(&addText, "text", false, "mark objects as text")
	rootCmd.AddCommand(addCmd)
}

// fileEntry represents a file to be added with its source path and key.
type fileEntry struct {
	sourcePath string
	key        string
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	store, closeStore, err := backend.Open(ctx, cfg.Backend)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer closeStore()

	service, err := stowgate.NewService(store, stowgate.ServiceConfig{})
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	var files []fileEntry
	for _, arg := range args {
		entries, collectErr := collectFiles(arg, addRecursive, addDest)
		if collectErr != nil {
			return fmt.Errorf("collect files from %s: %w", arg, collectErr)
		}
		files = append(files, entries...)
	}

	if len(files) == 0 {
		slog.Info("no files to add")
		return nil
	}

	meta := addMetadata(addPublic, addText)
	added := 0
	skipped := 0

	for _, entry := range files {
		if addNoClobber {
			if _, headErr := store.Head(ctx, entry.key); headErr == nil {
				skipped++
				if !addQuiet {
					slog.Info("skipped (exists)", "key", entry.key)
				}
				continue
			}
		}

		if err := addFile(ctx, service, entry, meta); err != nil {
			return err
		}

		added++
		if !addQuiet {
			slog.Info("added", "key", entry.key, "visibility", meta.Visibility)
		}
	}

	slog.Info("add complete", "added", added, "skipped", skipped)
	return nil
}

func addFile(ctx context.Context, service *stowgate.Service, entry fileEntry, meta stowgate.Metadata) error {
	f, err := os.Open(entry.sourcePath) //#nosec G304 -- user-provided import path
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.sourcePath, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := service.Put(ctx, entry.key, meta, f); err != nil {
		return fmt.Errorf("add %s: %w", entry.key, err)
	}
	return nil
}

func addMetadata(public, text bool) stowgate.Metadata {
	meta := stowgate.Metadata{Visibility: stowgate.VisibilityPrivate}
	if public {
		meta.Visibility = stowgate.VisibilityPublic
	}
	if text {
		meta.Type = stowgate.ObjectTypeText
	}
	return meta
}

// collectFiles gathers files from a path, optionally recursively, and
// computes their keys under destPrefix.
func collectFiles(path string, recursive bool, destPrefix string) ([]fileEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	destPrefix = strings.TrimPrefix(destPrefix, "/")
	if destPrefix != "" && !strings.HasSuffix(destPrefix, "/") {
		destPrefix += "/"
	}

	if !info.IsDir() {
		return []fileEntry{{sourcePath: path, key: destPrefix + filepath.Base(path)}}, nil
	}

	if !recursive {
		return nil, fmt.Errorf("%s is a directory (use -r to add recursively)", path)
	}

	var entries []fileEntry
	walkErr := filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		relPath, relErr := filepath.Rel(path, walkPath)
		if relErr != nil {
			return relErr
		}

		entries = append(entries, fileEntry{
			sourcePath: walkPath,
			key:        destPrefix + filepath.ToSlash(relPath),
		})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return entries, nil
}
