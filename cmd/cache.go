package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/diwenne/smashspeed-rn/config"
	"github.com/diwenne/smashspeed-rn/internal/util"
)

// CacheOptions holds command options
type CacheOptions struct {
	Force bool
}

// NewCacheCommand creates a new cache command
func NewCacheCommand() *cobra.Command {
	opts := &CacheOptions{}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage trimmed clips",
	}

	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove trimmed clips from the cache dir",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheClean(cmd.OutOrStdout(), config.GetCacheDir(), opts)
		},
	}
	cleanCmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "Force clean without confirmation")

	cmd.AddCommand(cleanCmd)

	return cmd
}

// runCacheClean removes every clip in cacheDir. Other files are left alone.
func runCacheClean(out io.Writer, cacheDir string, opts *CacheOptions) error {
	if !opts.Force {
		fmt.Fprintln(out, "Cache clean requires --force flag to proceed.")
		fmt.Fprintf(out, "This will remove all trimmed clips in %s.\n", cacheDir)
		fmt.Fprintln(out, "Use: smashspeed cache clean --force")
		return nil
	}

	entries, err := os.ReadDir(cacheDir)
	if os.IsNotExist(err) {
		fmt.Fprintln(out, "No cache items found to clean.")
		return nil
	}
	if err != nil {
		return err
	}

	var cleaned []string
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !util.IsClipName(entry.Name()) {
			continue
		}
		path := filepath.Join(cacheDir, entry.Name())
		if err := os.Remove(path); err == nil {
			cleaned = append(cleaned, path)
		} else if !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %v", path, err))
		}
	}

	if len(cleaned) > 0 {
		fmt.Fprintln(out, "Cleaned cache items:")
		for _, item := range cleaned {
			fmt.Fprintf(out, "  - %s\n", item)
		}
	} else {
		fmt.Fprintln(out, "No cache items found to clean.")
	}

	if len(errs) > 0 {
		fmt.Fprintln(out, "\nErrors encountered:")
		for _, err := range errs {
			fmt.Fprintf(out, "  - %v\n", err)
		}
		return fmt.Errorf("cache clean completed with errors")
	}

	fmt.Fprintln(out, color.New(color.FgGreen).Sprint("Cache clean completed successfully."))
	return nil
}
