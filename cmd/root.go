package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diwenne/smashspeed-rn/internal/util"
	"github.com/diwenne/smashspeed-rn/internal/version"
)

var verbose bool

// NewRootCommand builds the smashspeed command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "smashspeed",
		Short: "Trim smash clips without re-encoding",
		Long: `smashspeed cuts short clips out of MP4 recordings by copying compressed samples
into a new container. It can run one-off trims, describe recordings and serve the
trim module over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.InitLogger(verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flag("version").Changed {
				info := version.Info()
				fmt.Fprintf(cmd.OutOrStdout(), "smashspeed version %s, build %s\n", info["Version"], info["GitCommit"])
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Print version information and exit")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(NewTrimCommand())
	rootCmd.AddCommand(NewProbeCommand())
	rootCmd.AddCommand(NewServerCmd())
	rootCmd.AddCommand(NewCacheCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

func Execute() error {
	return NewRootCommand().Execute()
}
