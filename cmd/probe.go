package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/diwenne/smashspeed-rn/internal/container"
	"github.com/diwenne/smashspeed-rn/internal/media"
)

type ProbeOptions struct {
	JSON bool
}

func NewProbeCommand() *cobra.Command {
	opts := &ProbeOptions{}

	cmd := &cobra.Command{
		Use:   "probe <source>",
		Short: "Describe the tracks of a recording",
		Args:  cobra.ExactArgs(1),
		Example: `  smashspeed probe smash.mp4
  smashspeed probe smash.mp4 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print the description as JSON")
	return cmd
}

func runProbe(out io.Writer, source string, opts *ProbeOptions) error {
	info, err := container.Inspect(source)
	if err != nil {
		return err
	}
	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	printMediaInfo(out, info)
	return nil
}

func printMediaInfo(out io.Writer, info *container.MediaInfo) {
	fmt.Fprintf(out, "%s  %s, %d bytes\n", color.New(color.FgCyan).Sprint(info.Path),
		formatSeconds(info.DurationUs), info.Size)
	fmt.Fprintln(out)

	columns := []TableColumn{
		{Header: "#", Key: "index"},
		{Header: "KIND", Key: "kind"},
		{Header: "MIME", Key: "mime"},
		{Header: "DETAILS", Key: "details"},
		{Header: "SAMPLES", Key: "samples"},
		{Header: "DURATION", Key: "duration"},
	}
	var rows []map[string]interface{}
	for _, t := range info.Tracks {
		rows = append(rows, map[string]interface{}{
			"index":    t.Index,
			"kind":     t.Kind,
			"mime":     t.MIME,
			"details":  trackDetails(t),
			"samples":  fmt.Sprintf("%d (%d sync)", t.SampleCount, t.SyncCount),
			"duration": formatSeconds(t.DurationUs),
		})
	}
	renderTable(out, columns, rows)
}

func trackDetails(t container.TrackInfo) string {
	switch {
	case t.Error != "":
		return color.New(color.FgYellow).Sprint(t.Error)
	case t.Kind == media.KindVideo.String():
		return fmt.Sprintf("%dx%d %.2ffps", t.Width, t.Height, t.FPS)
	case t.Kind == media.KindAudio.String():
		return fmt.Sprintf("%dHz %dch", t.SampleRate, t.Channels)
	default:
		return t.Codec
	}
}

func formatSeconds(us int64) string {
	return fmt.Sprintf("%.3fs", media.UsToSeconds(us))
}
