package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/diwenne/smashspeed-rn/config"
	"github.com/diwenne/smashspeed-rn/internal/container"
	"github.com/diwenne/smashspeed-rn/internal/media"
	"github.com/diwenne/smashspeed-rn/internal/trimmer"
	"github.com/diwenne/smashspeed-rn/internal/util"
)

// TrimOptions holds command options
type TrimOptions struct {
	Start   float64
	End     float64
	Output  string
	Backend string
	MaxClip float64
	JSON    bool
}

// NewTrimCommand creates the trim command
func NewTrimCommand() *cobra.Command {
	opts := &TrimOptions{}

	cmd := &cobra.Command{
		Use:   "trim <source>",
		Short: "Cut a short clip out of a recording",
		Long: `Cut source[start, end] into a new MP4 by copying compressed samples. Nothing is
re-encoded. Times are in seconds and the end is inclusive.`,
		Args: cobra.ExactArgs(1),
		Example: `  smashspeed trim smash.mp4 --start 2.3 --end 2.55
  smashspeed trim smash.mp4 -s 2.3 -e 2.55 -o clip.mp4 --json
  smashspeed trim smash.mp4 -s 10 -e 14 --max-clip 0 --backend ffmpeg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("max-clip") {
				opts.MaxClip = config.GetMaxClipSeconds()
			}
			if !cmd.Flags().Changed("backend") {
				opts.Backend = config.GetBackend()
			}
			return runTrim(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.Float64VarP(&opts.Start, "start", "s", 0, "Window start in seconds")
	flags.Float64VarP(&opts.End, "end", "e", 0, "Window end in seconds")
	flags.StringVarP(&opts.Output, "output", "o", "", "Clip path (default: a new file in the cache dir)")
	flags.StringVar(&opts.Backend, "backend", trimmer.BackendAuto, "Trim backend (remux, ffmpeg or auto)")
	flags.Float64Var(&opts.MaxClip, "max-clip", 0.8, "Longest clip in seconds, 0 for no limit")
	flags.BoolVar(&opts.JSON, "json", false, "Print the trim report as JSON")
	cmd.MarkFlagRequired("end")

	cmd.RegisterFlagCompletionFunc("backend", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{trimmer.BackendRemux, trimmer.BackendFFmpeg, trimmer.BackendAuto}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runTrim(ctx context.Context, out io.Writer, source string, opts *TrimOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	w := trimmer.TimeWindow{Start: opts.Start, End: opts.End}

	info, err := container.Inspect(source)
	if err != nil {
		return trimmer.Fail(err)
	}
	if err := trimmer.ValidateWindow(w, info.Duration(), opts.MaxClip); err != nil {
		return trimmer.Fail(err)
	}

	topts := trimmer.Options{
		CacheDir:   config.GetCacheDir(),
		BufferSize: config.GetBufferSize(),
		Logger:     util.GetLogger(),
	}
	backend, err := trimmer.NewBackend(opts.Backend, topts, config.GetFFmpegPath())
	if err != nil {
		return err
	}

	rep, err := trimWith(ctx, backend, trimmer.Request{Source: source, Output: opts.Output, Window: w})
	if err != nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	printReport(out, rep)
	return nil
}

// trimWith runs req on backend. Backends without per track statistics
// produce a report with only the output and timing filled in.
func trimWith(ctx context.Context, backend trimmer.Trimmer, req trimmer.Request) (*trimmer.Report, error) {
	if r, ok := backend.(*trimmer.Remuxer); ok {
		return r.TrimWithReport(ctx, req)
	}

	began := time.Now()
	out, err := backend.Trim(ctx, req.Source, req.Window.Start, req.Window.End)
	if err != nil {
		return nil, err
	}
	if req.Output != "" {
		if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
			return nil, trimmer.Fail(errors.Wrap(err, "create output dir"))
		}
		if err := os.Rename(out, req.Output); err != nil {
			return nil, trimmer.Fail(errors.Wrapf(err, "move clip to %s", req.Output))
		}
		out = req.Output
	}
	rep := &trimmer.Report{Source: req.Source, Output: out, Window: req.Window, Elapsed: time.Since(began)}
	if info, err := container.Inspect(out); err == nil {
		rep.DurationUs = info.DurationUs
	}
	return rep, nil
}

func printReport(out io.Writer, rep *trimmer.Report) {
	fmt.Fprintf(out, "%s %s\n", color.New(color.FgGreen).Sprint("Trimmed"), color.CyanString(rep.Output))
	fmt.Fprintf(out, "  window   %.3fs - %.3fs\n", rep.Window.Start, rep.Window.End)
	fmt.Fprintf(out, "  duration %s\n", formatSeconds(rep.DurationUs))
	fmt.Fprintf(out, "  elapsed  %s\n", rep.Elapsed.Round(time.Millisecond))
	if len(rep.Tracks) == 0 {
		return
	}
	fmt.Fprintln(out)

	columns := []TableColumn{
		{Header: "SRC", Key: "source"},
		{Header: "DST", Key: "destination"},
		{Header: "KIND", Key: "kind"},
		{Header: "SAMPLES", Key: "samples"},
		{Header: "SKIPPED", Key: "skipped"},
		{Header: "BYTES", Key: "bytes"},
		{Header: "SPAN", Key: "span"},
	}
	var rows []map[string]interface{}
	for _, t := range rep.Tracks {
		span := "-"
		if t.Samples > 0 {
			span = fmt.Sprintf("%.3fs - %.3fs", media.UsToSeconds(t.FirstUs), media.UsToSeconds(t.LastUs))
		}
		rows = append(rows, map[string]interface{}{
			"source":      t.Source,
			"destination": t.Destination,
			"kind":        t.KindName,
			"samples":     t.Samples,
			"skipped":     t.Skipped,
			"bytes":       t.Bytes,
			"span":        span,
		})
	}
	renderTable(out, columns, rows)
}
