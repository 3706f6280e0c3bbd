package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/diwenne/smashspeed-rn/config"
	"github.com/diwenne/smashspeed-rn/internal/bridge"
	"github.com/diwenne/smashspeed-rn/internal/server"
	"github.com/diwenne/smashspeed-rn/internal/trimmer"
	"github.com/diwenne/smashspeed-rn/internal/util"
)

// NewServerCmd creates the server command with subcommands
func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the trim module over HTTP",
	}

	cmd.AddCommand(newServerStartCmd())

	return cmd
}

// newServerStartCmd creates the 'server start' subcommand
func newServerStartCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:           "start",
		Short:         "Start the server in the foreground",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = config.GetServerPort()
			}
			return runServer(port)
		},
		Example: `  # Start server on the configured port
  smashspeed server start

  # Start server on specific port
  smashspeed server start -p 8080`,
	}

	cmd.Flags().IntVarP(&port, "port", "p", 29889, "Server port")

	return cmd
}

// newDispatcher wires the trim module into a dispatcher using the configured backend.
func newDispatcher() (*bridge.Dispatcher, error) {
	backend, err := trimmer.NewBackend(config.GetBackend(), trimmer.Options{
		CacheDir:   config.GetCacheDir(),
		BufferSize: config.GetBufferSize(),
		Logger:     util.GetLogger(),
	}, config.GetFFmpegPath())
	if err != nil {
		return nil, err
	}

	reg := bridge.NewRegistry()
	module := bridge.NewVideoTrimmerModule(backend, bridge.ModuleOptions{
		MaxClipSeconds: config.GetMaxClipSeconds(),
		Logger:         util.GetLogger(),
	})
	if err := module.Register(reg); err != nil {
		return nil, err
	}
	return bridge.NewDispatcher(reg, util.GetLogger()), nil
}

func runServer(port int) error {
	util.SetupGlobalLogger()

	d, err := newDispatcher()
	if err != nil {
		return err
	}

	access := logrus.New()
	access.SetOutput(os.Stderr)
	if util.IsVerbose() {
		access.SetLevel(logrus.DebugLevel)
	}
	srv := server.NewServer(port, config.GetCacheDir(), d, access)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	fmt.Printf("%s %s\n", color.New(color.FgGreen).Sprint("smashspeed server"),
		color.CyanString("http://localhost:%d", port))
	fmt.Println(color.New(color.Faint).Sprint("Press Ctrl+C to stop..."))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		if err != nil {
			return errors.Wrapf(err, "fail to start server on port %d", port)
		}
		return nil
	case <-sigChan:
		return srv.Stop()
	}
}
