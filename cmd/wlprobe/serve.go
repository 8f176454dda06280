package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danmuck/wlprobe/internal/config"
	logs "github.com/danmuck/wlprobe/internal/logging"
	"github.com/danmuck/wlprobe/internal/watch"
	"github.com/danmuck/wlprobe/internal/wayland"
)

func serveCmd(root *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep a registry live and serve it over HTTP",
		Long: `serve bootstraps the registry, then keeps dispatching compositor
events in the background while serving:

  GET /health    pump readiness
  GET /globals   snapshot, or ?interface=I&min_version=N lookup
  GET /metrics   prometheus exposition
  GET /events    websocket stream of registry changes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if a := strings.TrimSpace(addr); a != "" {
				cfg.Serve.Addr = a
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides [serve] addr)")
	return cmd
}

// runServe returns nil on a clean shutdown and the pump error when the
// compositor connection fails.
func runServe(ctx context.Context, cfg config.Config) error {
	path, err := cfg.SocketPath()
	if err != nil {
		return err
	}
	conn, err := wayland.Dial(path, cfg.Options())
	if err != nil {
		return err
	}
	defer conn.Close()

	hub := watch.NewHub(watch.OriginChecker(cfg.Serve.CorsOrigins))
	reg, err := conn.GetRegistry(wayland.WithObserver(hub.Publish))
	if err != nil {
		return err
	}
	if err := conn.Roundtrip(); err != nil {
		return err
	}
	logs.Infof("wlprobe serve socket=%s globals=%d", path, len(reg.Globals()))

	srv := watch.New(watch.Options{
		Addr:        cfg.Serve.Addr,
		CorsOrigins: cfg.Serve.CorsOrigins,
		Socket:      path,
		Version:     version,
	}, reg, hub)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pumpErr := make(chan error, 1)
	go func() {
		err := conn.Run()
		srv.SetPumpError(err)
		pumpErr <- err
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		return err
	}
	select {
	case err := <-pumpErr:
		logs.Errf("wlprobe serve pump stopped: %v", err)
		return err
	default:
	}
	_ = conn.Close()
	<-pumpErr
	return nil
}
