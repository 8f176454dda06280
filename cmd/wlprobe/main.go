package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danmuck/wlprobe/internal/config"
	logs "github.com/danmuck/wlprobe/internal/logging"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

type rootFlags struct {
	configPath string
	socket     string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wlprobe: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "wlprobe",
		Short: "Inspect the globals a Wayland compositor advertises",
		Long: `wlprobe connects to a Wayland compositor, completes the registry
bootstrap, and reports the advertised globals.

The socket is taken from --socket, then the config file, then
$XDG_RUNTIME_DIR/$WAYLAND_DISPLAY.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a wlprobe TOML config")
	cmd.PersistentFlags().StringVar(&flags.socket, "socket", "", "compositor socket path (overrides config and environment)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error, off)")

	cmd.AddCommand(
		globalsCmd(flags),
		serveCmd(flags),
		configCmd(),
		versionCmd(),
	)
	return cmd
}

// load reads the config file, applies flag overrides, and configures logging.
func (f *rootFlags) load() (config.Config, error) {
	cfg, err := config.LoadOrDefault(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if s := strings.TrimSpace(f.socket); s != "" {
		cfg.Socket = s
	}
	level := cfg.Log.Level
	if l := strings.TrimSpace(f.logLevel); l != "" {
		if _, ok := logs.ParseLevel(l); !ok {
			return config.Config{}, fmt.Errorf("unknown log level %q", l)
		}
		level = l
	}
	logs.ConfigureWith(logs.ProfileRuntime, level)
	return cfg, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wlprobe %s (%s)\n", version, commit)
		},
	}
}

func configCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage wlprobe config files",
	}
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter config",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "wlprobe.toml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteTemplate(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
