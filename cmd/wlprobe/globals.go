package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/danmuck/wlprobe/internal/config"
	"github.com/danmuck/wlprobe/internal/wayland"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatTOML = "toml"
)

// snapshot is the rendered result of one bootstrap.
type snapshot struct {
	Socket  string           `json:"socket" toml:"socket"`
	Globals []wayland.Global `json:"globals" toml:"globals"`
}

type globalsFlags struct {
	format     string
	iface      string
	minVersion uint32
}

func globalsCmd(root *rootFlags) *cobra.Command {
	flags := &globalsFlags{}
	cmd := &cobra.Command{
		Use:   "globals",
		Short: "Connect, roundtrip once, and print the advertised globals",
		Example: `  wlprobe globals
  wlprobe globals --format json
  wlprobe globals --interface wl_seat --min-version 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			cfg, err := root.load()
			if err != nil {
				return err
			}
			snap, err := collectGlobals(cfg)
			if err != nil {
				return err
			}
			snap.Globals = filterGlobals(snap.Globals, flags.iface, flags.minVersion)
			if flags.iface != "" && len(snap.Globals) == 0 {
				return fmt.Errorf("%w: %s version>=%d", wayland.ErrUnknownGlobal, flags.iface, flags.minVersion)
			}
			return render(cmd.OutOrStdout(), flags.format, snap)
		},
	}
	cmd.Flags().StringVarP(&flags.format, "format", "f", formatText, "output format: text, json, toml")
	cmd.Flags().StringVar(&flags.iface, "interface", "", "only show globals implementing this interface")
	cmd.Flags().Uint32Var(&flags.minVersion, "min-version", 0, "with --interface, require at least this version")
	return cmd
}

func (f *globalsFlags) validate() error {
	f.format = strings.ToLower(strings.TrimSpace(f.format))
	switch f.format {
	case formatText, formatJSON, formatTOML:
	default:
		return fmt.Errorf("unknown format %q (want text, json, or toml)", f.format)
	}
	f.iface = strings.TrimSpace(f.iface)
	if f.iface == "" && f.minVersion != 0 {
		return fmt.Errorf("--min-version requires --interface")
	}
	return nil
}

// collectGlobals runs the bootstrap sequence: connect, get the registry,
// roundtrip once, snapshot, disconnect.
func collectGlobals(cfg config.Config) (snapshot, error) {
	path, err := cfg.SocketPath()
	if err != nil {
		return snapshot{}, err
	}
	conn, err := wayland.Dial(path, cfg.Options())
	if err != nil {
		return snapshot{}, err
	}
	defer conn.Close()

	reg, err := conn.GetRegistry()
	if err != nil {
		return snapshot{}, err
	}
	if err := conn.Roundtrip(); err != nil {
		return snapshot{}, err
	}
	return snapshot{Socket: path, Globals: reg.Globals()}, nil
}

func filterGlobals(globals []wayland.Global, iface string, minVersion uint32) []wayland.Global {
	if iface == "" {
		return globals
	}
	out := make([]wayland.Global, 0, len(globals))
	for _, g := range globals {
		if g.Interface == iface && g.Version >= minVersion {
			out = append(out, g)
		}
	}
	return out
}

func render(w io.Writer, format string, snap snapshot) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case formatTOML:
		return toml.NewEncoder(w).Encode(snap)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tINTERFACE\tVERSION")
	for _, g := range snap.Globals {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", g.Name, g.Interface, g.Version)
	}
	return tw.Flush()
}
