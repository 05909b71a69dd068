package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"owacal/internal/config"
	"owacal/internal/export"
	appLog "owacal/internal/log"
	"owacal/internal/model"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	debug      bool
	quiet      bool
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "owacal", "config.yaml")
}

// loadConfig reads the config file named by --config, creating a default
// one on first run.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", g.configPath, err)
	}
	return cfg, nil
}

func (g *globalFlags) setupLogging(stderr io.Writer) {
	appLog.SetOutput(stderr)
	switch {
	case g.quiet:
		appLog.SetLevel(appLog.LevelError)
	case g.debug:
		appLog.SetLevel(appLog.LevelDebug)
	default:
		appLog.SetLevel(appLog.LevelInfo)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "owacal",
		Short: "Scrape a web calendar and export it as text, iCalendar or JSON",
		Long: `owacal reads the events a signed-in Outlook Web calendar renders,
normalizes them and prints or serves them as text, iCalendar or JSON.
JSON snapshots can be delivered to an HTTPS endpoint with mutual TLS.

Sign in once with a visible browser:
  owacal fetch --target work --headful

Afterwards fetch headless, or keep a snapshot fresh with:
  owacal serve`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			g.setupLogging(cmd.ErrOrStderr())
		},
	}
	cmd.SetVersionTemplate(`{{printf "owacal version %s\n" .Version}}`)

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", defaultConfigPath(), "Path to config file (.yaml or .toml)")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Log debug output, including rejected candidates")
	cmd.PersistentFlags().BoolVarP(&g.quiet, "quiet", "q", false, "Only log errors")
	cmd.MarkFlagsMutuallyExclusive("debug", "quiet")

	cmd.AddCommand(
		newFetchCmd(g),
		newParseCmd(g),
		newPostCmd(),
		newTargetsCmd(g),
		newServeCmd(g),
	)
	return cmd
}

// outputFlags are shared by fetch and parse.
type outputFlags struct {
	format export.Format
	output string
	post   bool
	days   int
}

func (o *outputFlags) register(cmd *cobra.Command, days int) {
	o.format = export.FormatText
	cmd.Flags().VarP(&o.format, "format", "f", "Output format: text, ical or json")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "Write output to file instead of stdout")
	cmd.Flags().BoolVarP(&o.post, "post", "p", false, "POST the JSON output to post.url with mutual TLS (requires --format json)")
	cmd.Flags().IntVarP(&o.days, "days", "d", days, "Keep events within this many days from today (0 keeps all)")
}

func (o *outputFlags) validate(cfg *config.Config) error {
	if !o.post {
		return nil
	}
	if o.format != export.FormatJSON {
		return fmt.Errorf("--post requires --format json")
	}
	if cfg.Post.URL == "" {
		return fmt.Errorf("--post requires post.url in the config file")
	}
	return nil
}

// emit renders snap, writes it to --output or stdout and posts it when
// --post is set. Posted JSON is not echoed to stdout unless --output is set.
func (o *outputFlags) emit(cmd *cobra.Command, cfg *config.Config, snap model.Snapshot) error {
	body, err := export.Render(o.format, snap)
	if err != nil {
		return err
	}

	switch {
	case o.output != "":
		if err := os.WriteFile(o.output, body, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", o.output, err)
		}
		appLog.Info("saved", "path", o.output, "format", o.format.String(), "events", len(snap.Events))
	case !o.post:
		if _, err := cmd.OutOrStdout().Write(body); err != nil {
			return err
		}
	}

	if o.post {
		return postSnapshot(cmd, cfg, body)
	}
	return nil
}
