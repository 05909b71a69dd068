package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"owacal/internal/config"
	"owacal/internal/deliver"
	"owacal/internal/pipeline"
	"owacal/internal/scrape"
)

// resolveTarget returns the selected target name, or nil when none is
// selected. An unknown name is an error.
func resolveTarget(cfg *config.Config, name string) (*string, error) {
	if name == "" {
		name = cfg.DefaultTarget
	}
	if name == "" {
		return nil, nil
	}
	if _, ok := cfg.Target(name); !ok {
		return nil, fmt.Errorf("target %q not found in config; run `owacal targets` to list them", name)
	}
	return &name, nil
}

// newBrowser builds the scrape source for target from the config.
func newBrowser(cfg *config.Config, target *string, headful bool) *scrape.Browser {
	name := ""
	if target != nil {
		name = *target
	}
	return scrape.NewBrowser(scrape.BrowserOptions{
		URL:        cfg.Browser.CalendarURL,
		ProfileDir: cfg.ProfilePath(name),
		Headful:    headful || cfg.Browser.Headful,
		ExecPath:   cfg.Browser.ExecPath,
		Timeout:    time.Duration(cfg.Browser.TimeoutSeconds) * time.Second,
	})
}

func newFetchCmd(g *globalFlags) *cobra.Command {
	var (
		out     outputFlags
		target  string
		headful bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Scrape the calendar once and print or deliver the events",
		Example: `  owacal fetch --target work
  owacal fetch --target work --format ical -o calendar.ics
  owacal fetch --target work --format json --post`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := out.validate(cfg); err != nil {
				return err
			}
			tgt, err := resolveTarget(cfg, target)
			if err != nil {
				return err
			}

			days := out.days
			if !cmd.Flags().Changed("days") {
				days = cfg.Days
			}

			res, err := pipeline.Run(cmd.Context(), newBrowser(cfg, tgt, headful), pipeline.Options{
				Target: tgt,
				Days:   days,
			})
			if err != nil {
				return err
			}
			if len(res.Snapshot.Events) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no events found; the page may need more time to load or its structure changed")
			}
			return out.emit(cmd, cfg, res.Snapshot)
		},
	}

	out.register(cmd, 0)
	cmd.Flags().Lookup("days").Usage = "Keep events within this many days from today (default: days from the config)"
	cmd.Flags().StringVarP(&target, "target", "t", "", "Target account from the config (default: default_target)")
	cmd.Flags().BoolVar(&headful, "headful", false, "Show the browser window, e.g. to sign in")
	return cmd
}

func newParseCmd(g *globalFlags) *cobra.Command {
	var (
		out    outputFlags
		target string
	)

	cmd := &cobra.Command{
		Use:   "parse [file|-]",
		Short: "Run the pipeline over saved fragments, one per line",
		Long: `parse reads newline-separated raw fragments (for example aria-labels
saved from a previous run) from a file or stdin and runs them through the
same collect, parse and export steps as fetch. No browser is started.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := out.validate(cfg); err != nil {
				return err
			}
			tgt, err := resolveTarget(cfg, target)
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			frags, err := readLines(in)
			if err != nil {
				return err
			}

			res, err := pipeline.Run(cmd.Context(), scrape.Static(frags), pipeline.Options{
				Target: tgt,
				Days:   out.days,
			})
			if err != nil {
				return err
			}
			return out.emit(cmd, cfg, res.Snapshot)
		},
	}

	out.register(cmd, 0)
	cmd.Flags().StringVarP(&target, "target", "t", "", "Target account from the config, used as the JSON target label")
	return cmd
}

// readLines returns the non-blank lines of r with trailing CR removed.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read fragments: %w", err)
	}
	return lines, nil
}

// postSnapshot delivers body to the configured post URL.
func postSnapshot(cmd *cobra.Command, cfg *config.Config, body []byte) error {
	if err := deliver.Post(cmd.Context(), body, cfg.Post.URL, cfg.Trust()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "posted", len(body), "bytes")
	return nil
}
