package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"owacal/internal/deliver"
	appLog "owacal/internal/log"
	"owacal/internal/metrics"
	"owacal/internal/pipeline"
	"owacal/internal/web"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		listen string
		target string
		post   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Refresh the calendar on a schedule and serve it over HTTP",
		Long: `serve scrapes the calendar on the refresh cron schedule and serves the
latest snapshot at /calendar.ics, /events.json and /events.txt, with
/health and Prometheus /metrics. With --post every refreshed snapshot is
also delivered to post.url over mutual TLS.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			// CLI --listen overrides config file listen if provided.
			if listen != "" {
				cfg.Listen = listen
			}
			if post && cfg.Post.URL == "" {
				return fmt.Errorf("--post requires post.url in the config file")
			}
			tgt, err := resolveTarget(cfg, target)
			if err != nil {
				return err
			}

			appLog.Info("effective config",
				"listen", cfg.Listen,
				"refresh", cfg.RefreshCron,
				"days", cfg.Days,
				"targets", len(cfg.Targets),
				"post", post,
				"basic_auth", cfg.BasicAuth != nil,
			)

			var poster web.Poster
			if post {
				trust := cfg.Trust()
				url := cfg.Post.URL
				poster = func(ctx context.Context, payload []byte) error {
					return deliver.Post(ctx, payload, url, trust)
				}
			}

			m := metrics.New()
			// The daemon runs unattended; a session that expired must not
			// open a window.
			ref := web.NewRefresher(newBrowser(cfg, tgt, false), pipeline.Options{
				Target: tgt,
				Days:   cfg.Days,
			}, m, poster)
			srv := web.NewServer(cfg, ref, m)

			eg, ctx := errgroup.WithContext(cmd.Context())
			eg.Go(func() error { return ref.Schedule(ctx, cfg.RefreshCron) })
			eg.Go(func() error { return srv.ListenAndServe(ctx) })
			err = eg.Wait()
			appLog.Info("owacal exiting")
			return err
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().StringVarP(&target, "target", "t", "", "Target account from the config (default: default_target)")
	cmd.Flags().BoolVarP(&post, "post", "p", false, "Deliver every refreshed snapshot to post.url")
	return cmd
}
