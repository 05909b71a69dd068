package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTargetsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the target accounts configured in the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			names := cfg.TargetNames()
			if len(names) == 0 {
				fmt.Fprintf(out, "No targets configured. Add a targets section to %s\n", g.configPath)
				return nil
			}

			fmt.Fprintln(out, "Available targets:")
			for _, name := range names {
				t, _ := cfg.Target(name)
				user := t.Username
				if user == "" {
					user = "(no username)"
				}
				marker := ""
				if name == cfg.DefaultTarget {
					marker = " (default)"
				}
				fmt.Fprintf(out, "  %s: %s%s\n", name, user, marker)
			}
			return nil
		},
	}
}
