package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sanspareilsmyn/pumplens/internal/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and check the configuration without consuming any frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			// Load has already rejected a malformed omega.
			omega, _ := cfg.Stat.Omega()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "configuration %s is valid\n", configFile)
			fmt.Fprintf(out, "  stat:        %s (enabled=%t)\n", cfg.Stat.Name, cfg.Stat.Enabled)
			fmt.Fprintf(out, "  source:      %s\n", cfg.Source.Type)
			fmt.Fprintf(out, "  moment:      %s\n", strings.Join(cfg.Stat.MomentPatches, ", "))
			fmt.Fprintf(out, "  inflow:      %s\n", strings.Join(cfg.Stat.InflowPatches, ", "))
			fmt.Fprintf(out, "  outflow:     %s\n", strings.Join(cfg.Stat.OutflowPatches, ", "))
			fmt.Fprintf(out, "  density:     %s\n", densityMode(cfg.Stat))
			fmt.Fprintf(out, "  efficiency:  %s\n", cfg.Stat.EfficiencyModel())
			fmt.Fprintf(out, "  omega:       (%g, %g, %g) rad/s\n", omega.X, omega.Y, omega.Z)
			return nil
		},
	}
}

func densityMode(s config.StatConfig) string {
	if s.Incompressible() {
		return fmt.Sprintf("incompressible (rhoRef=%g)", s.RhoRef)
	}
	return "compressible (" + s.RhoName + ")"
}
