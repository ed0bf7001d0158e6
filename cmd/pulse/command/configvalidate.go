// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pulseio/pulse/internal/config"
)

// configValidateCommand implements 'pulse config validate', the
// `[EXPANSION]` subcommand SPEC_FULL.md §1 calls for: load the effective
// configuration through the same env > file > defaults layering Load()
// uses (Load runs Validate()), and report the outcome without starting
// any component.
func configValidateCommand(params *GlobalParams) *cobra.Command {
	return &cobra.Command{
		Use:   "config validate",
		Short: "Load and validate the effective Pulse configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(params.ConfigFile)
			if err != nil {
				return fmt.Errorf("config invalid: %w", err)
			}
			fmt.Printf("config OK: window=%s tick=%s replicas=[%d,%d] weights=(%.2f,%.2f,%.2f)\n",
				cfg.WindowSeconds, cfg.TickInterval, cfg.MinReplicas, cfg.MaxReplicas, cfg.WCPU, cfg.WLat, cfg.WErr)
			return nil
		},
	}
}
