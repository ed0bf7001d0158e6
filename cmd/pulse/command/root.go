// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

// Package command implements the pulse CLI, following the teacher's
// cmd/cluster-agent/subcommands layout (one package per subcommand,
// wired onto a single root *cobra.Command) minus its fx dependency
// injection, which is disproportionate to this module's size.
package command

import (
	"github.com/spf13/cobra"
)

// GlobalParams are the flags every subcommand shares.
type GlobalParams struct {
	ConfigFile string
	LogLevel   string
	Debug      bool
}

// Root builds the top-level pulse command.
func Root() *cobra.Command {
	params := &GlobalParams{}

	root := &cobra.Command{
		Use:   "pulse",
		Short: "Pulse autoscaling control plane",
	}
	root.PersistentFlags().StringVar(&params.ConfigFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&params.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&params.Debug, "debug", false, "use a human-readable development logger")

	root.AddCommand(startCommand(params))
	root.AddCommand(configValidateCommand(params))
	return root
}
