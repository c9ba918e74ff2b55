// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"

	"github.com/joomcode/errorx"
	"github.com/spf13/cobra"

	"github.com/cndeploy/nodeprep/cmd/nodeprep/commands/version"
	"github.com/cndeploy/nodeprep/internal/config"
	"github.com/cndeploy/nodeprep/internal/doctor"
	"github.com/cndeploy/nodeprep/pkg/logx"
)

// examples:
// ./nodeprep host check
// ./nodeprep host setup --config ./nodeprep.yaml
// ./nodeprep swap plan --config ./nodeprep.yaml
// ./nodeprep swap apply --config ./nodeprep.yaml

var (
	// Used for flags.
	flagConfig       string
	flagVersion      bool
	flagOutputFormat string

	rootCmd = &cobra.Command{
		Use:   "nodeprep",
		Short: "Prepares a Linux host for running a blockchain node",
		Long:  "nodeprep - prepares a Linux host for running a blockchain node: hostname, /etc/hosts, SSH hardening, firewall and swap",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagVersion {
				version.PrintVersion(cmd, flagOutputFormat)
				return nil
			}

			return cmd.Help()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file path")

	// support '--version', '-v' to show version information
	rootCmd.PersistentFlags().BoolVarP(&flagVersion, "version", "v", false, "Show version")
	rootCmd.PersistentFlags().StringVarP(&flagOutputFormat, "output", "o", "yaml", "Output format (yaml|json)")

	// disable command sorting to keep the order of commands as added
	cobra.EnableCommandSorting = false

	// add subcommands
	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(swapCmd)
	rootCmd.AddCommand(version.GetCmd())
}

// Execute executes the root command.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errorx.IllegalArgument.New("context is required")
	}

	cobra.OnInitialize(func() {
		initConfig(ctx)
	})

	// execute the root command
	_, err := rootCmd.ExecuteContextC(ctx)
	if err != nil {
		return errorx.IllegalState.Wrap(err, "failed to execute command")
	}

	return nil
}

func initConfig(ctx context.Context) {
	if err := config.Initialize(flagConfig); err != nil {
		doctor.CheckErr(ctx, err)
	}

	logConfig := config.Get().Log
	if err := logx.WithConfig(&logConfig, nil); err != nil {
		doctor.CheckErr(ctx, err)
	}
}
