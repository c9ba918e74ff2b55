// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/automa-saga/automa"
	"github.com/joomcode/errorx"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cndeploy/nodeprep/internal/config"
	"github.com/cndeploy/nodeprep/internal/doctor"
	"github.com/cndeploy/nodeprep/internal/facts"
	"github.com/cndeploy/nodeprep/internal/swap"
	"github.com/cndeploy/nodeprep/internal/workflows"
	"github.com/cndeploy/nodeprep/pkg/logx"
	"github.com/cndeploy/nodeprep/pkg/plock"
)

const lockPath = "/var/run/nodeprep.lock"

var (
	hostCmd = &cobra.Command{
		Use:   "host",
		Short: "Host provisioning commands",
	}

	hostSetupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Provision this host for running a blockchain node",
		Long:  "Applies hostname, /etc/hosts, SSH hardening, firewall and swap configuration to this host",
		Run: func(cmd *cobra.Command, args []string) {
			runHostSetup(cmd.Context())
		},
	}

	hostCheckCmd = &cobra.Command{
		Use:   "check",
		Short: "Report host facts and what a setup run would change",
		Run: func(cmd *cobra.Command, args []string) {
			runHostCheck(cmd)
		},
	}
)

func init() {
	hostCmd.AddCommand(hostSetupCmd)
	hostCmd.AddCommand(hostCheckCmd)
}

// hostCheckReport is the output of `nodeprep host check`.
type hostCheckReport struct {
	Facts facts.Facts `yaml:"facts" json:"facts"`
	Swap  swap.Result `yaml:"swap" json:"swap"`
}

func runHostSetup(ctx context.Context) {
	lock, err := plock.Acquire(lockPath)
	if err != nil {
		doctor.CheckErr(ctx, err)
	}
	defer func() { _ = lock.Release() }()

	hostFacts, err := facts.Gather()
	if err != nil {
		doctor.CheckErr(ctx, err)
	}

	logx.As().Info().
		Str("osVendor", hostFacts.OSVendor).
		Str("osVersion", hostFacts.OSVersion).
		Str("hostname", hostFacts.Hostname).
		Str("machineIP", hostFacts.MachineIP).
		Int("totalMemoryMB", hostFacts.TotalMemoryMB).
		Msg("Host facts gathered")

	cfg := config.Get()
	if cfg.Swap.Enabled && hostFacts.TotalMemoryMB > 0 && cfg.Swap.SizeMB > 4*hostFacts.TotalMemoryMB {
		logx.As().Warn().
			Int("sizeMB", cfg.Swap.SizeMB).
			Int("totalMemoryMB", hostFacts.TotalMemoryMB).
			Msg("Requested swap size exceeds four times the physical memory")
	}

	wb, err := workflows.NewHostSetupWorkflow(cfg).Build()
	if err != nil {
		doctor.CheckErr(ctx, err)
	}

	report := wb.Execute(ctx)
	if report.Error != nil {
		instructions := doctor.GetInstructionsFromReport(report)
		doctor.CheckErr(ctx, report.Error, instructions)
	}

	for _, stepReport := range report.StepReports {
		if stepReport.Status == automa.StatusFailed {
			instructions := doctor.GetInstructionsFromReport(stepReport)
			doctor.CheckErr(ctx, stepReport.Error, instructions)
		}
	}

	logx.As().Info().Msg("Host setup completed successfully")
}

func runHostCheck(cmd *cobra.Command) {
	ctx := cmd.Context()

	hostFacts, err := facts.Gather()
	if err != nil {
		doctor.CheckErr(ctx, err)
	}

	result, err := swap.NewReconciler(config.Get().Swap).PlanOnly()
	if err != nil {
		doctor.CheckErr(ctx, err)
	}

	report := hostCheckReport{
		Facts: hostFacts,
		Swap:  result,
	}

	output, err := formatReport(report, flagOutputFormat)
	if err != nil {
		doctor.CheckErr(ctx, err)
	}
	cmd.Println(output)
}

func formatReport(v any, format string) (string, error) {
	var output []byte
	var err error
	switch strings.ToLower(format) {
	case "json":
		output, err = json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", errorx.IllegalFormat.Wrap(err, "Error marshaling report to JSON")
		}
	case "yaml":
		output, err = yaml.Marshal(v)
		if err != nil {
			return "", errorx.IllegalFormat.Wrap(err, "Error marshaling report to YAML")
		}
	default:
		return "", errorx.IllegalFormat.New("unsupported format: %s", format)
	}

	return string(output), nil
}
