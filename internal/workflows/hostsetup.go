// SPDX-License-Identifier: Apache-2.0

// Package workflows assembles the host provisioning steps into automa
// workflows.
package workflows

import (
	"github.com/automa-saga/automa"

	"github.com/cndeploy/nodeprep/internal/config"
	"github.com/cndeploy/nodeprep/internal/workflows/steps"
)

// NewHostSetupWorkflow builds the full provisioning workflow for a host.
// Steps run sequentially and the workflow stops on the first failure; every
// step is idempotent so a failed run can simply be repeated.
func NewHostSetupWorkflow(cfg config.Config) automa.Builder {
	return automa.NewWorkflowBuilder().
		WithId("host-setup").
		Steps(
			steps.CheckPrivilegesStep(),
			steps.SetHostnameStep(cfg.Hostname),
			steps.ManageHostsStep(cfg.Hosts),
			steps.HardenSSHStep(cfg.SSH),
			steps.ConfigureFirewallStep(cfg.Firewall),
			steps.ReconcileSwapStep(cfg.Swap),
		)
}
