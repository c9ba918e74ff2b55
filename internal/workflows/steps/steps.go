// SPDX-License-Identifier: Apache-2.0

// Package steps holds the individual host-setup steps. Each step is a thin
// automa wrapper around one of the domain packages; steps whose section is
// disabled in the configuration report themselves as skipped.
package steps

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/automa-saga/automa"
	"github.com/joomcode/errorx"

	"github.com/cndeploy/nodeprep/internal/config"
	"github.com/cndeploy/nodeprep/internal/doctor"
	"github.com/cndeploy/nodeprep/internal/firewall"
	"github.com/cndeploy/nodeprep/internal/hostname"
	"github.com/cndeploy/nodeprep/internal/sshd"
	"github.com/cndeploy/nodeprep/internal/swap"
	"github.com/cndeploy/nodeprep/pkg/logx"
)

const (
	CheckPrivilegesStepId   = "validate-privileges"
	SetHostnameStepId       = "set-hostname"
	ManageHostsStepId       = "manage-hosts"
	HardenSSHStepId         = "harden-sshd"
	ConfigureFirewallStepId = "configure-firewall"
	ReconcileSwapStepId     = "reconcile-swap"
)

// these are put in variables for easier testing/mocking
var (
	currentUser      = user.Current
	setHostname      = hostname.Set
	syncHosts        = hostname.SyncHosts
	hardenSSH        = sshd.Harden
	detectBackend    = firewall.Detect
	configureBackend = firewall.Configure
	reconcileSwap    = func(ctx context.Context, desired swap.Config) (swap.Result, error) {
		return swap.NewReconciler(desired).Reconcile(ctx)
	}
)

// CheckPrivilegesStep validates that the current user has superuser privileges.
func CheckPrivilegesStep() automa.Builder {
	return automa.NewStepBuilder().WithId(CheckPrivilegesStepId).
		WithExecute(func(ctx context.Context, stp automa.Step) *automa.Report {
			current, err := currentUser()
			if err != nil {
				return automa.FailureReport(stp,
					automa.WithError(errorx.IllegalState.Wrap(err, "failed to get current user")))
			}

			if current.Uid != "0" {
				return automa.FailureReport(stp,
					automa.WithError(
						errorx.IllegalState.New("requires superuser privilege").
							WithProperty(doctor.ErrPropertyResolution,
								fmt.Sprintf("Run the command with 'sudo' or as root user: `sudo %s`",
									strings.Join(os.Args, " ")))))
			}

			logx.As().Info().Msg("Superuser privilege validated")
			return automa.SuccessReport(stp)
		})
}

// SetHostnameStep applies the configured hostname. Skipped when the
// configuration leaves the hostname empty.
func SetHostnameStep(name string) automa.Builder {
	return automa.NewStepBuilder().WithId(SetHostnameStepId).
		WithExecute(func(ctx context.Context, stp automa.Step) *automa.Report {
			if name == "" {
				return automa.SkippedReport(stp, automa.WithDetail("no hostname configured"))
			}

			if err := setHostname(name); err != nil {
				return automa.FailureReport(stp, automa.WithError(err))
			}

			logx.As().Info().Str("hostname", name).Msg("Hostname applied")
			return automa.SuccessReport(stp)
		})
}

// ManageHostsStep synchronizes the managed /etc/hosts block.
func ManageHostsStep(entries []hostname.HostEntry) automa.Builder {
	return automa.NewStepBuilder().WithId(ManageHostsStepId).
		WithExecute(func(ctx context.Context, stp automa.Step) *automa.Report {
			if len(entries) == 0 {
				return automa.SkippedReport(stp, automa.WithDetail("no hosts entries configured"))
			}

			if err := syncHosts(entries); err != nil {
				return automa.FailureReport(stp, automa.WithError(err))
			}

			logx.As().Info().Int("entries", len(entries)).Msg("Hosts file synchronized")
			return automa.SuccessReport(stp)
		})
}

// HardenSSHStep applies the sshd drop-in hardening.
func HardenSSHStep(cfg config.SSHConfig) automa.Builder {
	return automa.NewStepBuilder().WithId(HardenSSHStepId).
		WithExecute(func(ctx context.Context, stp automa.Step) *automa.Report {
			if !cfg.Enabled {
				return automa.SkippedReport(stp, automa.WithDetail("ssh hardening disabled"))
			}

			changed, err := hardenSSH(ctx, cfg.Harden)
			if err != nil {
				if errorx.IsOfType(err, sshd.ErrInvalidConfig) {
					err = errorx.Cast(err).WithProperty(doctor.ErrPropertyResolution,
						"The rendered sshd drop-in failed `sshd -t` validation and was rolled back. Review the ssh section of the configuration.")
				}
				return automa.FailureReport(stp, automa.WithError(err))
			}

			logx.As().Info().Bool("changed", changed).Msg("SSH daemon hardened")
			return automa.SuccessReport(stp)
		})
}

// ConfigureFirewallStep selects a backend and converges the firewall ruleset.
func ConfigureFirewallStep(cfg config.FirewallConfig) automa.Builder {
	return automa.NewStepBuilder().WithId(ConfigureFirewallStepId).
		WithExecute(func(ctx context.Context, stp automa.Step) *automa.Report {
			if !cfg.Enabled {
				return automa.SkippedReport(stp, automa.WithDetail("firewall management disabled"))
			}

			backend, err := pickBackend(ctx, cfg.Backend)
			if err != nil {
				return automa.FailureReport(stp, automa.WithError(err))
			}

			if err := configureBackend(ctx, backend, cfg.Rules); err != nil {
				return automa.FailureReport(stp, automa.WithError(err))
			}

			logx.As().Info().Str("backend", backend.Name()).Msg("Firewall configured")
			return automa.SuccessReport(stp,
				automa.WithMetadata(map[string]string{"backend": backend.Name()}))
		})
}

func pickBackend(ctx context.Context, forced string) (firewall.Backend, error) {
	if forced == "" {
		return detectBackend(ctx)
	}

	for _, b := range firewall.Backends() {
		if b.Name() == forced {
			return b, nil
		}
	}

	return nil, errorx.IllegalArgument.New("unknown firewall backend %q", forced)
}

// ReconcileSwapStep converges the host's swap file to the desired state.
func ReconcileSwapStep(desired swap.Config) automa.Builder {
	return automa.NewStepBuilder().WithId(ReconcileSwapStepId).
		WithExecute(func(ctx context.Context, stp automa.Step) *automa.Report {
			result, err := reconcileSwap(ctx, desired)
			if err != nil {
				return automa.FailureReport(stp, automa.WithError(err))
			}

			logx.As().Info().
				Int("planned", len(result.Plan)).
				Int("applied", result.Applied).
				Msg("Swap state reconciled")

			return automa.SuccessReport(stp,
				automa.WithMetadata(map[string]string{
					"planned": fmt.Sprintf("%d", len(result.Plan)),
					"applied": fmt.Sprintf("%d", result.Applied),
				}))
		})
}
