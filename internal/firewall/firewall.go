// SPDX-License-Identifier: Apache-2.0

// Package firewall configures the host firewall through one of three
// backends: ufw, firewalld or raw iptables. The backend is selected once by
// probing for its binary; selection order is fixed and the first available
// backend wins.
package firewall

import (
	"context"
	"os/exec"

	"github.com/joomcode/errorx"

	"github.com/cndeploy/nodeprep/pkg/logx"
)

var (
	Errors            = errorx.NewNamespace("nodeprep.firewall")
	ErrNoBackend      = Errors.NewType("no_backend")
	ErrInstallFailure = Errors.NewType("install_failure")
	ErrApplyFailure   = Errors.NewType("apply_failure")

	// BackendProperty carries the backend name on apply failures.
	BackendProperty = errorx.RegisterPrintableProperty("backend")
)

// Rule is a single additional allow rule beyond the standard SSH and P2P
// openings.
type Rule struct {
	Port   int    `yaml:"port" json:"port"`
	Proto  string `yaml:"proto" json:"proto"`
	Source string `yaml:"source,omitempty" json:"source,omitempty"`
}

// Ruleset describes the desired firewall posture: default-deny incoming with
// explicit openings for SSH and the node's P2P port.
type Ruleset struct {
	// SSHPort must stay reachable; locking the operator out is the one
	// mistake this package must never make.
	SSHPort int `yaml:"sshPort" json:"sshPort"`
	// AllowedCIDRs restricts SSH access to the listed networks when non-empty.
	AllowedCIDRs []string `yaml:"allowedCidrs" json:"allowedCidrs"`
	// P2PPort is the node's peer-to-peer listening port.
	P2PPort int `yaml:"p2pPort" json:"p2pPort"`
	// Extra rules are applied verbatim after the standard ones.
	Extra []Rule `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// sshSources returns the networks SSH should be reachable from, or a single
// empty string meaning "anywhere".
func (r Ruleset) sshSources() []string {
	if len(r.AllowedCIDRs) == 0 {
		return []string{""}
	}
	return r.AllowedCIDRs
}

// Backend is a firewall implementation on a specific tool.
type Backend interface {
	Name() string
	// Available reports whether the backend's binary is present on the host.
	Available() bool
	// EnsureInstalled installs the backend's packages when missing.
	EnsureInstalled(ctx context.Context) error
	// Apply converges the firewall to the given ruleset. Implementations own
	// only their managed surface and must be safe to re-run.
	Apply(ctx context.Context, rules Ruleset) error
	// Enable makes the firewall active now and across reboots.
	Enable(ctx context.Context) error
}

// these are put in variables for easier testing/mocking
var (
	lookPath = exec.LookPath

	runCmd = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return exec.CommandContext(ctx, name, args...).CombinedOutput()
	}
)

// Backends returns all implementations in selection order.
func Backends() []Backend {
	return []Backend{&ufwBackend{}, &firewalldBackend{}, &iptablesBackend{}}
}

// Detect picks the firewall backend for this host: the first available one in
// the fixed order ufw, firewalld, iptables. When none is present the first
// backend is installed and returned, so Debian-family hosts converge on ufw.
func Detect(ctx context.Context) (Backend, error) {
	backends := Backends()

	for _, b := range backends {
		if b.Available() {
			logx.As().Debug().Str("backend", b.Name()).Msg("firewall backend detected")
			return b, nil
		}
	}

	preferred := backends[0]
	logx.As().Info().Str("backend", preferred.Name()).Msg("no firewall backend found, installing")
	if err := preferred.EnsureInstalled(ctx); err != nil {
		return nil, ErrNoBackend.Wrap(err, "no firewall backend available and installation failed")
	}

	return preferred, nil
}

// Configure converges the host firewall: install if needed, apply the
// ruleset, then enable the firewall.
func Configure(ctx context.Context, b Backend, rules Ruleset) error {
	if err := b.EnsureInstalled(ctx); err != nil {
		return err
	}
	if err := b.Apply(ctx, rules); err != nil {
		return err
	}
	return b.Enable(ctx)
}

func applyError(backend string, err error, out []byte) error {
	return ErrApplyFailure.Wrap(err, "firewall command failed: %s", string(out)).
		WithProperty(BackendProperty, backend)
}
