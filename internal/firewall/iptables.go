// SPDX-License-Identifier: Apache-2.0

package firewall

import (
	"context"
	"strconv"

	"github.com/cndeploy/nodeprep/pkg/logx"
	"github.com/cndeploy/nodeprep/pkg/software"
)

// chainName is the dedicated chain holding all rules this tool manages.
// Keeping them out of INPUT proper lets Apply rebuild the rule list without
// touching anything another tool may have added.
const chainName = "NODEPREP"

// these are put in variables for easier testing/mocking
var installIptables = func() error {
	iptables, err := software.NewIptables()
	if err != nil {
		return err
	}
	persistent, err := software.NewIptablesPersistent()
	if err != nil {
		return err
	}
	return ensureInstalled(iptables, persistent)
}

type iptablesBackend struct{}

func (i *iptablesBackend) Name() string {
	return "iptables"
}

func (i *iptablesBackend) Available() bool {
	_, err := lookPath("iptables")
	return err == nil
}

func (i *iptablesBackend) EnsureInstalled(ctx context.Context) error {
	if err := installIptables(); err != nil {
		return ErrInstallFailure.Wrap(err, "failed to install iptables packages")
	}

	return nil
}

func (i *iptablesBackend) Apply(ctx context.Context, rules Ruleset) error {
	// The chain may already exist from a previous run; flushing it afterwards
	// makes the rebuild idempotent either way.
	_, _ = runCmd(ctx, "iptables", "-N", chainName)

	cmds := [][]string{
		{"-F", chainName},
		{"-A", chainName, "-i", "lo", "-j", "ACCEPT"},
		{"-A", chainName, "-m", "conntrack", "--ctstate", "ESTABLISHED,RELATED", "-j", "ACCEPT"},
	}

	for _, src := range rules.sshSources() {
		cmds = append(cmds, i.allowArgs(rules.SSHPort, "tcp", src))
	}
	if rules.P2PPort > 0 {
		cmds = append(cmds, i.allowArgs(rules.P2PPort, "tcp", ""))
	}
	for _, extra := range rules.Extra {
		cmds = append(cmds, i.allowArgs(extra.Port, extra.Proto, extra.Source))
	}

	for _, args := range cmds {
		if out, err := runCmd(ctx, "iptables", args...); err != nil {
			return applyError(i.Name(), err, out)
		}
	}

	// Jump into the managed chain from INPUT exactly once, then default-deny.
	if _, err := runCmd(ctx, "iptables", "-C", "INPUT", "-j", chainName); err != nil {
		if out, err := runCmd(ctx, "iptables", "-I", "INPUT", "1", "-j", chainName); err != nil {
			return applyError(i.Name(), err, out)
		}
	}
	if out, err := runCmd(ctx, "iptables", "-P", "INPUT", "DROP"); err != nil {
		return applyError(i.Name(), err, out)
	}

	return nil
}

func (i *iptablesBackend) allowArgs(port int, proto, source string) []string {
	args := []string{"-A", chainName, "-p", proto}
	if source != "" {
		args = append(args, "-s", source)
	}
	return append(args, "--dport", strconv.Itoa(port), "-j", "ACCEPT")
}

// Enable persists the rules through netfilter-persistent so they survive
// reboot. When the helper is missing the live rules still stand; persistence
// is logged and skipped rather than failing the run.
func (i *iptablesBackend) Enable(ctx context.Context) error {
	if _, err := lookPath("netfilter-persistent"); err != nil {
		logx.As().Warn().Msg("netfilter-persistent not found, iptables rules will not survive reboot")
		return nil
	}

	if out, err := runCmd(ctx, "netfilter-persistent", "save"); err != nil {
		return applyError(i.Name(), err, out)
	}

	return nil
}
