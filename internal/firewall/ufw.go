// SPDX-License-Identifier: Apache-2.0

package firewall

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cndeploy/nodeprep/pkg/software"
)

// these are put in variables for easier testing/mocking
var installUfw = func() error {
	installer, err := software.NewUfw()
	if err != nil {
		return err
	}
	return ensureInstalled(installer)
}

type ufwBackend struct{}

func (u *ufwBackend) Name() string {
	return "ufw"
}

func (u *ufwBackend) Available() bool {
	_, err := lookPath("ufw")
	return err == nil
}

func (u *ufwBackend) EnsureInstalled(ctx context.Context) error {
	if u.Available() {
		return nil
	}

	if err := installUfw(); err != nil {
		return ErrInstallFailure.Wrap(err, "failed to install ufw")
	}

	return nil
}

func (u *ufwBackend) Apply(ctx context.Context, rules Ruleset) error {
	cmds := [][]string{
		{"default", "deny", "incoming"},
		{"default", "allow", "outgoing"},
	}

	for _, src := range rules.sshSources() {
		cmds = append(cmds, u.allowArgs(rules.SSHPort, "tcp", src))
	}
	if rules.P2PPort > 0 {
		cmds = append(cmds, u.allowArgs(rules.P2PPort, "tcp", ""))
	}
	for _, extra := range rules.Extra {
		cmds = append(cmds, u.allowArgs(extra.Port, extra.Proto, extra.Source))
	}

	for _, args := range cmds {
		if out, err := runCmd(ctx, "ufw", args...); err != nil {
			return applyError(u.Name(), err, out)
		}
	}

	return nil
}

// allowArgs builds the argument form ufw needs: the simple "allow port/proto"
// form when the rule is open to everyone, the verbose from/to form when it is
// source-restricted.
func (u *ufwBackend) allowArgs(port int, proto, source string) []string {
	if source == "" {
		return []string{"allow", fmt.Sprintf("%d/%s", port, proto)}
	}

	return []string{
		"allow", "proto", proto,
		"from", source,
		"to", "any", "port", strconv.Itoa(port),
	}
}

func (u *ufwBackend) Enable(ctx context.Context) error {
	// --force skips the "may disrupt existing ssh connections" prompt.
	if out, err := runCmd(ctx, "ufw", "--force", "enable"); err != nil {
		return applyError(u.Name(), err, out)
	}

	return nil
}
