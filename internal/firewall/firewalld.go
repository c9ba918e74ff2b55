// SPDX-License-Identifier: Apache-2.0

package firewall

import (
	"context"
	"fmt"

	"github.com/joomcode/errorx"

	nos "github.com/cndeploy/nodeprep/pkg/os"
	"github.com/cndeploy/nodeprep/pkg/software"
)

// these are put in variables for easier testing/mocking
var (
	installFirewalld = func() error {
		installer, err := software.NewFirewalld()
		if err != nil {
			return err
		}
		return ensureInstalled(installer)
	}

	enableService   = nos.EnableService
	restartService  = nos.RestartService
	isServiceActive = nos.IsServiceActive

	enableFirewalldService = func(ctx context.Context) error {
		if err := enableService(ctx, "firewalld"); err != nil {
			return err
		}
		if err := restartService(ctx, "firewalld"); err != nil {
			return err
		}

		active, err := isServiceActive(ctx, "firewalld")
		if err != nil {
			return err
		}
		if !active {
			return errorx.IllegalState.New("firewalld unit is not active after restart")
		}
		return nil
	}
)

type firewalldBackend struct{}

func (f *firewalldBackend) Name() string {
	return "firewalld"
}

func (f *firewalldBackend) Available() bool {
	_, err := lookPath("firewall-cmd")
	return err == nil
}

func (f *firewalldBackend) EnsureInstalled(ctx context.Context) error {
	if f.Available() {
		return nil
	}

	if err := installFirewalld(); err != nil {
		return ErrInstallFailure.Wrap(err, "failed to install firewalld")
	}

	return nil
}

// Apply writes permanent rules and reloads. Firewalld's default zone already
// rejects unsolicited traffic, so only the openings need to be declared.
func (f *firewalldBackend) Apply(ctx context.Context, rules Ruleset) error {
	var cmds [][]string

	for _, src := range rules.sshSources() {
		cmds = append(cmds, f.allowArgs(rules.SSHPort, "tcp", src))
	}
	if rules.P2PPort > 0 {
		cmds = append(cmds, f.allowArgs(rules.P2PPort, "tcp", ""))
	}
	for _, extra := range rules.Extra {
		cmds = append(cmds, f.allowArgs(extra.Port, extra.Proto, extra.Source))
	}
	cmds = append(cmds, []string{"--reload"})

	for _, args := range cmds {
		if out, err := runCmd(ctx, "firewall-cmd", args...); err != nil {
			return applyError(f.Name(), err, out)
		}
	}

	return nil
}

func (f *firewalldBackend) allowArgs(port int, proto, source string) []string {
	if source == "" {
		return []string{"--permanent", fmt.Sprintf("--add-port=%d/%s", port, proto)}
	}

	rich := fmt.Sprintf(
		`rule family="ipv4" source address="%s" port port="%d" protocol="%s" accept`,
		source, port, proto,
	)
	return []string{"--permanent", "--add-rich-rule=" + rich}
}

func (f *firewalldBackend) Enable(ctx context.Context) error {
	if err := enableFirewalldService(ctx); err != nil {
		return ErrApplyFailure.Wrap(err, "failed to enable firewalld service").
			WithProperty(BackendProperty, f.Name())
	}

	return nil
}
