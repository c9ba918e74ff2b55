// SPDX-License-Identifier: Apache-2.0

// Package sshd hardens the host's OpenSSH daemon through a managed drop-in
// under /etc/ssh/sshd_config.d. The daemon is only restarted when the drop-in
// actually changed, and an invalid configuration is rolled back before it can
// take effect.
package sshd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strings"

	"github.com/joomcode/errorx"

	nos "github.com/cndeploy/nodeprep/pkg/os"
)

const (
	DropInDir  = "/etc/ssh/sshd_config.d"
	DropInFile = "90-nodeprep.conf"
)

// Config holds the SSH hardening parameters.
type Config struct {
	// Port the daemon should listen on. 0 keeps the distribution default.
	Port int `yaml:"port" json:"port"`
	// PermitRootLogin allows direct root logins when true.
	PermitRootLogin bool `yaml:"permitRootLogin" json:"permitRootLogin"`
	// PasswordAuthentication allows password logins when true.
	PasswordAuthentication bool `yaml:"passwordAuthentication" json:"passwordAuthentication"`
	// AllowUsers restricts logins to the listed users when non-empty.
	AllowUsers []string `yaml:"allowUsers" json:"allowUsers"`
	// MaxAuthTries caps authentication attempts per connection. 0 keeps the default.
	MaxAuthTries int `yaml:"maxAuthTries" json:"maxAuthTries"`
}

var (
	Errors            = errorx.NewNamespace("nodeprep.sshd")
	ErrInvalidConfig  = Errors.NewType("invalid_config")
	ErrRestartFailure = Errors.NewType("restart_failure")
	ErrDropInWrite    = Errors.NewType("drop_in_write")
)

// these are put in variables for easier testing/mocking
var (
	dropInDir = DropInDir

	// validateConfig runs "sshd -t" so a broken drop-in can never lock the
	// operator out on the next connection.
	validateConfig = func(ctx context.Context) error {
		out, err := exec.CommandContext(ctx, "sshd", "-t").CombinedOutput()
		if err != nil {
			return errorx.IllegalState.Wrap(err, "sshd -t rejected configuration: %s", string(out))
		}
		return nil
	}

	restartService = nos.RestartService
)

// Render produces the drop-in content for the given config.
func Render(cfg Config) string {
	var b strings.Builder
	b.WriteString("# Managed by nodeprep; manual edits will be overwritten.\n")

	if cfg.Port > 0 {
		fmt.Fprintf(&b, "Port %d\n", cfg.Port)
	}
	fmt.Fprintf(&b, "PermitRootLogin %s\n", yesNo(cfg.PermitRootLogin))
	fmt.Fprintf(&b, "PasswordAuthentication %s\n", yesNo(cfg.PasswordAuthentication))
	b.WriteString("KbdInteractiveAuthentication no\n")
	b.WriteString("PubkeyAuthentication yes\n")
	b.WriteString("X11Forwarding no\n")
	if cfg.MaxAuthTries > 0 {
		fmt.Fprintf(&b, "MaxAuthTries %d\n", cfg.MaxAuthTries)
	}
	if len(cfg.AllowUsers) > 0 {
		fmt.Fprintf(&b, "AllowUsers %s\n", strings.Join(cfg.AllowUsers, " "))
	}

	return b.String()
}

// Harden writes the drop-in, validates the resulting daemon configuration and
// restarts the service. It reports whether anything changed. On validation
// failure the previous drop-in content is restored.
func Harden(ctx context.Context, cfg Config) (bool, error) {
	dropIn := path.Join(dropInDir, DropInFile)
	desired := []byte(Render(cfg))

	previous, err := os.ReadFile(dropIn)
	exists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return false, ErrDropInWrite.Wrap(err, "failed to read %s", dropIn)
	}

	if exists && string(previous) == string(desired) {
		return false, nil
	}

	if err := os.MkdirAll(dropInDir, 0o755); err != nil {
		return false, ErrDropInWrite.Wrap(err, "failed to create %s", dropInDir)
	}
	if err := os.WriteFile(dropIn, desired, 0o644); err != nil {
		return false, ErrDropInWrite.Wrap(err, "failed to write %s", dropIn)
	}

	if err := validateConfig(ctx); err != nil {
		restoreErr := restoreDropIn(dropIn, previous, exists)
		if restoreErr != nil {
			return false, ErrInvalidConfig.Wrap(err, "invalid sshd configuration and rollback failed: %v", restoreErr)
		}
		return false, ErrInvalidConfig.Wrap(err, "invalid sshd configuration, drop-in rolled back")
	}

	if err := restartDaemon(ctx); err != nil {
		return true, err
	}

	return true, nil
}

// restartDaemon restarts the OpenSSH unit. Debian names it "ssh", Red Hat
// family names it "sshd"; try both.
func restartDaemon(ctx context.Context) error {
	err := restartService(ctx, "ssh")
	if err == nil {
		return nil
	}

	if err2 := restartService(ctx, "sshd"); err2 == nil {
		return nil
	}

	return ErrRestartFailure.Wrap(err, "failed to restart the OpenSSH daemon")
}

func restoreDropIn(dropIn string, previous []byte, existed bool) error {
	if !existed {
		return os.Remove(dropIn)
	}
	return os.WriteFile(dropIn, previous, 0o644)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
