// SPDX-License-Identifier: Apache-2.0

// Package hostname manages the machine's hostname and its /etc/hosts file.
package hostname

import (
	"os"
	"strings"

	"github.com/joomcode/errorx"
	"golang.org/x/sys/unix"
)

// these are put in variables for easier testing/mocking
var (
	etcHostnamePath = "/etc/hostname"

	sysSethostname = unix.Sethostname
	osHostname     = os.Hostname
)

// Set applies the hostname to the running kernel and persists it to
// /etc/hostname. Setting the already current name is a no-op.
func Set(name string) error {
	current, err := osHostname()
	if err != nil {
		return errorx.IllegalState.Wrap(err, "failed to read current hostname")
	}

	if current != name {
		if err := sysSethostname([]byte(name)); err != nil {
			return errorx.IllegalState.Wrap(err, "failed to set kernel hostname to %s", name)
		}
	}

	persisted, err := os.ReadFile(etcHostnamePath)
	if err != nil && !os.IsNotExist(err) {
		return errorx.IllegalState.Wrap(err, "failed to read %s", etcHostnamePath)
	}
	if strings.TrimSpace(string(persisted)) == name {
		return nil
	}

	if err := os.WriteFile(etcHostnamePath, []byte(name+"\n"), 0o644); err != nil {
		return errorx.IllegalState.Wrap(err, "failed to write %s", etcHostnamePath)
	}
	return nil
}
