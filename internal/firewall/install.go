// SPDX-License-Identifier: Apache-2.0

package firewall

import (
	"github.com/bluet/syspkg"

	"github.com/cndeploy/nodeprep/pkg/software"
)

// packageInstaller is the slice of software.PackageInstaller the install
// path needs, declared locally so installs can be exercised without a real
// package manager.
type packageInstaller interface {
	IsInstalled() bool
	Install() (*syspkg.PackageInfo, error)
}

// these are put in variables for easier testing/mocking
var refreshPackageIndex = software.RefreshPackageIndex

// ensureInstalled installs every missing package, refreshing the package
// index once before the first install. Fully installed hosts never touch
// the index.
func ensureInstalled(installers ...packageInstaller) error {
	refreshed := false
	for _, installer := range installers {
		if installer.IsInstalled() {
			continue
		}

		if !refreshed {
			if err := refreshPackageIndex(); err != nil {
				return err
			}
			refreshed = true
		}

		if _, err := installer.Install(); err != nil {
			return err
		}
	}

	return nil
}
