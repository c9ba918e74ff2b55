// SPDX-License-Identifier: Apache-2.0

package software

import "github.com/bluet/syspkg/manager"

// Firewall backend packages. The underlying syspkg library automatically
// detects the correct package manager for the host distribution.

func NewUfw() (*PackageInstaller, error) {
	return NewPackageInstaller(WithPackageName("ufw"), WithPackageOptions(manager.Options{AssumeYes: true}))
}

func NewFirewalld() (*PackageInstaller, error) {
	return NewPackageInstaller(WithPackageName("firewalld"), WithPackageOptions(manager.Options{AssumeYes: true}))
}

func NewIptables() (*PackageInstaller, error) {
	return NewPackageInstaller(WithPackageName("iptables"), WithPackageOptions(manager.Options{AssumeYes: true}))
}

// NewIptablesPersistent provides the iptables-persistent package so rules
// written by the iptables backend survive reboot on Debian-based systems.
func NewIptablesPersistent() (*PackageInstaller, error) {
	return NewPackageInstaller(WithPackageName("iptables-persistent"), WithPackageOptions(manager.Options{AssumeYes: true}))
}
