// SPDX-License-Identifier: Apache-2.0

package software

import "github.com/joomcode/errorx"

var (
	ErrorsNamespace   = errorx.NewNamespace("software")
	InstallationError = ErrorsNamespace.NewType("installation_error")

	packageNameProperty = errorx.RegisterPrintableProperty("package_name")
)

// NewInstallationError wraps a package manager failure with the package name
// attached for diagnosis.
func NewInstallationError(err error, pkgName string) error {
	if err == nil {
		return InstallationError.New("package operation failed: %s", pkgName).
			WithProperty(packageNameProperty, pkgName)
	}
	return InstallationError.Wrap(err, "package operation failed: %s", pkgName).
		WithProperty(packageNameProperty, pkgName)
}
