// SPDX-License-Identifier: Apache-2.0

package software

import (
	"sync"

	"github.com/bluet/syspkg"
	"github.com/bluet/syspkg/manager"
)

var (
	pkgManager syspkg.PackageManager
	once       sync.Once
)

// GetPackageManager returns the detected system package manager. Detection
// runs once per process; syspkg picks the first available backend (apt, dnf,
// etc.) for the host distribution.
func GetPackageManager() (syspkg.PackageManager, error) {
	var initErr error
	once.Do(func() {
		sysPackageManager, err := syspkg.New(syspkg.IncludeOptions{AllAvailable: true})
		if err != nil {
			initErr = NewInstallationError(err, "package-manager")
			return
		}

		pm, err := sysPackageManager.GetPackageManager("") // empty string returns first available
		if err != nil {
			initErr = NewInstallationError(err, "package-manager")
			return
		}

		pkgManager = pm
	})

	return pkgManager, initErr
}

// RefreshPackageIndex updates the package index, the equivalent of
// "apt-get update" on Debian-based systems.
func RefreshPackageIndex() error {
	pm, err := GetPackageManager()
	if err != nil {
		return err
	}

	return pm.Refresh(&manager.Options{DryRun: false, Interactive: false, AssumeYes: true})
}

type option func(*PackageInstaller)

// PackageInstaller manages a single system package through the host's
// native package manager.
type PackageInstaller struct {
	pkgName    string
	pkgOptions manager.Options
	pkgManager syspkg.PackageManager
}

func (p *PackageInstaller) Name() string {
	return p.pkgName
}

func (p *PackageInstaller) Install() (*syspkg.PackageInfo, error) {
	_, err := p.pkgManager.Install([]string{p.pkgName}, &p.pkgOptions)
	if err != nil {
		return nil, NewInstallationError(err, p.pkgName)
	}

	return p.Info()
}

func (p *PackageInstaller) IsInstalled() bool {
	info, err := p.Info()
	if err != nil {
		return false
	}

	return info.Status == manager.PackageStatusInstalled
}

func (p *PackageInstaller) Info() (*syspkg.PackageInfo, error) {
	// Find is more reliable than ListInstalled here: the apt backend's
	// ListInstalled does not distinguish a fully installed package from
	// leftover config files.
	resp, err := p.pkgManager.Find([]string{p.pkgName}, &p.pkgOptions)
	if err != nil {
		return nil, NewInstallationError(err, p.pkgName)
	}

	for _, pkg := range resp {
		if pkg.Name == p.pkgName {
			return &pkg, nil
		}
	}

	return nil, NewInstallationError(nil, p.pkgName)
}

func WithPackageName(name string) option {
	return func(pb *PackageInstaller) {
		pb.pkgName = name
	}
}

func WithPackageOptions(opts manager.Options) option {
	return func(pb *PackageInstaller) {
		pb.pkgOptions = opts
	}
}

func WithPackageManager(pm syspkg.PackageManager) option {
	return func(pb *PackageInstaller) {
		pb.pkgManager = pm
	}
}

func NewPackageInstaller(opts ...option) (*PackageInstaller, error) {
	p := &PackageInstaller{}

	for _, opt := range opts {
		opt(p)
	}

	if p.pkgManager == nil {
		pm, err := GetPackageManager()
		if err != nil {
			return nil, err
		}
		p.pkgManager = pm
	}

	return p, nil
}
