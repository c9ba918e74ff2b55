// SPDX-License-Identifier: Apache-2.0

package firewall

import (
	"context"
	"errors"
	"testing"

	"github.com/bluet/syspkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInstaller struct {
	installed bool
	events    *[]string
	name      string
}

func (f *fakeInstaller) IsInstalled() bool {
	return f.installed
}

func (f *fakeInstaller) Install() (*syspkg.PackageInfo, error) {
	*f.events = append(*f.events, "install "+f.name)
	return nil, nil
}

func mockRefreshIndex(t *testing.T, events *[]string, fail error) {
	t.Helper()
	orig := refreshPackageIndex
	refreshPackageIndex = func() error {
		*events = append(*events, "refresh")
		return fail
	}
	t.Cleanup(func() { refreshPackageIndex = orig })
}

func TestEnsureInstalled_RefreshesIndexOnceBeforeInstall(t *testing.T) {
	var events []string
	mockRefreshIndex(t, &events, nil)

	err := ensureInstalled(
		&fakeInstaller{name: "iptables", events: &events},
		&fakeInstaller{name: "iptables-persistent", events: &events},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"refresh", "install iptables", "install iptables-persistent"}, events)
}

func TestEnsureInstalled_SkipsRefreshWhenAllInstalled(t *testing.T) {
	var events []string
	mockRefreshIndex(t, &events, nil)

	err := ensureInstalled(&fakeInstaller{name: "ufw", installed: true, events: &events})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEnsureInstalled_RefreshFailureAborts(t *testing.T) {
	var events []string
	mockRefreshIndex(t, &events, errors.New("no network"))

	err := ensureInstalled(&fakeInstaller{name: "ufw", events: &events})
	require.Error(t, err)
	assert.Equal(t, []string{"refresh"}, events)
}

func mockFirewalldService(t *testing.T, active bool) *[]string {
	t.Helper()
	var calls []string

	origEnable := enableService
	origRestart := restartService
	origActive := isServiceActive
	enableService = func(ctx context.Context, name string) error {
		calls = append(calls, "enable "+name)
		return nil
	}
	restartService = func(ctx context.Context, name string) error {
		calls = append(calls, "restart "+name)
		return nil
	}
	isServiceActive = func(ctx context.Context, name string) (bool, error) {
		calls = append(calls, "is-active "+name)
		return active, nil
	}
	t.Cleanup(func() {
		enableService = origEnable
		restartService = origRestart
		isServiceActive = origActive
	})

	return &calls
}

func TestEnableFirewalldService_VerifiesUnitActive(t *testing.T) {
	calls := mockFirewalldService(t, true)

	require.NoError(t, enableFirewalldService(context.Background()))
	assert.Equal(t, []string{"enable firewalld", "restart firewalld", "is-active firewalld"}, *calls)
}

func TestEnableFirewalldService_FailsWhenUnitInactive(t *testing.T) {
	mockFirewalldService(t, false)

	err := enableFirewalldService(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not active")
}
