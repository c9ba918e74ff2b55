// SPDX-License-Identifier: Apache-2.0

package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zcalusic/sysinfo"
)

func TestGather(t *testing.T) {
	origScan, origMem, origHost, origSSH := scanSysinfo, memoryInfo, hostname, sshConnection
	t.Cleanup(func() {
		scanSysinfo, memoryInfo, hostname, sshConnection = origScan, origMem, origHost, origSSH
	})

	scanSysinfo = func() sysinfo.SysInfo {
		var si sysinfo.SysInfo
		si.OS.Vendor = "ubuntu"
		si.OS.Version = "24.04"
		si.OS.Architecture = "amd64"
		si.Kernel.Release = "6.8.0-45-generic"
		return si
	}
	memoryInfo = func() (int64, error) { return 8 * 1024 * 1024 * 1024, nil }
	hostname = func() (string, error) { return "relay1", nil }
	sshConnection = func() string { return "203.0.113.7 54321 10.0.0.5 22" }

	f, err := Gather()
	require.NoError(t, err)

	assert.Equal(t, "ubuntu", f.OSVendor)
	assert.Equal(t, "24.04", f.OSVersion)
	assert.Equal(t, "amd64", f.Arch)
	assert.Equal(t, "relay1", f.Hostname)
	assert.Equal(t, "203.0.113.7", f.SSHClientIP)
	assert.Equal(t, 8192, f.TotalMemoryMB)
}

func TestGather_MemoryFailureIsNotFatal(t *testing.T) {
	origScan, origMem, origHost, origSSH := scanSysinfo, memoryInfo, hostname, sshConnection
	t.Cleanup(func() {
		scanSysinfo, memoryInfo, hostname, sshConnection = origScan, origMem, origHost, origSSH
	})

	scanSysinfo = func() sysinfo.SysInfo { return sysinfo.SysInfo{} }
	memoryInfo = func() (int64, error) { return 0, assert.AnError }
	hostname = func() (string, error) { return "relay1", nil }
	sshConnection = func() string { return "" }

	f, err := Gather()
	require.NoError(t, err)
	assert.Zero(t, f.TotalMemoryMB)
	assert.Empty(t, f.SSHClientIP)
}

func TestParseSSHClientIP(t *testing.T) {
	assert.Equal(t, "203.0.113.7", parseSSHClientIP("203.0.113.7 54321 10.0.0.5 22"))
	assert.Equal(t, "2001:db8::1", parseSSHClientIP("2001:db8::1 54321 2001:db8::2 22"))
	assert.Empty(t, parseSSHClientIP(""))
	assert.Empty(t, parseSSHClientIP("not-an-ip 1 2 3"))
}
