// SPDX-License-Identifier: Apache-2.0

// Package facts gathers the host facts the provisioning steps depend on.
// Facts are collected once per run into an immutable value that is passed to
// whichever component needs it; nothing in this package is global.
package facts

import (
	"net"
	"os"
	"strings"

	"github.com/jaypipes/ghw"
	"github.com/joomcode/errorx"
	"github.com/zcalusic/sysinfo"
)

// Facts is the immutable snapshot of the target host taken at run start.
type Facts struct {
	OSVendor  string `yaml:"osVendor" json:"osVendor"`   // e.g. "ubuntu", "centos"
	OSVersion string `yaml:"osVersion" json:"osVersion"` // release version
	Kernel    string `yaml:"kernel" json:"kernel"`
	Arch      string `yaml:"arch" json:"arch"`
	Hostname  string `yaml:"hostname" json:"hostname"`
	// MachineIP is the first non-loopback IPv4 address.
	MachineIP string `yaml:"machineIP" json:"machineIP"`
	// SSHClientIP is the address the current SSH session originates from,
	// empty when not connected over SSH. Firewall rules may allowlist it so a
	// remote provisioning run cannot lock itself out.
	SSHClientIP   string `yaml:"sshClientIP,omitempty" json:"sshClientIP,omitempty"`
	TotalMemoryMB int    `yaml:"totalMemoryMB" json:"totalMemoryMB"`
}

// these are put in variables for easier testing/mocking
var (
	scanSysinfo = func() sysinfo.SysInfo {
		var si sysinfo.SysInfo
		si.GetSysInfo()
		return si
	}

	memoryInfo = func() (int64, error) {
		mem, err := ghw.Memory()
		if err != nil {
			return 0, err
		}
		return mem.TotalPhysicalBytes, nil
	}

	hostname = os.Hostname

	sshConnection = func() string { return os.Getenv("SSH_CONNECTION") }
)

// Gather collects the host facts. Memory detection failures are not fatal;
// the swap-size sanity check simply degrades when memory is unknown.
func Gather() (Facts, error) {
	si := scanSysinfo()

	name, err := hostname()
	if err != nil {
		return Facts{}, errorx.IllegalState.Wrap(err, "failed to read hostname")
	}

	f := Facts{
		OSVendor:    si.OS.Vendor,
		OSVersion:   si.OS.Version,
		Kernel:      si.Kernel.Release,
		Arch:        si.OS.Architecture,
		Hostname:    name,
		SSHClientIP: parseSSHClientIP(sshConnection()),
	}

	if ip, err := machineIP(); err == nil {
		f.MachineIP = ip
	}

	if total, err := memoryInfo(); err == nil && total > 0 {
		f.TotalMemoryMB = int(total / (1024 * 1024))
	}

	return f, nil
}

// parseSSHClientIP extracts the client address from the SSH_CONNECTION
// environment value ("client_ip client_port server_ip server_port").
func parseSSHClientIP(conn string) string {
	fields := strings.Fields(conn)
	if len(fields) < 1 {
		return ""
	}
	if net.ParseIP(fields[0]) == nil {
		return ""
	}
	return fields[0]
}

// machineIP returns the first non-loopback IPv4 address of an up interface.
func machineIP() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if ip = ip.To4(); ip == nil {
				continue // not an ipv4 address
			}
			return ip.String(), nil
		}
	}
	return "", errorx.IllegalState.New("no connected network interface found")
}
