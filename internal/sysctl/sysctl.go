// SPDX-License-Identifier: Apache-2.0

// Package sysctl applies kernel tunables both to the running kernel and,
// through a drop-in under /etc/sysctl.d, persistently across reboots.
package sysctl

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/joomcode/errorx"
	sysctllib "github.com/lorenzosaino/go-sysctl"
)

const (
	EtcSysctlDir = "/etc/sysctl.d"

	// DropInFile collects every tunable this tool manages.
	DropInFile = "90-nodeprep.conf"
)

// use vars to allow mocking in tests
var (
	sysctlConfigDir = EtcSysctlDir

	sysctlGet = sysctllib.Get
	sysctlSet = sysctllib.Set
)

// Get returns the current value of a sysctl key.
func Get(key string) (string, error) {
	v, err := sysctlGet(key)
	if err != nil {
		return "", errorx.IllegalState.Wrap(err, "failed to read sysctl %s", key)
	}
	return v, nil
}

// Apply sets a sysctl on the running kernel only.
func Apply(key, value string) error {
	if err := sysctlSet(key, value); err != nil {
		return errorx.IllegalState.Wrap(err, "failed to set sysctl %s = %s", key, value)
	}
	return nil
}

// ApplyAndPersist sets a sysctl on the running kernel and upserts it into the
// managed drop-in so it survives reboot. Applying an already current value is
// a harmless no-op.
func ApplyAndPersist(key, value string) error {
	if err := Apply(key, value); err != nil {
		return err
	}
	return persist(key, value)
}

// persist upserts key=value into the managed drop-in file, keeping other
// managed keys and writing them in sorted order for stable diffs.
func persist(key, value string) error {
	dropIn := path.Join(sysctlConfigDir, DropInFile)

	settings, err := readDropIn(dropIn)
	if err != nil {
		return err
	}

	if settings[key] == value {
		return nil
	}
	settings[key] = value

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s = %s\n", k, settings[k])
	}

	if err := os.MkdirAll(sysctlConfigDir, 0o755); err != nil {
		return errorx.IllegalState.Wrap(err, "failed to create %s", sysctlConfigDir)
	}
	if err := os.WriteFile(dropIn, []byte(b.String()), 0o644); err != nil {
		return errorx.IllegalState.Wrap(err, "failed to write %s", dropIn)
	}
	return nil
}

func readDropIn(dropIn string) (map[string]string, error) {
	settings := map[string]string{}

	data, err := os.ReadFile(dropIn)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, errorx.IllegalState.Wrap(err, "failed to read %s", dropIn)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		settings[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return settings, nil
}
