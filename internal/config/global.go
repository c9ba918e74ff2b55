// SPDX-License-Identifier: Apache-2.0

package config

import "sync"

var (
	mu      sync.RWMutex
	current = Default()
)

// Initialize loads the configuration from the given file path (empty means
// defaults plus environment) and installs it as the process-wide config.
func Initialize(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}

	mu.Lock()
	current = cfg
	mu.Unlock()

	return nil
}

// Get returns the active configuration.
func Get() Config {
	mu.RLock()
	defer mu.RUnlock()

	return current
}
