// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates the nodeprep configuration. Every input
// is checked up front; a config that fails validation never reaches a
// workflow step.
package config

import (
	"strings"

	"github.com/joomcode/errorx"
	"github.com/spf13/viper"

	"github.com/cndeploy/nodeprep/internal/firewall"
	"github.com/cndeploy/nodeprep/internal/hostname"
	"github.com/cndeploy/nodeprep/internal/sshd"
	"github.com/cndeploy/nodeprep/internal/swap"
	"github.com/cndeploy/nodeprep/pkg/logx"
	"github.com/cndeploy/nodeprep/pkg/sanity"
)

const envPrefix = "NODEPREP"

var (
	Errors        = errorx.NewNamespace("nodeprep.config")
	ErrLoadFailed = Errors.NewType("load_failed")
	ErrInvalid    = Errors.NewType("invalid").ApplyModifiers(errorx.TypeModifierOmitStackTrace)
)

var backendNames = []string{"ufw", "firewalld", "iptables"}

// FirewallConfig selects and parameterizes the firewall backend.
type FirewallConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	// Backend forces a specific backend instead of probing. Empty means
	// first-available-wins detection.
	Backend string           `yaml:"backend,omitempty" json:"backend,omitempty" mapstructure:"backend"`
	Rules   firewall.Ruleset `yaml:"rules" json:"rules" mapstructure:"rules"`
}

// SSHConfig wraps the sshd hardening parameters with an enable switch.
type SSHConfig struct {
	Enabled bool        `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Harden  sshd.Config `yaml:"harden" json:"harden" mapstructure:"harden"`
}

// Config is the complete declarative input for a nodeprep run.
type Config struct {
	Log      logx.LoggingConfig   `yaml:"log" json:"log" mapstructure:"log"`
	Hostname string               `yaml:"hostname,omitempty" json:"hostname,omitempty" mapstructure:"hostname"`
	Hosts    []hostname.HostEntry `yaml:"hosts,omitempty" json:"hosts,omitempty" mapstructure:"hosts"`
	SSH      SSHConfig            `yaml:"ssh" json:"ssh" mapstructure:"ssh"`
	Firewall FirewallConfig       `yaml:"firewall" json:"firewall" mapstructure:"firewall"`
	Swap     swap.Config          `yaml:"swap" json:"swap" mapstructure:"swap"`
}

// Default returns the built-in configuration: swap management on with
// conservative kernel paging, everything touching remote access off until
// explicitly enabled.
func Default() Config {
	return Config{
		Log: logx.LoggingConfig{
			Level:          "info",
			ConsoleLogging: true,
		},
		SSH: SSHConfig{
			Harden: sshd.Config{Port: 22, MaxAuthTries: 4},
		},
		Firewall: FirewallConfig{
			Rules: firewall.Ruleset{SSHPort: 22},
		},
		Swap: swap.Config{
			Enabled:    true,
			Path:       "/swapfile",
			SizeMB:     2048,
			Swappiness: 10,
		},
	}
}

// Load reads the configuration file at path, layered under NODEPREP_*
// environment variables, and validates the result. An empty path loads
// defaults and environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()

	// Defaults are registered with viper as well so environment overrides
	// apply even for keys absent from the config file.
	v.SetDefault("ssh.harden.port", cfg.SSH.Harden.Port)
	v.SetDefault("ssh.harden.maxauthtries", cfg.SSH.Harden.MaxAuthTries)
	v.SetDefault("firewall.rules.sshport", cfg.Firewall.Rules.SSHPort)
	v.SetDefault("swap.enabled", cfg.Swap.Enabled)
	v.SetDefault("swap.path", cfg.Swap.Path)
	v.SetDefault("swap.sizemb", cfg.Swap.SizeMB)
	v.SetDefault("swap.swappiness", cfg.Swap.Swappiness)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, ErrLoadFailed.Wrap(err, "failed to read config file %s", path)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, ErrLoadFailed.Wrap(err, "failed to parse configuration")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks every field that ends up in a shell command, a kernel
// tunable or a system file.
func (c Config) Validate() error {
	if c.Hostname != "" {
		if err := sanity.ValidateHostname(c.Hostname); err != nil {
			return ErrInvalid.Wrap(err, "hostname")
		}
	}

	for _, h := range c.Hosts {
		if err := sanity.ValidateIP(h.IP); err != nil {
			return ErrInvalid.Wrap(err, "hosts entry %q", h.IP)
		}
		if len(h.Names) == 0 {
			return ErrInvalid.New("hosts entry %q has no names", h.IP)
		}
		for _, name := range h.Names {
			if err := sanity.ValidateHostname(name); err != nil {
				return ErrInvalid.Wrap(err, "hosts entry %q", h.IP)
			}
		}
	}

	if err := c.validateSSH(); err != nil {
		return err
	}
	if err := c.validateFirewall(); err != nil {
		return err
	}

	return c.validateSwap()
}

func (c Config) validateSSH() error {
	if !c.SSH.Enabled {
		return nil
	}

	if c.SSH.Harden.Port != 0 {
		if err := sanity.ValidatePort(c.SSH.Harden.Port); err != nil {
			return ErrInvalid.Wrap(err, "ssh port")
		}
	}
	if c.SSH.Harden.MaxAuthTries < 0 {
		return ErrInvalid.New("ssh maxAuthTries must not be negative")
	}
	for _, user := range c.SSH.Harden.AllowUsers {
		if err := sanity.ValidateUsername(user); err != nil {
			return ErrInvalid.Wrap(err, "ssh allowUsers")
		}
	}

	return nil
}

func (c Config) validateFirewall() error {
	if !c.Firewall.Enabled {
		return nil
	}

	if c.Firewall.Backend != "" && !sanity.Contains(c.Firewall.Backend, backendNames) {
		return ErrInvalid.New("unknown firewall backend %q, want one of %s",
			c.Firewall.Backend, strings.Join(backendNames, ", "))
	}

	rules := c.Firewall.Rules
	if err := sanity.ValidatePort(rules.SSHPort); err != nil {
		return ErrInvalid.Wrap(err, "firewall ssh port")
	}
	if rules.P2PPort != 0 {
		if err := sanity.ValidatePort(rules.P2PPort); err != nil {
			return ErrInvalid.Wrap(err, "firewall p2p port")
		}
	}
	for _, cidr := range rules.AllowedCIDRs {
		if err := sanity.ValidateCIDR(cidr); err != nil {
			return ErrInvalid.Wrap(err, "firewall allowed networks")
		}
	}
	for _, rule := range rules.Extra {
		if err := sanity.ValidatePort(rule.Port); err != nil {
			return ErrInvalid.Wrap(err, "firewall extra rule")
		}
		if rule.Proto != "tcp" && rule.Proto != "udp" {
			return ErrInvalid.New("firewall extra rule proto must be tcp or udp, got %q", rule.Proto)
		}
		if rule.Source != "" {
			if err := sanity.ValidateCIDR(rule.Source); err != nil {
				return ErrInvalid.Wrap(err, "firewall extra rule source")
			}
		}
	}

	return nil
}

func (c Config) validateSwap() error {
	if !c.Swap.Enabled {
		// Disabling swap still names the file to remove.
		if c.Swap.Path == "" {
			return nil
		}
		_, err := sanity.SanitizePath(c.Swap.Path)
		if err != nil {
			return ErrInvalid.Wrap(err, "swap path")
		}
		return nil
	}

	if _, err := sanity.SanitizePath(c.Swap.Path); err != nil {
		return ErrInvalid.Wrap(err, "swap path")
	}
	if c.Swap.SizeMB < 1 {
		return ErrInvalid.New("swap sizeMB must be at least 1, got %d", c.Swap.SizeMB)
	}
	if c.Swap.Swappiness < 0 || c.Swap.Swappiness > 100 {
		return ErrInvalid.New("swappiness must be within 0..100, got %d", c.Swap.Swappiness)
	}

	return nil
}
