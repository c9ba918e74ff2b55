// SPDX-License-Identifier: Apache-2.0

// Package swap reconciles a host's swap file configuration. Every run
// observes the host fresh, computes the ordered set of corrective actions as
// a plan, and applies the plan fail-fast. Observed state is never carried
// across runs; re-invocation after a partial failure converges the host.
package swap

import "fmt"

// Config is the desired swap configuration.
type Config struct {
	// Enabled controls whether a swap file should exist and be active.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Path is the absolute filesystem path of the swap file.
	Path string `yaml:"path" json:"path"`
	// SizeMB is the target size in megabytes. Must be >= 1 when Enabled.
	SizeMB int `yaml:"sizeMB" json:"sizeMB"`
	// Swappiness is the vm.swappiness kernel tunable, applied only when Enabled.
	Swappiness int `yaml:"swappiness" json:"swappiness"`
}

// State is the observed swap state of the host for a single path.
// It is fetched fresh at reconciliation time and never cached.
type State struct {
	FileExists bool `yaml:"fileExists" json:"fileExists"`
	// FileSizeMB is valid only when FileExists.
	FileSizeMB int `yaml:"fileSizeMB" json:"fileSizeMB"`
	// Active reports whether the kernel currently has the path swapped on.
	Active bool `yaml:"active" json:"active"`
	// Formatted reports whether the file carries a swap-space signature.
	Formatted bool `yaml:"formatted" json:"formatted"`
	// FstabEntry reports whether an fstab swap entry exists for the path.
	FstabEntry bool `yaml:"fstabEntry" json:"fstabEntry"`
}

// ActionKind identifies one corrective action in a plan.
type ActionKind string

const (
	Deactivate         ActionKind = "deactivate"
	DeleteFile         ActionKind = "delete-file"
	RemoveFstabEntry   ActionKind = "remove-fstab-entry"
	CreateOrResizeFile ActionKind = "create-or-resize-file"
	Chmod              ActionKind = "chmod"
	Format             ActionKind = "format"
	AddFstabEntry      ActionKind = "add-fstab-entry"
	Activate           ActionKind = "activate"
	SetSwappiness      ActionKind = "set-swappiness"
)

// Action is one step of a reconciliation plan.
type Action struct {
	Kind ActionKind `yaml:"kind" json:"kind"`
	// Path the action operates on. Empty for host-wide actions (Activate,
	// SetSwappiness).
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// SizeMB applies to CreateOrResizeFile.
	SizeMB int `yaml:"sizeMB,omitempty" json:"sizeMB,omitempty"`
	// Swappiness applies to SetSwappiness.
	Swappiness int `yaml:"swappiness,omitempty" json:"swappiness,omitempty"`
}

func (a Action) String() string {
	switch a.Kind {
	case CreateOrResizeFile:
		return fmt.Sprintf("%s(%s, %dMB)", a.Kind, a.Path, a.SizeMB)
	case SetSwappiness:
		return fmt.Sprintf("%s(%d)", a.Kind, a.Swappiness)
	case Activate:
		return string(a.Kind)
	default:
		return fmt.Sprintf("%s(%s)", a.Kind, a.Path)
	}
}

// Plan is the ordered corrective action sequence for one reconciliation run.
type Plan []Action

// Kinds returns the action kinds in plan order.
func (p Plan) Kinds() []ActionKind {
	kinds := make([]ActionKind, len(p))
	for i, a := range p {
		kinds[i] = a.Kind
	}
	return kinds
}

// Contains reports whether the plan includes an action of the given kind.
func (p Plan) Contains(kind ActionKind) bool {
	for _, a := range p {
		if a.Kind == kind {
			return true
		}
	}
	return false
}
