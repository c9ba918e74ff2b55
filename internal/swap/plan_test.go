// SPDX-License-Identifier: Apache-2.0

package swap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var desired1G = Config{Enabled: true, Path: "/swapfile", SizeMB: 1024, Swappiness: 10}

// converged is the state a successful run of desired1G leaves behind.
var converged = State{
	FileExists: true,
	FileSizeMB: 1024,
	Active:     true,
	Formatted:  true,
	FstabEntry: true,
}

func kinds(p Plan) []ActionKind {
	return p.Kinds()
}

func TestBuildPlan_DisableActiveSwap(t *testing.T) {
	desired := Config{Enabled: false, Path: "/swapfile"}
	observed := State{FileExists: true, FileSizeMB: 1024, Active: true, Formatted: true, FstabEntry: true}

	plan := BuildPlan(desired, observed)

	assert.Equal(t, []ActionKind{Deactivate, DeleteFile, RemoveFstabEntry}, kinds(plan))
}

func TestBuildPlan_DisableAbsentSwap(t *testing.T) {
	desired := Config{Enabled: false, Path: "/swapfile"}

	plan := BuildPlan(desired, State{})

	// the fstab removal is an idempotent no-op when no entry exists
	assert.Equal(t, []ActionKind{RemoveFstabEntry}, kinds(plan))
}

func TestBuildPlan_FreshHost(t *testing.T) {
	plan := BuildPlan(desired1G, State{})

	assert.Equal(t, []ActionKind{
		CreateOrResizeFile, Chmod, Format, AddFstabEntry, Activate, SetSwappiness,
	}, kinds(plan))

	require.Equal(t, CreateOrResizeFile, plan[0].Kind)
	assert.Equal(t, "/swapfile", plan[0].Path)
	assert.Equal(t, 1024, plan[0].SizeMB)
	assert.Equal(t, 10, plan[len(plan)-1].Swappiness)
}

func TestBuildPlan_ConvergedHost(t *testing.T) {
	plan := BuildPlan(desired1G, converged)

	assert.Equal(t, []ActionKind{Chmod, AddFstabEntry, SetSwappiness}, kinds(plan))
}

func TestBuildPlan_ResizeForcesOfflineReformat(t *testing.T) {
	observed := converged
	observed.FileSizeMB = 512

	plan := BuildPlan(desired1G, observed)

	assert.Equal(t, []ActionKind{
		Deactivate, CreateOrResizeFile, Chmod, Format, AddFstabEntry, Activate, SetSwappiness,
	}, kinds(plan))
}

func TestBuildPlan_UnformattedFileIsReformatted(t *testing.T) {
	observed := converged
	observed.Formatted = false
	observed.Active = false

	plan := BuildPlan(desired1G, observed)

	assert.Equal(t, []ActionKind{Chmod, Format, AddFstabEntry, Activate, SetSwappiness}, kinds(plan))
}

func TestBuildPlan_SwappinessOnlyChangeIsNonDisruptive(t *testing.T) {
	desired := desired1G
	desired.Swappiness = 60

	plan := BuildPlan(desired, converged)

	assert.False(t, plan.Contains(Deactivate))
	assert.False(t, plan.Contains(CreateOrResizeFile))
	assert.False(t, plan.Contains(Format))
	assert.Equal(t, []ActionKind{Chmod, AddFstabEntry, SetSwappiness}, kinds(plan))
}

func TestBuildPlan_InactiveButCorrectFileIsActivated(t *testing.T) {
	observed := converged
	observed.Active = false

	plan := BuildPlan(desired1G, observed)

	assert.Equal(t, []ActionKind{Chmod, AddFstabEntry, Activate, SetSwappiness}, kinds(plan))
}

// Disable-is-terminal: for any observed state, a disabled config never plans
// formatting, activation or swappiness changes.
func TestBuildPlan_DisableIsTerminal(t *testing.T) {
	desired := Config{Enabled: false, Path: "/swapfile"}

	states := []State{
		{},
		{FileExists: true, FileSizeMB: 512},
		{FileExists: true, FileSizeMB: 1024, Active: true},
		{FileExists: true, Formatted: true, FstabEntry: true},
		{Active: true, FstabEntry: true},
	}

	allowed := map[ActionKind]bool{Deactivate: true, DeleteFile: true, RemoveFstabEntry: true}
	for _, observed := range states {
		plan := BuildPlan(desired, observed)
		for _, a := range plan {
			assert.True(t, allowed[a.Kind], "unexpected action %s for observed %+v", a.Kind, observed)
		}
	}
}

// Idempotence: re-planning against the state a successful run produced yields
// no disruptive actions.
func TestBuildPlan_Idempotence(t *testing.T) {
	configs := []Config{
		desired1G,
		{Enabled: true, Path: "/var/swap", SizeMB: 4096, Swappiness: 0},
		{Enabled: false, Path: "/swapfile"},
	}

	for _, desired := range configs {
		var after State
		if desired.Enabled {
			after = State{
				FileExists: true,
				FileSizeMB: desired.SizeMB,
				Active:     true,
				Formatted:  true,
				FstabEntry: true,
			}
		}

		plan := BuildPlan(desired, after)
		for _, disruptive := range []ActionKind{Deactivate, CreateOrResizeFile, Format, DeleteFile} {
			assert.False(t, plan.Contains(disruptive),
				"plan for %+v still contains %s", desired, disruptive)
		}
	}
}

func TestBuildPlan_DeactivateAlwaysPrecedesResize(t *testing.T) {
	observed := State{FileExists: true, FileSizeMB: 256, Active: true, Formatted: true, FstabEntry: true}

	plan := BuildPlan(desired1G, observed)

	idxDeactivate, idxResize, idxFormat := -1, -1, -1
	for i, a := range plan {
		switch a.Kind {
		case Deactivate:
			idxDeactivate = i
		case CreateOrResizeFile:
			idxResize = i
		case Format:
			idxFormat = i
		}
	}

	require.GreaterOrEqual(t, idxDeactivate, 0)
	require.Greater(t, idxResize, idxDeactivate)
	require.Greater(t, idxFormat, idxResize)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "create-or-resize-file(/swapfile, 1024MB)",
		Action{Kind: CreateOrResizeFile, Path: "/swapfile", SizeMB: 1024}.String())
	assert.Equal(t, "set-swappiness(10)", Action{Kind: SetSwappiness, Swappiness: 10}.String())
	assert.Equal(t, "activate", Action{Kind: Activate}.String())
	assert.Equal(t, "chmod(/swapfile)", Action{Kind: Chmod, Path: "/swapfile"}.String())
}
