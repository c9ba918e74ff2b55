// SPDX-License-Identifier: Apache-2.0

package swap

// BuildPlan computes the ordered corrective actions that move observed swap
// state into agreement with the desired configuration. It is a pure function:
// no I/O, deterministic in (desired, observed).
//
// Ordering constraints encoded here:
//   - a swap file must be offline before it can be resized, reformatted or
//     deleted, so Deactivate always comes first when needed;
//   - resizing changes the signature's recorded size, so any create/resize
//     forces a reformat even when a signature is already present;
//   - fstab is made authoritative before activation, so Activate can swap on
//     everything fstab lists.
//
// Chmod, AddFstabEntry and SetSwappiness are cheap idempotent upserts and are
// emitted unconditionally when swap is enabled; on an already converged host
// they produce no observable change.
func BuildPlan(desired Config, observed State) Plan {
	var plan Plan

	resize := desired.Enabled && (!observed.FileExists || observed.FileSizeMB != desired.SizeMB)

	deactivate := observed.Active && (!desired.Enabled || resize)
	if deactivate {
		plan = append(plan, Action{Kind: Deactivate, Path: desired.Path})
	}

	if !desired.Enabled {
		// Disabling is terminal; no further steps apply.
		if observed.FileExists {
			plan = append(plan, Action{Kind: DeleteFile, Path: desired.Path})
		}
		plan = append(plan, Action{Kind: RemoveFstabEntry, Path: desired.Path})
		return plan
	}

	if resize {
		plan = append(plan, Action{Kind: CreateOrResizeFile, Path: desired.Path, SizeMB: desired.SizeMB})
	}

	plan = append(plan, Action{Kind: Chmod, Path: desired.Path})

	// A file that exists but carries no swap signature is reformatted; a
	// signature is never assumed from existence alone.
	if !observed.Formatted || resize {
		plan = append(plan, Action{Kind: Format, Path: desired.Path})
	}

	plan = append(plan, Action{Kind: AddFstabEntry, Path: desired.Path})

	if !observed.Active || deactivate {
		plan = append(plan, Action{Kind: Activate})
	}

	plan = append(plan, Action{Kind: SetSwappiness, Swappiness: desired.Swappiness})

	return plan
}
