// SPDX-License-Identifier: Apache-2.0

package swap

import "github.com/joomcode/errorx"

var (
	Errors = errorx.NewNamespace("nodeprep.swap")

	// ObservationError means the host state could not be determined; the run
	// aborts before any action executes.
	ObservationError = Errors.NewType("observation_failure")

	// ActionError means a planned action failed; the remaining plan is
	// abandoned and the next full run converges from the new observed state.
	ActionError = Errors.NewType("action_failure")

	ActionProperty = errorx.RegisterPrintableProperty("action")
)
