// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"github.com/spf13/cobra"

	"github.com/cndeploy/nodeprep/internal/config"
	"github.com/cndeploy/nodeprep/internal/doctor"
	"github.com/cndeploy/nodeprep/internal/swap"
	"github.com/cndeploy/nodeprep/pkg/logx"
	"github.com/cndeploy/nodeprep/pkg/plock"
)

var (
	swapCmd = &cobra.Command{
		Use:   "swap",
		Short: "Swap file management commands",
	}

	swapPlanCmd = &cobra.Command{
		Use:   "plan",
		Short: "Show the actions a swap apply would run, without changing anything",
		Run: func(cmd *cobra.Command, args []string) {
			result, err := swap.NewReconciler(config.Get().Swap).PlanOnly()
			if err != nil {
				doctor.CheckErr(cmd.Context(), err)
			}

			output, err := formatReport(result, flagOutputFormat)
			if err != nil {
				doctor.CheckErr(cmd.Context(), err)
			}
			cmd.Println(output)
		},
	}

	swapApplyCmd = &cobra.Command{
		Use:   "apply",
		Short: "Converge the host's swap file to the configured state",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()

			lock, err := plock.Acquire(lockPath)
			if err != nil {
				doctor.CheckErr(ctx, err)
			}
			defer func() { _ = lock.Release() }()

			result, err := swap.NewReconciler(config.Get().Swap).Reconcile(ctx)
			if err != nil {
				doctor.CheckErr(ctx, err)
			}

			logx.As().Info().
				Int("planned", len(result.Plan)).
				Int("applied", result.Applied).
				Msg("Swap state reconciled")

			output, err := formatReport(result, flagOutputFormat)
			if err != nil {
				doctor.CheckErr(ctx, err)
			}
			cmd.Println(output)
		},
	}
)

func init() {
	swapCmd.AddCommand(swapPlanCmd)
	swapCmd.AddCommand(swapApplyCmd)
}
