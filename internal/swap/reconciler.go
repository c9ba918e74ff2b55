// SPDX-License-Identifier: Apache-2.0

package swap

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/cndeploy/nodeprep/pkg/logx"
)

// Result is the outcome of one reconciliation run.
type Result struct {
	Observed State `yaml:"observed" json:"observed"`
	Plan     Plan  `yaml:"plan" json:"plan"`
	// Applied counts the actions that completed before success or failure.
	Applied int `yaml:"applied" json:"applied"`
}

// Reconciler drives observe, plan and apply for one swap path. It holds no
// state between runs; all state lives on the host and is read fresh.
type Reconciler struct {
	desired  Config
	observer Observer
	executor Executor
	logger   *zerolog.Logger
}

type ReconcilerOption func(*Reconciler)

func WithObserver(o Observer) ReconcilerOption {
	return func(r *Reconciler) {
		if o != nil {
			r.observer = o
		}
	}
}

func WithExecutor(e Executor) ReconcilerOption {
	return func(r *Reconciler) {
		if e != nil {
			r.executor = e
		}
	}
}

func WithLogger(l *zerolog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewReconciler(desired Config, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		desired:  desired,
		observer: NewObserver(),
		executor: NewExecutor(),
		logger:   logx.Nop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// PlanOnly observes the host and returns the plan without applying it.
func (r *Reconciler) PlanOnly() (Result, error) {
	observed, err := r.observer.Observe(r.desired.Path)
	if err != nil {
		return Result{}, err
	}

	return Result{Observed: observed, Plan: BuildPlan(r.desired, observed)}, nil
}

// Reconcile observes the host fresh, computes the plan and applies it in
// order. The first failing action aborts the remaining sequence; no retry is
// attempted, the next run converges from whatever state the failure left.
func (r *Reconciler) Reconcile(ctx context.Context) (Result, error) {
	res, err := r.PlanOnly()
	if err != nil {
		return res, err
	}

	r.logger.Info().
		Str("path", r.desired.Path).
		Bool("enabled", r.desired.Enabled).
		Int("actions", len(res.Plan)).
		Msg("Reconciling swap configuration")

	for _, action := range res.Plan {
		if err := ctx.Err(); err != nil {
			return res, ActionError.Wrap(err, "reconciliation interrupted before %s", action).
				WithProperty(ActionProperty, action.String())
		}

		r.logger.Debug().Stringer("action", action).Msg("Applying swap action")

		if err := r.executor.Execute(ctx, action); err != nil {
			return res, ActionError.Wrap(err, "swap action %s failed", action).
				WithProperty(ActionProperty, action.String())
		}
		res.Applied++
	}

	r.logger.Info().
		Str("path", r.desired.Path).
		Int("applied", res.Applied).
		Msg("Swap configuration reconciled")

	return res, nil
}
