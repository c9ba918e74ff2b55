// SPDX-License-Identifier: Apache-2.0

package swap

import (
	"context"
	"testing"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObserver struct {
	state State
	err   error
}

func (f fakeObserver) Observe(path string) (State, error) {
	return f.state, f.err
}

// recordingExecutor records executed actions and optionally fails on a
// specific action kind.
type recordingExecutor struct {
	executed []Action
	failOn   ActionKind
}

func (r *recordingExecutor) Execute(ctx context.Context, action Action) error {
	if r.failOn != "" && action.Kind == r.failOn {
		return errorx.IllegalState.New("simulated %s failure", action.Kind)
	}
	r.executed = append(r.executed, action)
	return nil
}

func TestReconcile_AppliesFullPlanInOrder(t *testing.T) {
	exec := &recordingExecutor{}
	r := NewReconciler(desired1G,
		WithObserver(fakeObserver{state: State{}}),
		WithExecutor(exec))

	res, err := r.Reconcile(context.Background())
	require.NoError(t, err)

	want := []ActionKind{CreateOrResizeFile, Chmod, Format, AddFstabEntry, Activate, SetSwappiness}
	assert.Equal(t, want, Plan(exec.executed).Kinds())
	assert.Equal(t, len(want), res.Applied)
	assert.Equal(t, want, res.Plan.Kinds())
}

func TestReconcile_FailFastAbortsRemainingActions(t *testing.T) {
	exec := &recordingExecutor{failOn: Format}
	r := NewReconciler(desired1G,
		WithObserver(fakeObserver{state: State{}}),
		WithExecutor(exec))

	res, err := r.Reconcile(context.Background())
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, ActionError))

	// CreateOrResizeFile and Chmod ran, nothing after the failed Format
	assert.Equal(t, []ActionKind{CreateOrResizeFile, Chmod}, Plan(exec.executed).Kinds())
	assert.Equal(t, 2, res.Applied)

	prop, ok := errorx.ExtractProperty(err, ActionProperty)
	require.True(t, ok)
	assert.Contains(t, prop.(string), "format")
}

func TestReconcile_ObservationFailureRunsNothing(t *testing.T) {
	exec := &recordingExecutor{}
	r := NewReconciler(desired1G,
		WithObserver(fakeObserver{err: ObservationError.New("probe failed")}),
		WithExecutor(exec))

	_, err := r.Reconcile(context.Background())
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, ObservationError))
	assert.Empty(t, exec.executed)
}

func TestReconcile_CanceledContextStopsPlan(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &recordingExecutor{}
	r := NewReconciler(desired1G,
		WithObserver(fakeObserver{state: State{}}),
		WithExecutor(exec))

	_, err := r.Reconcile(ctx)
	require.Error(t, err)
	assert.Empty(t, exec.executed)
}

func TestPlanOnly_DoesNotExecute(t *testing.T) {
	exec := &recordingExecutor{}
	r := NewReconciler(desired1G,
		WithObserver(fakeObserver{state: State{}}),
		WithExecutor(exec))

	res, err := r.PlanOnly()
	require.NoError(t, err)
	assert.NotEmpty(t, res.Plan)
	assert.Empty(t, exec.executed)
	assert.Zero(t, res.Applied)
}

// Second run against the state the first run produced applies only the
// idempotent upserts.
func TestReconcile_SecondRunIsNonDisruptive(t *testing.T) {
	exec := &recordingExecutor{}
	r := NewReconciler(desired1G,
		WithObserver(fakeObserver{state: converged}),
		WithExecutor(exec))

	_, err := r.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []ActionKind{Chmod, AddFstabEntry, SetSwappiness}, Plan(exec.executed).Kinds())
}
