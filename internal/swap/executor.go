// SPDX-License-Identifier: Apache-2.0

package swap

import (
	"context"
	"os"
	"os/exec"
	"strconv"

	"github.com/joomcode/errorx"

	"github.com/cndeploy/nodeprep/internal/fstab"
	"github.com/cndeploy/nodeprep/internal/sysctl"
	nos "github.com/cndeploy/nodeprep/pkg/os"
)

// owner read-write only; swap files must not be world readable
const swapFileMode = os.FileMode(0o600)

// zero-fill chunk size for create/resize
const writeChunk = 4 * mb

// Executor applies a single planned action to the host.
type Executor interface {
	Execute(ctx context.Context, action Action) error
}

// these are put in variables for easier testing/mocking
var (
	runMkswap = func(ctx context.Context, path string) error {
		out, err := exec.CommandContext(ctx, "mkswap", "-f", path).CombinedOutput()
		if err != nil {
			return errorx.IllegalState.Wrap(err, "mkswap failed: %s", string(out))
		}
		return nil
	}

	swapOff     = nos.SwapOff
	swapOnSpecs = nos.SwapOnSpecs

	setSwappiness = func(value int) error {
		return sysctl.ApplyAndPersist("vm.swappiness", strconv.Itoa(value))
	}
)

// NewExecutor returns the host-backed executor.
func NewExecutor() Executor {
	return hostExecutor{}
}

type hostExecutor struct{}

func (hostExecutor) Execute(ctx context.Context, action Action) error {
	switch action.Kind {
	case Deactivate:
		_, err := swapOff(action.Path)
		return err

	case DeleteFile:
		if err := os.Remove(action.Path); err != nil && !os.IsNotExist(err) {
			return errorx.IllegalState.Wrap(err, "failed to delete %s", action.Path)
		}
		return nil

	case RemoveFstabEntry:
		return fstab.Remove(action.Path)

	case CreateOrResizeFile:
		return writeZeroFile(action.Path, action.SizeMB)

	case Chmod:
		if err := os.Chmod(action.Path, swapFileMode); err != nil {
			return errorx.IllegalState.Wrap(err, "failed to chmod %s", action.Path)
		}
		return nil

	case Format:
		return runMkswap(ctx, action.Path)

	case AddFstabEntry:
		return fstab.Upsert(fstab.SwapEntry(action.Path))

	case Activate:
		// fstab is authoritative at this point; swap on everything it lists
		specs, err := fstab.SwapSpecs()
		if err != nil {
			return err
		}
		_, err = swapOnSpecs(specs)
		return err

	case SetSwappiness:
		return setSwappiness(action.Swappiness)

	default:
		return errorx.IllegalArgument.New("unknown action kind: %s", action.Kind)
	}
}

// writeZeroFile overwrites the full file content with zero bytes up to the
// target size. A single primitive covers both "doesn't exist" and "wrong
// size": truncating to zero and rewriting grows and shrinks uniformly, and
// guarantees the content is zeroed rather than sparse garbage.
func writeZeroFile(path string, sizeMB int) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, swapFileMode)
	if err != nil {
		return errorx.IllegalState.Wrap(err, "failed to create %s", path)
	}
	defer f.Close()

	remaining := int64(sizeMB) * mb
	chunk := make([]byte, writeChunk)
	for remaining > 0 {
		n := int64(len(chunk))
		if remaining < n {
			n = remaining
		}
		if _, err := f.Write(chunk[:n]); err != nil {
			return errorx.IllegalState.Wrap(err, "failed to write %s", path)
		}
		remaining -= n
	}

	if err := f.Sync(); err != nil {
		return errorx.IllegalState.Wrap(err, "failed to sync %s", path)
	}
	return nil
}
