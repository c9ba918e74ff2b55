// SPDX-License-Identifier: Apache-2.0

package swap

import (
	"io"
	"os"

	"github.com/cndeploy/nodeprep/internal/fstab"
	nos "github.com/cndeploy/nodeprep/pkg/os"
)

const mb = 1024 * 1024

// swap signature magic written by mkswap into the last bytes of the first page
var (
	swapMagics = []string{"SWAPSPACE2", "SWAP-SPACE"}

	// pageSize is a variable for easier testing with fixture files
	pageSize = os.Getpagesize()

	// collaborator lookups, in variables for easier testing/mocking
	isSwapActive  = nos.IsSwapActive
	hasFstabEntry = fstab.HasEntry
)

// Observer fetches the current swap state of the host for a single path.
type Observer interface {
	Observe(path string) (State, error)
}

// NewObserver returns the host-backed observer.
func NewObserver() Observer {
	return hostObserver{}
}

type hostObserver struct{}

// Observe reads the host state fresh. A missing file safely maps to
// "not present, not formatted"; failures to read /proc/swaps or fstab are
// propagated since guessing there could produce a destructive plan.
func (hostObserver) Observe(path string) (State, error) {
	var st State

	info, err := os.Stat(path)
	switch {
	case err == nil:
		st.FileExists = !info.IsDir()
		st.FileSizeMB = int(info.Size() / mb)
	case os.IsNotExist(err):
		// absent file: keep zero values
	default:
		return State{}, ObservationError.Wrap(err, "failed to stat %s", path)
	}

	active, err := isSwapActive(path)
	if err != nil {
		return State{}, ObservationError.Wrap(err, "failed to determine active swaps")
	}
	st.Active = active

	if st.FileExists {
		formatted, err := hasSwapSignature(path)
		if err != nil {
			return State{}, ObservationError.Wrap(err, "failed to probe swap signature of %s", path)
		}
		st.Formatted = formatted
	}

	present, err := hasFstabEntry(path)
	if err != nil {
		return State{}, ObservationError.Wrap(err, "failed to inspect fstab")
	}
	st.FstabEntry = present

	return st, nil
}

// hasSwapSignature checks for the mkswap magic at the end of the first page.
func hasSwapSignature(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	magicLen := len(swapMagics[0])
	buf := make([]byte, magicLen)
	if _, err := f.ReadAt(buf, int64(pageSize-magicLen)); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			// file shorter than one page cannot carry a signature
			return false, nil
		}
		return false, err
	}

	for _, magic := range swapMagics {
		if string(buf) == magic {
			return true, nil
		}
	}
	return false, nil
}
