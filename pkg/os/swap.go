package os

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"unsafe"

	"github.com/joomcode/errorx"
	"golang.org/x/sys/unix"
)

// Return codes mirror util-linux swapoff/swapon
// Ref:
// - https://github.com/util-linux/util-linux/blob/master/sys-utils/swapoff.c#L43-L49
const (
	SWAP_EX_OK      = 0  // no errors
	SWAP_EX_ENOMEM  = 2  // failed due to OOM
	SWAP_EX_FAILURE = 4  // failed due to other reason
	SWAP_EX_SYSERR  = 8  // non-swap errors
	SWAP_EX_USAGE   = 16 // usage/permissions/syntax error
)

var (
	// these are put in variables for easier testing/mocking
	swapsFile      = "/proc/swaps"
	uuidLookupDir  = "/dev/disk/by-uuid"
	labelLookupDir = "/dev/disk/by-label"

	PathProperty       = errorx.RegisterProperty("path")
	ReturnCodeProperty = errorx.RegisterProperty("return_code")

	// sysSwapOn calls the swapon syscall on the given path with the given flags.
	// The returned error is the errno from the syscall, or nil on success.
	// This is set as a variable for easier testing/mocking.
	sysSwapOn = func(path string, flags uintptr) error {
		bp, err := unix.BytePtrFromString(path)
		if err != nil {
			return err
		}

		_, _, e := syscall.Syscall(unix.SYS_SWAPON, uintptr(unsafe.Pointer(bp)), flags, 0)
		if e != 0 {
			return e
		}
		return nil
	}

	// sysSwapOff calls the swapoff syscall on the given path.
	// The returned error is the errno from the syscall, or nil on success.
	// This is set as a variable for easier testing/mocking.
	sysSwapOff = func(path string) error {
		bp, err := unix.BytePtrFromString(path)
		if err != nil {
			return err
		}

		_, _, en := syscall.Syscall(unix.SYS_SWAPOFF, uintptr(unsafe.Pointer(bp)), 0, 0)
		if en != 0 {
			return en
		}
		return nil
	}
)

// resolveSpec resolves fstab specs like UUID=xxxx or LABEL=xxxx to actual
// device paths through /dev/disk/by-uuid and /dev/disk/by-label, following
// symlinks so the result compares against the normalized /proc/swaps listing.
// A plain path is normalized when possible and passed through otherwise; the
// swapon/swapoff syscall reports missing files with the proper errno.
func resolveSpec(spec string) (string, error) {
	if uuid, ok := strings.CutPrefix(spec, "UUID="); ok {
		return resolveLookup(uuidLookupDir, uuid, spec)
	}
	if label, ok := strings.CutPrefix(spec, "LABEL="); ok {
		return resolveLookup(labelLookupDir, label, spec)
	}

	if real, err := filepath.EvalSymlinks(spec); err == nil {
		return real, nil
	}
	return spec, nil
}

func resolveLookup(dir, key, spec string) (string, error) {
	p := filepath.Join(dir, key)
	if _, err := os.Stat(p); err != nil {
		return "", ErrSwapDeviceNotFound.New("no device for %s in %s", spec, dir)
	}
	if real, err := filepath.EvalSymlinks(p); err == nil {
		return real, nil
	}
	return p, nil
}

// ActiveSwaps parses /proc/swaps and returns the normalized swap source
// paths (first column, symlinks followed).
func ActiveSwaps() ([]string, error) {
	f, err := os.Open(swapsFile)
	if err != nil {
		return nil, errorx.IllegalState.Wrap(err, "failed to read %s", swapsFile)
	}
	defer f.Close()

	var swaps []string
	scanner := bufio.NewScanner(f)
	// skip header line
	if !scanner.Scan() {
		// empty file/no header
		return swaps, nil
	}
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 1 {
			continue
		}
		// first field is the swap filename/device
		dev := fields[0]
		if real, err := filepath.EvalSymlinks(dev); err == nil {
			dev = real
		}
		swaps = append(swaps, dev)
	}
	if err := scanner.Err(); err != nil {
		return nil, errorx.IllegalState.Wrap(err, "failed to parse %s", swapsFile)
	}
	return swaps, nil
}

// IsSwapActive reports whether the given path is currently swapped on.
func IsSwapActive(path string) (bool, error) {
	swaps, err := ActiveSwaps()
	if err != nil {
		return false, err
	}

	resolved, err := resolveSpec(path)
	if err != nil {
		return false, err
	}

	for _, s := range swaps {
		if s == resolved {
			return true, nil
		}
	}
	return false, nil
}

// SwapOff performs swapoff for a single path.
// On success, it returns SWAP_EX_OK and nil error.
// On error, it returns a non-zero status code and a wrapped errorx error with details.
func SwapOff(path string) (int, error) {
	err := sysSwapOff(path)
	if err == nil {
		return SWAP_EX_OK, nil
	}

	// map errno to return codes
	if errno, ok := err.(syscall.Errno); ok {
		switch errno {
		case syscall.EPERM:
			return SWAP_EX_USAGE, errorx.IllegalState.Wrap(err, "%s: swapoff failed, not super user", path).
				WithProperty(PathProperty, path).
				WithProperty(ReturnCodeProperty, SWAP_EX_USAGE)
		case syscall.ENOMEM:
			return SWAP_EX_ENOMEM, errorx.IllegalState.Wrap(err, "%s: swapoff failed, cannot allocate memory", path).
				WithProperty(PathProperty, path).
				WithProperty(ReturnCodeProperty, SWAP_EX_ENOMEM)
		default:
			return SWAP_EX_FAILURE, errorx.IllegalState.Wrap(err, "%s: swapoff failed, syscall error", path).
				WithProperty(PathProperty, path).
				WithProperty(ReturnCodeProperty, SWAP_EX_FAILURE)
		}
	}

	return SWAP_EX_FAILURE, errorx.IllegalState.Wrap(err, "%s: swapoff failed, non syscall error", path).
		WithProperty(PathProperty, path).
		WithProperty(ReturnCodeProperty, SWAP_EX_FAILURE)
}

// SwapOn performs swapon for a single path with the given flags.
func SwapOn(path string, flags int) (int, error) {
	err := sysSwapOn(path, uintptr(flags))
	if err == nil {
		return SWAP_EX_OK, nil
	}

	if errno, ok := err.(syscall.Errno); ok && errno == syscall.EPERM {
		return SWAP_EX_USAGE, errorx.IllegalState.Wrap(err, "%s: swapon failed, not super user", path).
			WithProperty(PathProperty, path).
			WithProperty(ReturnCodeProperty, SWAP_EX_USAGE)
	}

	return SWAP_EX_FAILURE, errorx.IllegalState.Wrap(err, "%s: swapon failed", path).
		WithProperty(PathProperty, path).
		WithProperty(ReturnCodeProperty, SWAP_EX_FAILURE)
}

// SwapOnSpecs attempts swapon for every given swap source, skipping those
// that are already active. Specs are fstab fs_spec values: plain paths,
// UUID= or LABEL= forms, resolved to device paths before the syscall and
// before the already-active comparison. It is the equivalent of "swapon -a"
// over the given specs.
func SwapOnSpecs(specs []string) (int, error) {
	if len(specs) == 0 {
		return SWAP_EX_OK, nil
	}

	active, err := ActiveSwaps()
	if err != nil {
		return SWAP_EX_SYSERR, err
	}

	activeSet := make(map[string]struct{}, len(active))
	for _, a := range active {
		activeSet[a] = struct{}{}
	}

	var swapOnErrors []error
	for _, spec := range specs {
		resolved, err := resolveSpec(spec)
		if err != nil {
			swapOnErrors = append(swapOnErrors, err)
			continue
		}

		if _, ok := activeSet[resolved]; ok {
			continue
		}

		rc, err := SwapOn(resolved, 0)
		if rc == SWAP_EX_USAGE {
			// no point continuing without privileges
			return rc, err
		}
		if err != nil {
			swapOnErrors = append(swapOnErrors, err)
		}
	}

	if len(swapOnErrors) == 0 {
		return SWAP_EX_OK, nil
	}
	return SWAP_EX_FAILURE, errorx.WrapMany(errorx.IllegalState, "some swapon operations failed", swapOnErrors...)
}
