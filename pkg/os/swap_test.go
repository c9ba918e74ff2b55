package os

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProcSwaps(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "swaps")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))

	orig := swapsFile
	swapsFile = p
	t.Cleanup(func() { swapsFile = orig })
}

func TestActiveSwaps(t *testing.T) {
	writeProcSwaps(t, "Filename\t\t\t\tType\t\tSize\t\tUsed\t\tPriority\n"+
		"/swapfile                               file\t\t1048572\t\t0\t\t-2\n"+
		"/dev/sda2                               partition\t2097148\t\t0\t\t-3\n")

	swaps, err := ActiveSwaps()
	require.NoError(t, err)
	assert.Equal(t, []string{"/swapfile", "/dev/sda2"}, swaps)
}

func TestActiveSwaps_Empty(t *testing.T) {
	writeProcSwaps(t, "")

	swaps, err := ActiveSwaps()
	require.NoError(t, err)
	assert.Empty(t, swaps)
}

func TestIsSwapActive(t *testing.T) {
	writeProcSwaps(t, "Filename Type Size Used Priority\n/swapfile file 1048572 0 -2\n")

	active, err := IsSwapActive("/swapfile")
	require.NoError(t, err)
	assert.True(t, active)

	active, err = IsSwapActive("/other")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestSwapOff_ErrnoMapping(t *testing.T) {
	orig := sysSwapOff
	t.Cleanup(func() { sysSwapOff = orig })

	sysSwapOff = func(path string) error { return nil }
	rc, err := SwapOff("/swapfile")
	assert.Equal(t, SWAP_EX_OK, rc)
	assert.NoError(t, err)

	sysSwapOff = func(path string) error { return syscall.EPERM }
	rc, err = SwapOff("/swapfile")
	assert.Equal(t, SWAP_EX_USAGE, rc)
	assert.Error(t, err)

	sysSwapOff = func(path string) error { return syscall.ENOMEM }
	rc, err = SwapOff("/swapfile")
	assert.Equal(t, SWAP_EX_ENOMEM, rc)
	assert.Error(t, err)

	sysSwapOff = func(path string) error { return syscall.EINVAL }
	rc, err = SwapOff("/swapfile")
	assert.Equal(t, SWAP_EX_FAILURE, rc)
	assert.Error(t, err)
}

func TestSwapOnSpecs_SkipsActive(t *testing.T) {
	writeProcSwaps(t, "Filename Type Size Used Priority\n/swapfile file 1048572 0 -2\n")

	var attempted []string
	orig := sysSwapOn
	sysSwapOn = func(path string, flags uintptr) error {
		attempted = append(attempted, path)
		return nil
	}
	t.Cleanup(func() { sysSwapOn = orig })

	rc, err := SwapOnSpecs([]string{"/swapfile", "/swapfile2"})
	require.NoError(t, err)
	assert.Equal(t, SWAP_EX_OK, rc)
	assert.Equal(t, []string{"/swapfile2"}, attempted)
}

func TestSwapOnSpecs_PermissionAborts(t *testing.T) {
	writeProcSwaps(t, "Filename Type Size Used Priority\n")

	orig := sysSwapOn
	sysSwapOn = func(path string, flags uintptr) error { return syscall.EPERM }
	t.Cleanup(func() { sysSwapOn = orig })

	rc, err := SwapOnSpecs([]string{"/a", "/b"})
	assert.Equal(t, SWAP_EX_USAGE, rc)
	assert.Error(t, err)
}

// mockDiskLookup points the by-uuid/by-label lookup dirs at temp dirs and
// returns them for the test to populate with device symlinks.
func mockDiskLookup(t *testing.T) (string, string) {
	t.Helper()

	byUuid := filepath.Join(t.TempDir(), "by-uuid")
	byLabel := filepath.Join(t.TempDir(), "by-label")
	require.NoError(t, os.MkdirAll(byUuid, 0755))
	require.NoError(t, os.MkdirAll(byLabel, 0755))

	origUuid := uuidLookupDir
	origLabel := labelLookupDir
	uuidLookupDir = byUuid
	labelLookupDir = byLabel
	t.Cleanup(func() {
		uuidLookupDir = origUuid
		labelLookupDir = origLabel
	})

	return byUuid, byLabel
}

func TestSwapOnSpecs_SkipsActiveUuidKeyedPartition(t *testing.T) {
	byUuid, _ := mockDiskLookup(t)

	// device node with a by-uuid symlink pointing at it, listed as active
	// under its real path, the way /proc/swaps reports partitions
	dev := filepath.Join(t.TempDir(), "sda2")
	require.NoError(t, os.WriteFile(dev, nil, 0600))
	uuid := "0f28b84e-57c5-4c9a-87e6-f1a8babc1c53"
	require.NoError(t, os.Symlink(dev, filepath.Join(byUuid, uuid)))

	writeProcSwaps(t, "Filename Type Size Used Priority\n"+dev+" partition 2097148 0 -2\n")

	var attempted []string
	orig := sysSwapOn
	sysSwapOn = func(path string, flags uintptr) error {
		attempted = append(attempted, path)
		return nil
	}
	t.Cleanup(func() { sysSwapOn = orig })

	rc, err := SwapOnSpecs([]string{"UUID=" + uuid})
	require.NoError(t, err)
	assert.Equal(t, SWAP_EX_OK, rc)
	assert.Empty(t, attempted)
}

func TestSwapOnSpecs_ResolvesLabelBeforeSyscall(t *testing.T) {
	_, byLabel := mockDiskLookup(t)

	dev := filepath.Join(t.TempDir(), "sdb1")
	require.NoError(t, os.WriteFile(dev, nil, 0600))
	require.NoError(t, os.Symlink(dev, filepath.Join(byLabel, "swap0")))

	writeProcSwaps(t, "Filename Type Size Used Priority\n")

	var attempted []string
	orig := sysSwapOn
	sysSwapOn = func(path string, flags uintptr) error {
		attempted = append(attempted, path)
		return nil
	}
	t.Cleanup(func() { sysSwapOn = orig })

	rc, err := SwapOnSpecs([]string{"LABEL=swap0"})
	require.NoError(t, err)
	assert.Equal(t, SWAP_EX_OK, rc)

	resolved, err := filepath.EvalSymlinks(dev)
	require.NoError(t, err)
	assert.Equal(t, []string{resolved}, attempted)
}

func TestSwapOnSpecs_UnknownDeviceFails(t *testing.T) {
	mockDiskLookup(t)
	writeProcSwaps(t, "Filename Type Size Used Priority\n")

	var attempted []string
	orig := sysSwapOn
	sysSwapOn = func(path string, flags uintptr) error {
		attempted = append(attempted, path)
		return nil
	}
	t.Cleanup(func() { sysSwapOn = orig })

	rc, err := SwapOnSpecs([]string{"UUID=doesnotexist"})
	require.Error(t, err)
	assert.Equal(t, SWAP_EX_FAILURE, rc)
	assert.Empty(t, attempted)
}

func TestIsSwapActive_ResolvesUuidSpec(t *testing.T) {
	byUuid, _ := mockDiskLookup(t)

	dev := filepath.Join(t.TempDir(), "sda2")
	require.NoError(t, os.WriteFile(dev, nil, 0600))
	uuid := "6da09e9c-1f34-49fc-8e25-1c4bdc41d82a"
	require.NoError(t, os.Symlink(dev, filepath.Join(byUuid, uuid)))

	writeProcSwaps(t, "Filename Type Size Used Priority\n"+dev+" partition 2097148 0 -2\n")

	active, err := IsSwapActive("UUID=" + uuid)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestSwapOnSpecs_NoSpecs(t *testing.T) {
	rc, err := SwapOnSpecs(nil)
	assert.Equal(t, SWAP_EX_OK, rc)
	assert.NoError(t, err)
}
