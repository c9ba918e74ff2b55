// SPDX-License-Identifier: Apache-2.0

// Package fstab reads and edits /etc/fstab while preserving comments and
// unrelated entries byte for byte.
package fstab

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joomcode/errorx"
)

// kept in variables for easier testing/mocking
var (
	fstabPath = "/etc/fstab"
	backupDir = "/var/lib/nodeprep/backup/etc"
)

const defaultMode = os.FileMode(0o644)

// Entry is a single fstab record.
type Entry struct {
	Spec    string // fs_spec: device, file or UUID
	File    string // fs_file: mount point, "none" for swap
	VfsType string // fs_vfstype
	Options string // fs_mntops
	Freq    int    // fs_freq
	PassNo  int    // fs_passno
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %s %s %s %d %d", e.Spec, e.File, e.VfsType, e.Options, e.Freq, e.PassNo)
}

// SwapEntry returns the canonical swap file entry for the given path.
func SwapEntry(spec string) Entry {
	return Entry{Spec: spec, File: "none", VfsType: "swap", Options: "sw", Freq: 0, PassNo: 0}
}

// Path returns the fstab file location in use.
func Path() string {
	return fstabPath
}

// SetPath overrides the fstab location. Intended for tests.
func SetPath(p string) {
	fstabPath = p
}

// SwapSpecs returns the fs_spec of every entry with vfstype "swap".
// A missing fstab is treated as empty; some minimal systems do not ship one.
func SwapSpecs() ([]string, error) {
	lines, _, err := readLines()
	if err != nil {
		return nil, err
	}

	var specs []string
	for _, line := range lines {
		e, ok := parseLine(line)
		if ok && e.VfsType == "swap" {
			specs = append(specs, e.Spec)
		}
	}
	return specs, nil
}

// HasEntry reports whether an uncommented entry for the given fs_spec exists.
func HasEntry(spec string) (bool, error) {
	lines, _, err := readLines()
	if err != nil {
		return false, err
	}

	for _, line := range lines {
		if e, ok := parseLine(line); ok && e.Spec == spec {
			return true, nil
		}
	}
	return false, nil
}

// Upsert inserts the entry, replacing any existing uncommented entry keyed on
// the same fs_spec. Writing an identical entry is a no-op so the operation is
// idempotent.
func Upsert(entry Entry) error {
	lines, mode, err := readLines()
	if err != nil {
		return err
	}

	rendered := entry.String()
	replaced := false
	changed := false
	for i, line := range lines {
		e, ok := parseLine(line)
		if !ok || e.Spec != entry.Spec {
			continue
		}
		if strings.Join(strings.Fields(line), " ") != rendered {
			lines[i] = rendered
			changed = true
		}
		replaced = true
		break
	}

	if !replaced {
		lines = append(lines, rendered)
		changed = true
	}

	if !changed {
		return nil
	}
	return writeLines(lines, mode)
}

// Remove deletes every uncommented entry keyed on the given fs_spec.
// Removing a nonexistent entry is a safe no-op.
func Remove(spec string) error {
	lines, mode, err := readLines()
	if err != nil {
		return err
	}

	var kept []string
	removed := false
	for _, line := range lines {
		if e, ok := parseLine(line); ok && e.Spec == spec {
			removed = true
			continue
		}
		kept = append(kept, line)
	}

	if !removed {
		return nil
	}
	return writeLines(kept, mode)
}

// parseLine parses an uncommented fstab line into an Entry.
// Returns false for blanks, comments and malformed lines.
func parseLine(line string) (Entry, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return Entry{}, false
	}

	fields := strings.Fields(trimmed)
	if len(fields) < 3 {
		return Entry{}, false
	}

	e := Entry{Spec: fields[0], File: fields[1], VfsType: fields[2]}
	if len(fields) > 3 {
		e.Options = fields[3]
	}
	if len(fields) > 4 {
		fmt.Sscanf(fields[4], "%d", &e.Freq)
	}
	if len(fields) > 5 {
		fmt.Sscanf(fields[5], "%d", &e.PassNo)
	}
	return e, true
}

func readLines() ([]string, os.FileMode, error) {
	f, err := os.Open(fstabPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, defaultMode, nil
		}
		return nil, 0, errorx.IllegalState.Wrap(err, "failed to read %s", fstabPath)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, errorx.IllegalState.Wrap(err, "failed to stat %s", fstabPath)
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, errorx.IllegalState.Wrap(err, "failed to scan %s", fstabPath)
	}

	return lines, info.Mode(), nil
}

// backupOriginal copies the fstab into the backup dir before the first
// modification. An existing backup is never overwritten, so repeated runs
// keep the pre-nodeprep original.
func backupOriginal() error {
	backupPath := filepath.Join(backupDir, filepath.Base(fstabPath))
	if _, err := os.Stat(backupPath); err == nil {
		return nil
	}

	original, err := os.ReadFile(fstabPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errorx.IllegalState.Wrap(err, "failed to read %s for backup", fstabPath)
	}

	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return errorx.IllegalState.Wrap(err, "failed to create backup dir %s", backupDir)
	}
	if err := os.WriteFile(backupPath, original, defaultMode); err != nil {
		return errorx.IllegalState.Wrap(err, "failed to backup %s", fstabPath)
	}
	return nil
}

func writeLines(lines []string, mode os.FileMode) error {
	if err := backupOriginal(); err != nil {
		return err
	}

	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	if err := os.WriteFile(fstabPath, []byte(content), mode); err != nil {
		return errorx.IllegalState.Wrap(err, "failed to write %s", fstabPath)
	}
	return nil
}
