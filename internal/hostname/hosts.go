// SPDX-License-Identifier: Apache-2.0

package hostname

import (
	"fmt"
	"os"
	"strings"

	"github.com/joomcode/errorx"
)

// managed block markers; everything between them belongs to this tool
const (
	hostsBeginMarker = "# BEGIN nodeprep managed hosts"
	hostsEndMarker   = "# END nodeprep managed hosts"
)

// kept in a variable for easier testing/mocking
var etcHostsPath = "/etc/hosts"

// HostEntry is one /etc/hosts record to manage.
type HostEntry struct {
	IP    string   `yaml:"ip" json:"ip"`
	Names []string `yaml:"names" json:"names"`
}

func (e HostEntry) render() string {
	return fmt.Sprintf("%s %s", e.IP, strings.Join(e.Names, " "))
}

// SyncHosts replaces the managed block of /etc/hosts with the given entries,
// preserving everything outside the markers. An empty entry list removes the
// block. Rewrites happen only when the rendered block differs.
func SyncHosts(entries []HostEntry) error {
	data, err := os.ReadFile(etcHostsPath)
	if err != nil && !os.IsNotExist(err) {
		return errorx.IllegalState.Wrap(err, "failed to read %s", etcHostsPath)
	}

	mode := os.FileMode(0o644)
	if info, statErr := os.Stat(etcHostsPath); statErr == nil {
		mode = info.Mode()
	}

	head, tail := splitManagedBlock(string(data))

	var block string
	if len(entries) > 0 {
		lines := make([]string, 0, len(entries)+2)
		lines = append(lines, hostsBeginMarker)
		for _, e := range entries {
			lines = append(lines, e.render())
		}
		lines = append(lines, hostsEndMarker)
		block = strings.Join(lines, "\n") + "\n"
	}

	next := head + block + tail
	if next == string(data) {
		return nil
	}

	if err := os.WriteFile(etcHostsPath, []byte(next), mode); err != nil {
		return errorx.IllegalState.Wrap(err, "failed to write %s", etcHostsPath)
	}
	return nil
}

// splitManagedBlock cuts the current content around the managed block.
// The head keeps its trailing newline so the block appends cleanly; when no
// block exists the whole content is the head.
func splitManagedBlock(content string) (head, tail string) {
	begin := strings.Index(content, hostsBeginMarker)
	if begin < 0 {
		head = content
		if head != "" && !strings.HasSuffix(head, "\n") {
			head += "\n"
		}
		return head, ""
	}

	end := strings.Index(content[begin:], hostsEndMarker)
	if end < 0 {
		// unterminated block: treat the rest of the file as managed
		return content[:begin], ""
	}

	after := begin + end + len(hostsEndMarker)
	tail = content[after:]
	tail = strings.TrimPrefix(tail, "\n")
	return content[:begin], tail
}
