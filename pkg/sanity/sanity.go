// SPDX-License-Identifier: Apache-2.0

package sanity

import (
	"net"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joomcode/errorx"
)

// Security validation patterns
var (
	// shellMetachars contains dangerous shell metacharacters that should be rejected
	shellMetachars = regexp.MustCompile("[;&|$\\x60<>(){}\\[\\]*?~]")

	// validPathChars ensures paths only contain safe characters
	// Allows: alphanumeric, forward slash, dash, underscore, dot
	validPathChars = regexp.MustCompile(`^[a-zA-Z0-9/_.\-]+$`)

	// hostnameLabel is one dot-separated label of an RFC-1123 hostname
	hostnameLabel = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?$`)

	// unixUsername is a conservative POSIX login name shape
	unixUsername = regexp.MustCompile(`^[a-z_][a-z0-9_\-]{0,31}$`)
)

// Contains reports whether v is present in the given list.
func Contains[T comparable](v T, list []T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// SanitizePath validates and sanitizes the given path according to strict security rules.
//
// Specifically, it:
//  1. Rejects paths containing shell metacharacters (e.g., ; & | $ ` < > ( ) { } [ ] * ? ~).
//  2. Rejects path traversal attempts (segments like "../", "/..", or paths ending with "..").
//  3. Requires the input path to be absolute.
//  4. Normalizes the path by removing redundant slashes and dot directories.
//
// Returns the sanitized (cleaned) path, or an error if the input is invalid or unsafe.
func SanitizePath(path string) (string, error) {
	if path == "" {
		return "", errorx.IllegalArgument.New("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		return "", errorx.IllegalArgument.New("path must be absolute: %s", path)
	}

	for _, segment := range strings.Split(path, "/") {
		if segment == ".." {
			return "", errorx.IllegalArgument.New("path cannot contain '..' segments: %s", path)
		}
	}

	if shellMetachars.MatchString(path) {
		return "", errorx.IllegalArgument.New("path contains shell metacharacters: %s", path)
	}

	if !validPathChars.MatchString(path) {
		return "", errorx.IllegalArgument.New("path contains invalid characters: %s", path)
	}

	return filepath.Clean(path), nil
}

// ValidateHostname checks that s is a valid RFC-1123 hostname
// (dot separated labels, each at most 63 characters, 253 total).
func ValidateHostname(s string) error {
	if s == "" {
		return errorx.IllegalArgument.New("hostname cannot be empty")
	}
	if len(s) > 253 {
		return errorx.IllegalArgument.New("hostname exceeds 253 characters: %s", s)
	}
	for _, label := range strings.Split(s, ".") {
		if !hostnameLabel.MatchString(label) {
			return errorx.IllegalArgument.New("invalid hostname label %q in %q", label, s)
		}
	}
	return nil
}

// ValidatePort checks that p is a usable TCP/UDP port number.
func ValidatePort(p int) error {
	if p < 1 || p > 65535 {
		return errorx.IllegalArgument.New("port out of range [1,65535]: %d", p)
	}
	return nil
}

// ValidateIP checks that s parses as an IPv4 or IPv6 address.
func ValidateIP(s string) error {
	if net.ParseIP(s) == nil {
		return errorx.IllegalArgument.New("invalid IP address: %s", s)
	}
	return nil
}

// ValidateCIDR checks that s is either a plain IP address or a CIDR block.
// Firewall sources accept both forms.
func ValidateCIDR(s string) error {
	if net.ParseIP(s) != nil {
		return nil
	}
	if _, _, err := net.ParseCIDR(s); err != nil {
		return errorx.IllegalArgument.Wrap(err, "invalid CIDR or IP: %s", s)
	}
	return nil
}

// ValidateUsername checks that s is a conservative POSIX login name.
func ValidateUsername(s string) error {
	if !unixUsername.MatchString(s) {
		return errorx.IllegalArgument.New("invalid username: %s", s)
	}
	return nil
}
