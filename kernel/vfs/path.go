package vfs

import (
	"strings"

	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"
)

// Path grammar limits from spec.md §6: '/'-separated, components at most
// maxComponentLen bytes, the whole path at most maxPathLen bytes, NUL-free.
const (
	maxComponentLen = 32
	maxPathLen      = 256
)

var (
	errPathTooLong      = mkErr("path exceeds the maximum length")
	errComponentTooLong = mkErr("path component exceeds the maximum length")
	errPathHasNUL       = mkErr("path contains an embedded NUL byte")
)

// NormalizePath eliminates redundant separators, resolves "." and ".."
// textually (".." above the root is simply absorbed, mirroring shell
// behavior for an absolute path), and enforces the path grammar's length
// limits. The result always starts with "/" and never ends with one
// (except for the root path itself, "/").
func NormalizePath(in string) (string, *kernel.Error) {
	if len(in) > maxPathLen {
		return "", errPathTooLong
	}
	if strings.IndexByte(in, 0) >= 0 {
		return "", errPathHasNUL
	}

	var stack []string
	for _, comp := range strings.Split(in, "/") {
		switch comp {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			if len(comp) > maxComponentLen {
				return "", errComponentTooLong
			}
			stack = append(stack, comp)
		}
	}

	if len(stack) == 0 {
		return "/", nil
	}

	out := "/" + strings.Join(stack, "/")
	if len(out) > maxPathLen {
		return "", errPathTooLong
	}
	return out, nil
}

// splitFirst returns the first component of a normalized relative path and
// the remainder, or ("", "") if path is empty.
func splitFirst(path string) (string, string) {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return "", ""
	}
	if idx := strings.IndexByte(path, '/'); idx >= 0 {
		return path[:idx], path[idx+1:]
	}
	return path, ""
}
