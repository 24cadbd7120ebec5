package vfs

import "github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"

// ResolveFlags controls how the last path component (and any symlinks
// encountered along the way) are handled.
type ResolveFlags uint32

const (
	// NoFollow stops following a symlink on the last component: the
	// symlink vnode itself is returned rather than its target.
	NoFollow ResolveFlags = 1 << iota
	// Beneath forbids the resolved path from escaping the starting
	// filesystem root via ".." or a symlink target that leaves it.
	Beneath
)

// maxSymlinkDepth bounds resolution to prevent symlink loops.
const maxSymlinkDepth = 8

var (
	errSymlinkLoop  = mkErr("too many levels of symbolic links")
	errENOENT       = mkErr("no such file or directory")
	errNotDirectory = mkErr("a path component is not a directory")
	errBeneathEscape = mkErr("resolved path escapes the starting filesystem root")
)

// ResolvePathToVnode walks relpath's components from sb's root, following
// the vtable's Lookup at each step. relpath must already be normalized and
// relative (no leading "/").
func ResolvePathToVnode(sb *Superblock, relpath string, flags ResolveFlags) (Vnode, *kernel.Error) {
	return resolveFrom(sb.RootVnode, relpath, flags, 0)
}

func resolveFrom(root Vnode, relpath string, flags ResolveFlags, depth int) (Vnode, *kernel.Error) {
	cur := root
	remaining := relpath

	for {
		comp, rest := splitFirst(remaining)
		if comp == "" {
			return cur, nil
		}

		if comp == ".." && flags&Beneath != 0 && remaining == relpath {
			// Only meaningful at the very start of a Beneath resolution;
			// NormalizePath has already collapsed interior "..".
			return nil, errBeneathEscape
		}

		next, err := cur.Lookup(comp)
		if err != nil {
			return nil, errENOENT
		}

		isLast := rest == ""
		attr, err := next.Getattr()
		if err != nil {
			return nil, err
		}

		if attr.Kind == KindSymlink && !(isLast && flags&NoFollow != 0) {
			if depth >= maxSymlinkDepth {
				return nil, errSymlinkLoop
			}
			target, err := next.Readlink()
			if err != nil {
				return nil, err
			}
			if flags&Beneath != 0 && len(target) > 0 && target[0] == '/' {
				return nil, errBeneathEscape
			}

			norm, err := NormalizePath(target)
			if err != nil {
				return nil, err
			}
			// A relative target resolves against the symlink's own
			// containing directory (cur, not yet reassigned to next);
			// only an absolute target resolves against the filesystem
			// root.
			base := root
			if len(target) > 0 && target[0] != '/' {
				base = cur
			}
			resolved, err := resolveFrom(base, trimLeadingSlash(norm), flags, depth+1)
			if err != nil {
				return nil, err
			}
			if isLast {
				return resolved, nil
			}
			cur = resolved
			remaining = rest
			continue
		}

		if !isLast && attr.Kind != KindDir {
			return nil, errNotDirectory
		}

		cur = next
		remaining = rest
	}
}

func trimLeadingSlash(p string) string {
	if len(p) > 0 && p[0] == '/' {
		return p[1:]
	}
	return p
}
