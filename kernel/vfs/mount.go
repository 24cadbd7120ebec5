package vfs

import (
	"strings"

	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"
)

// Flags is a mount-time option bitset.
type Flags uint32

const (
	// ReadOnly rejects any mutating vnode op under this mount.
	ReadOnly Flags = 1 << iota
	// Bind marks a mountEntry as redirecting to another mount's
	// superblock and relative path rather than owning its own.
	Bind
)

// UnmountFlags is an unmount-time option bitset. Only Force is currently
// interpreted; the word itself is carried through so a caller can pass
// other bits without the call failing, matching the source this spec was
// distilled from.
type UnmountFlags uint32

const (
	Force UnmountFlags = 1 << iota
)

type mountEntry struct {
	sb         *Superblock
	mountpoint string // normalized, no trailing slash except "/"
	source     string
	fsType     string
	flags      Flags
}

var mounts []*mountEntry

var (
	errMountBusy        = mkErr("mount point is busy (open files remain)")
	errRootUnmount      = mkErr("the root mount may never be unmounted")
	errNotMounted      = mkErr("no mount at that mount point")
	errNoBlockDevice   = mkErr("block device lookup hook not installed")
	errNoSourceMount   = mkErr("bind mount source is not resolvable")
)

// blockDeviceLookupFn resolves a source device name (e.g. "ata0p1") to a
// BlockDevice. Installed by kernel/blockio's Init.
var blockDeviceLookupFn func(name string) (BlockDevice, *kernel.Error)

// SetBlockDeviceLookup wires the block-I/O dispatcher's partition lookup
// into the VFS mount path.
func SetBlockDeviceLookup(fn func(name string) (BlockDevice, *kernel.Error)) {
	blockDeviceLookupFn = fn
}

// FindMountForPath scans for the longest mountpoint that is a prefix of p
// on path-component boundaries (never on a mid-component match), and
// returns that mount plus p's residual path relative to it. p must already
// be normalized.
func FindMountForPath(p string) (*mountEntry, string) {
	var best *mountEntry
	bestLen := -1

	for _, m := range mounts {
		if !isPrefixOnBoundary(m.mountpoint, p) {
			continue
		}
		if len(m.mountpoint) > bestLen {
			best = m
			bestLen = len(m.mountpoint)
		}
	}
	if best == nil {
		return nil, ""
	}

	rel := strings.TrimPrefix(p, best.mountpoint)
	rel = strings.TrimPrefix(rel, "/")
	return best, rel
}

// isPrefixOnBoundary reports whether mountpoint is a prefix of p that ends
// exactly at a '/' component boundary (or consumes the whole of p).
func isPrefixOnBoundary(mountpoint, p string) bool {
	if mountpoint == "/" {
		return true
	}
	if !strings.HasPrefix(p, mountpoint) {
		return false
	}
	rest := p[len(mountpoint):]
	return rest == "" || rest[0] == '/'
}

// Mount constructs a superblock for fsType over the device named source and
// attaches it at mountpoint.
func Mount(source, mountpoint, fsType string, flags Flags) *kernel.Error {
	norm, err := NormalizePath(mountpoint)
	if err != nil {
		return err
	}

	ft := LookupFSType(fsType)
	if ft == nil {
		return errUnknownFSType
	}
	if blockDeviceLookupFn == nil {
		return errNoBlockDevice
	}
	dev, err := blockDeviceLookupFn(source)
	if err != nil {
		return err
	}

	sb, err := ft.Mount(dev)
	if err != nil {
		return err
	}

	mounts = append(mounts, &mountEntry{sb: sb, mountpoint: norm, source: source, fsType: fsType, flags: flags})
	return nil
}

// BindMount redirects target to the superblock and relative path that
// source already resolves to. Binding onto a path that is itself a bind
// mount is allowed: the lookup below follows whatever mount currently
// covers source, which may itself have flags&Bind set.
func BindMount(source, target string, flags Flags) *kernel.Error {
	normSrc, err := NormalizePath(source)
	if err != nil {
		return err
	}
	normTgt, err := NormalizePath(target)
	if err != nil {
		return err
	}

	m, _ := FindMountForPath(normSrc)
	if m == nil {
		return errNoSourceMount
	}

	mounts = append(mounts, &mountEntry{
		sb: m.sb, mountpoint: normTgt, source: source, fsType: m.fsType,
		flags: flags | Bind,
	})
	return nil
}

// Unmount detaches the mount at mountpoint. It fails with EBUSY while any
// fd on that superblock is open, unless UnmountFlags has Force set. The
// root mount may never be unmounted.
func Unmount(mountpoint string, flags UnmountFlags) *kernel.Error {
	norm, err := NormalizePath(mountpoint)
	if err != nil {
		return err
	}
	if norm == "/" {
		return errRootUnmount
	}

	for i, m := range mounts {
		if m.mountpoint != norm {
			continue
		}
		if m.sb.openCount > 0 && flags&Force == 0 {
			return errMountBusy
		}
		if !isBind(m) && m.fsType != "" {
			if ft := LookupFSType(m.fsType); ft != nil && ft.Unmount != nil {
				if err := ft.Unmount(m.sb); err != nil {
					return err
				}
			}
		}
		mounts = append(mounts[:i], mounts[i+1:]...)
		return nil
	}
	return errNotMounted
}

func isBind(m *mountEntry) bool {
	return m.flags&Bind != 0
}
