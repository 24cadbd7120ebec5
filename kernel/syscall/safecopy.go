package syscall

import (
	"unsafe"

	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem/vmm"
)

// ValidateUser rejects a null pointer, a range that crosses the
// kernel/user split, an overflowing range, or a range containing any page
// that is not present and user-accessible (and, when write is true, not
// writable).
func ValidateUser(ptr uintptr, size uintptr, write bool) bool {
	if ptr == 0 || size == 0 {
		return false
	}
	end := ptr + size
	if end < ptr { // overflow
		return false
	}
	if end > vmm.UserSpaceSplit {
		return false
	}

	need := vmm.FlagPresent | vmm.FlagUserAccessible
	if write {
		need |= vmm.FlagRW
	}

	start := ptr &^ (uintptr(mem.PageSize) - 1)
	for page := start; page < end; page += uintptr(mem.PageSize) {
		flags, err := vmm.GetPageFlags(page)
		if err != nil || flags&need != need {
			return false
		}
	}
	return true
}

// CopyFromUser copies n bytes from the validated user range usrc into the
// kernel buffer kdst. It returns the number of bytes copied, or a negative
// Errno if the range fails validation.
func CopyFromUser(kdst []byte, usrc uintptr, n uintptr) (int, Errno) {
	if !ValidateUser(usrc, n, false) {
		return 0, EFAULT
	}
	src := (*[1 << 30]byte)(unsafe.Pointer(usrc))[:n:n]
	copy(kdst, src)
	return int(n), 0
}

// CopyToUser copies n bytes from the kernel buffer ksrc into the validated
// user range udst. It returns the number of bytes copied, or a negative
// Errno if the range fails validation.
func CopyToUser(udst uintptr, ksrc []byte, n uintptr) (int, Errno) {
	if !ValidateUser(udst, n, true) {
		return 0, EFAULT
	}
	dst := (*[1 << 30]byte)(unsafe.Pointer(udst))[:n:n]
	copy(dst, ksrc)
	return int(n), 0
}

// CopyStringFromUser copies a NUL-terminated string of at most max bytes
// (including the terminator) from usrc into kdst. It returns the number of
// bytes copied (excluding the NUL), or a negative Errno.
func CopyStringFromUser(kdst []byte, usrc uintptr, max uintptr) (int, Errno) {
	if !ValidateUser(usrc, max, false) {
		return 0, EFAULT
	}
	src := (*[1 << 30]byte)(unsafe.Pointer(usrc))[:max:max]
	for i := uintptr(0); i < max; i++ {
		if src[i] == 0 {
			copy(kdst, src[:i])
			return int(i), 0
		}
	}
	return 0, EINVAL
}
