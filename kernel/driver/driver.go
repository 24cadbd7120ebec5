// Package driver implements the generic driver framework: registration of
// driver types (templates) and the life-cycle management of driver
// instances created from them, per spec.md §4.10.
package driver

import (
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/sync"
)

// State is a driver instance's life-cycle state.
type State uint8

const (
	// Unloaded is the state of a freshly created instance.
	Unloaded State = iota
	// Loading is set for the duration of Init.
	Loading
	// Loaded is reached once Init succeeds; Start may be called.
	Loaded
	// Active is reached once Start succeeds; ioctl is only valid here.
	Active
	// Error is entered from any state when an operation fails.
	Error
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Active:
		return "active"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// OpVTable is the set of operations a driver type implements. Any of them
// may be nil: a nil lifecycle op (Init, Start, Stop, Cleanup) is skipped and
// its state transition still takes place, while Ioctl and LoadData calls on
// an instance whose type lacks the op fail with an error.
type OpVTable struct {
	// Init prepares the instance's private data from cfg. Called once,
	// during the Unloaded→Loading→Loaded transition.
	Init func(inst *Instance, cfg []byte) *kernel.Error

	// Start brings the instance into active service. Called during the
	// Loaded→Active transition.
	Start func(inst *Instance) *kernel.Error

	// Stop takes the instance out of active service. Called during the
	// Active→Loaded transition.
	Stop func(inst *Instance) *kernel.Error

	// Cleanup releases any resources Init/Start acquired. Called once,
	// from Destroy, before the instance is removed from the table.
	Cleanup func(inst *Instance) *kernel.Error

	// Ioctl services a device-specific control request. Only ever called
	// while the instance is Active.
	Ioctl func(inst *Instance, cmd uint32, arg uintptr) (int32, *kernel.Error)

	// LoadData accepts a validated, file-backed configuration blob (e.g. a
	// keyboard layout). Called only after the type's ValidateData hook
	// has accepted the blob's magic preamble.
	LoadData func(inst *Instance, data []byte) *kernel.Error
}

// TypeInfo is a registered driver type: a template Create builds instances
// from.
type TypeInfo struct {
	// Tag uniquely identifies the type (e.g. "ata-pio", "kbd-layout").
	Tag string

	// Name is a human-readable description of the type.
	Name string

	// Ops is the default operation vtable every instance of this type is
	// given at creation time.
	Ops *OpVTable

	// PrivateDataSize is the size, in bytes, of the private-data blob
	// allocated for each instance of this type.
	PrivateDataSize uint32

	// ValidateData, if non-nil, is consulted by LoadData before handing a
	// blob to the instance's own LoadData op: it must accept the blob's
	// leading 32-bit magic preamble or the load is rejected outright.
	ValidateData func(data []byte) bool
}

const magicPreambleLen = 4

var (
	errUnknownType      = &kernel.Error{Module: "driver", Message: "unknown driver type"}
	errDuplicateType    = &kernel.Error{Module: "driver", Message: "driver type already registered"}
	errDuplicateName    = &kernel.Error{Module: "driver", Message: "instance name already in use"}
	errUnknownInstance  = &kernel.Error{Module: "driver", Message: "unknown driver instance"}
	errBadTransition    = &kernel.Error{Module: "driver", Message: "invalid state transition"}
	errNoFreeSlot       = &kernel.Error{Module: "driver", Message: "no free instance slot"}
	errIoctlNotActive   = &kernel.Error{Module: "driver", Message: "ioctl requires an active instance"}
	errNoIoctl          = &kernel.Error{Module: "driver", Message: "driver type does not implement ioctl"}
	errNoLoadData       = &kernel.Error{Module: "driver", Message: "driver type does not implement load_data"}
	errDataTooShort     = &kernel.Error{Module: "driver", Message: "data blob shorter than the magic preamble"}
	errDataRejected     = &kernel.Error{Module: "driver", Message: "data blob rejected by validator"}
)

var (
	regLock        sync.Spinlock
	registeredTypes = map[string]*TypeInfo{}
)

// RegisterType registers a driver type template. Typically called from a
// driver package's init() function, mirroring device.RegisterDriver.
func RegisterType(info *TypeInfo) *kernel.Error {
	regLock.Acquire()
	defer regLock.Release()

	if _, exists := registeredTypes[info.Tag]; exists {
		return errDuplicateType
	}
	registeredTypes[info.Tag] = info
	return nil
}

// LookupType returns the registered type with the given tag, or nil.
func LookupType(tag string) *TypeInfo {
	regLock.Acquire()
	defer regLock.Release()
	return registeredTypes[tag]
}
