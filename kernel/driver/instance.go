package driver

import (
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/sync"
)

// InstanceID identifies a driver instance as an index into the instance
// table, the same arena-of-index-identifiers convention kernel/sched uses
// for TaskID, per spec.md §9's design note on intrusive pointer graphs.
type InstanceID int

const noInstance InstanceID = -1

// MaxInstances bounds the instance table.
const MaxInstances = 64

// Instance is a driver instance: a live, named object created from a
// registered TypeInfo.
type Instance struct {
	ID      InstanceID
	Name    string
	Version string
	TypeTag string
	State   State

	// Private is the instance's private-data blob, sized by its type's
	// PrivateDataSize and owned by that type's Init/Cleanup ops.
	Private []byte

	ops  *OpVTable
	Type *TypeInfo
}

var (
	instLock      sync.Spinlock
	instanceTable [MaxInstances]*Instance
)

// Create allocates a new, Unloaded instance of the given type. name must be
// unique across all live instances.
func Create(typeTag, name string) (InstanceID, *kernel.Error) {
	t := LookupType(typeTag)
	if t == nil {
		return noInstance, errUnknownType
	}

	instLock.Acquire()
	defer instLock.Release()

	slot := -1
	for i, inst := range instanceTable {
		if inst != nil && inst.Name == name {
			return noInstance, errDuplicateName
		}
		if inst == nil && slot == -1 {
			slot = i
		}
	}
	if slot == -1 {
		return noInstance, errNoFreeSlot
	}

	inst := &Instance{
		ID:      InstanceID(slot),
		Name:    name,
		TypeTag: typeTag,
		State:   Unloaded,
		Private: make([]byte, t.PrivateDataSize),
		ops:     t.Ops,
		Type:    t,
	}
	instanceTable[slot] = inst
	return inst.ID, nil
}

// Lookup returns the instance with the given id, or nil.
func Lookup(id InstanceID) *Instance {
	instLock.Acquire()
	defer instLock.Release()
	if id < 0 || int(id) >= len(instanceTable) {
		return nil
	}
	return instanceTable[id]
}

// LookupByName returns the instance with the given name, or nil.
func LookupByName(name string) *Instance {
	instLock.Acquire()
	defer instLock.Release()
	for _, inst := range instanceTable {
		if inst != nil && inst.Name == name {
			return inst
		}
	}
	return nil
}

// LookupByType returns the first live instance of the given type, or nil.
func LookupByType(typeTag string) *Instance {
	instLock.Acquire()
	defer instLock.Release()
	for _, inst := range instanceTable {
		if inst != nil && inst.TypeTag == typeTag {
			return inst
		}
	}
	return nil
}

// Init transitions an instance Unloaded→Loading→Loaded, calling its type's
// Init op with cfg. A failed Init leaves the instance in Error.
func Init(id InstanceID, cfg []byte) *kernel.Error {
	inst := Lookup(id)
	if inst == nil {
		return errUnknownInstance
	}
	if inst.State != Unloaded {
		return errBadTransition
	}

	inst.State = Loading
	if inst.ops == nil || inst.ops.Init == nil {
		inst.State = Loaded
		return nil
	}
	if err := inst.ops.Init(inst, cfg); err != nil {
		inst.State = Error
		return err
	}
	inst.State = Loaded
	return nil
}

// Start transitions an instance Loaded→Active, calling its type's Start op.
func Start(id InstanceID) *kernel.Error {
	inst := Lookup(id)
	if inst == nil {
		return errUnknownInstance
	}
	if inst.State != Loaded {
		return errBadTransition
	}

	if inst.ops != nil && inst.ops.Start != nil {
		if err := inst.ops.Start(inst); err != nil {
			inst.State = Error
			return err
		}
	}
	inst.State = Active
	return nil
}

// Stop transitions an instance Active→Loaded, calling its type's Stop op.
func Stop(id InstanceID) *kernel.Error {
	inst := Lookup(id)
	if inst == nil {
		return errUnknownInstance
	}
	if inst.State != Active {
		return errBadTransition
	}

	if inst.ops != nil && inst.ops.Stop != nil {
		if err := inst.ops.Stop(inst); err != nil {
			inst.State = Error
			return err
		}
	}
	inst.State = Loaded
	return nil
}

// Destroy stops the instance if Active, calls its type's Cleanup op, then
// removes it from the table and frees its private data.
func Destroy(id InstanceID) *kernel.Error {
	inst := Lookup(id)
	if inst == nil {
		return errUnknownInstance
	}

	if inst.State == Active {
		if err := Stop(id); err != nil {
			return err
		}
	}

	if inst.ops != nil && inst.ops.Cleanup != nil {
		if err := inst.ops.Cleanup(inst); err != nil {
			inst.State = Error
			return err
		}
	}

	instLock.Acquire()
	inst.Private = nil
	instanceTable[id] = nil
	instLock.Release()
	return nil
}

// Ioctl dispatches a device-specific control request. Valid only while the
// instance is Active, per spec.md §4.10.
func Ioctl(id InstanceID, cmd uint32, arg uintptr) (int32, *kernel.Error) {
	inst := Lookup(id)
	if inst == nil {
		return 0, errUnknownInstance
	}
	if inst.State != Active {
		return 0, errIoctlNotActive
	}
	if inst.ops == nil || inst.ops.Ioctl == nil {
		return 0, errNoIoctl
	}
	return inst.ops.Ioctl(inst, cmd, arg)
}

// LoadData offers a validator-gated path for file-backed configuration
// blobs. When the instance's type declares a ValidateData hook, the blob
// must be at least as long as the 32-bit magic preamble and be accepted by
// that hook before it reaches the instance's own LoadData op; without a hook
// the blob is passed through unchecked.
func LoadData(id InstanceID, data []byte) *kernel.Error {
	inst := Lookup(id)
	if inst == nil {
		return errUnknownInstance
	}
	if inst.ops == nil || inst.ops.LoadData == nil {
		return errNoLoadData
	}
	if inst.Type.ValidateData != nil {
		if len(data) < magicPreambleLen {
			return errDataTooShort
		}
		if !inst.Type.ValidateData(data) {
			return errDataRejected
		}
	}
	return inst.ops.LoadData(inst, data)
}
