package device

import (
	"io"

	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"
)

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver. Log output describing the
	// init attempt is written to w.
	DriverInit(w io.Writer) *kernel.Error
}

// DetectOrder specifies when a driver's probe routine should run relative to
// other drivers during HAL bring-up. Lower values run first.
type DetectOrder uint8

const (
	// DetectOrderEarly runs before ACPI tables are available (e.g. legacy
	// 8250 UART, PS/2 controller detection).
	DetectOrderEarly DetectOrder = iota

	// DetectOrderBeforeACPI runs after early detection but before the ACPI
	// MADT is consulted.
	DetectOrderBeforeACPI

	// DetectOrderACPI runs once ACPI tables (MADT, etc) are parsed and
	// available to the driver's probe routine.
	DetectOrderACPI

	// DetectOrderLast runs after every other detection order.
	DetectOrderLast
)

// ProbeFn attempts to detect a piece of hardware and returns a Driver
// instance bound to it, or nil if the hardware is not present.
type ProbeFn func() Driver

// DriverInfo is the registration record for a driver *type*. It pairs a
// probe function (invoked by the HAL during bring-up) with a detection
// order used to sequence probing across the whole driver set.
type DriverInfo struct {
	// Order controls when Probe is invoked relative to other registered
	// drivers.
	Order DetectOrder

	// Probe attempts to detect and initialize the underlying hardware. It
	// returns a Driver instance when detection succeeds or nil otherwise.
	Probe ProbeFn
}

// DriverInfoList implements sort.Interface so that registered drivers can be
// probed in DetectOrder order.
type DriverInfoList []*DriverInfo

// Len implements sort.Interface.
func (l DriverInfoList) Len() int { return len(l) }

// Less implements sort.Interface.
func (l DriverInfoList) Less(i, j int) bool { return l[i].Order < l[j].Order }

// Swap implements sort.Interface.
func (l DriverInfoList) Swap(i, j int) { l[i], l[j] = l[j], l[i] }

// registeredDrivers holds the set of driver types registered via
// RegisterDriver. Drivers register themselves from an init() function in
// their own package so the HAL never needs to import concrete driver
// packages directly.
var registeredDrivers DriverInfoList

// RegisterDriver appends a driver type registration to the global driver
// list. It is typically called from a driver package's init() function.
func RegisterDriver(info *DriverInfo) {
	registeredDrivers = append(registeredDrivers, info)
}

// DriverList returns the list of registered driver types.
func DriverList() DriverInfoList {
	return registeredDrivers
}
