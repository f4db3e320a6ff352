package oids

// This package centralizes the SNMP OIDs used by the query engine and the
// discovery scanner. Standard objects follow MIB-II, the Host Resources MIB
// (RFC 2790) and the Printer MIB (RFC 3805); vendor objects are grouped per
// enterprise number.

const (
	// --- MIB-II System ---

	// SysDescr reports a human-readable system description string.
	SysDescr = "1.3.6.1.2.1.1.1.0"
	// SysObjectID contains the authoritative enterprise OID for the device.
	SysObjectID = "1.3.6.1.2.1.1.2.0"
	SysUpTime   = "1.3.6.1.2.1.1.3.0"
	SysName     = "1.3.6.1.2.1.1.5.0"
)

const (
	// --- Host Resources MIB (RFC 2790) ---

	HrDeviceID = "1.3.6.1.2.1.25.3.2.1.1.1"
	// HrDeviceDescr points at HOST-RESOURCES-MIB::hrDeviceDescr.1
	HrDeviceDescr    = "1.3.6.1.2.1.25.3.2.1.3.1"
	HrDeviceFirmware = "1.3.6.1.2.1.25.3.2.1.4.1"
	HrDeviceStatus   = "1.3.6.1.2.1.25.3.2.1.5.1"

	// Printer status/error indicators. These align with hrPrinter tables.
	HrPrinterStatus             = "1.3.6.1.2.1.25.3.5.1.1.1"
	HrPrinterDetectedErrorState = "1.3.6.1.2.1.25.3.5.1.2.1"
)

const (
	// --- Printer MIB (RFC 3805) ---

	PrtGeneralPrinterName = "1.3.6.1.2.1.43.5.1.1.16.1"
	// PrtGeneralSerialNumber (prtGeneralSerialNumber.1) is the canonical serial.
	PrtGeneralSerialNumber = "1.3.6.1.2.1.43.5.1.1.17.1"
	// PrtMarkerLifeCount targets prtMarkerLifeCount.1.1 and is commonly treated as the page counter.
	PrtMarkerLifeCount  = "1.3.6.1.2.1.43.10.2.1.4.1.1"
	PrtAlertDescription = "1.3.6.1.2.1.43.18.1.1.8.1.1"

	// Supply table columns for marker 1 (append ".<index>" for a slot).
	PrtMarkerSuppliesType   = "1.3.6.1.2.1.43.11.1.1.5.1"
	PrtMarkerSuppliesDesc   = "1.3.6.1.2.1.43.11.1.1.6.1"
	PrtMarkerSuppliesMaxCap = "1.3.6.1.2.1.43.11.1.1.8.1"
	PrtMarkerSuppliesLevel  = "1.3.6.1.2.1.43.11.1.1.9.1"

	// Column roots used when walking the whole table (all markers).
	PrtMarkerSuppliesDescRoot   = "1.3.6.1.2.1.43.11.1.1.6"
	PrtMarkerSuppliesMaxCapRoot = "1.3.6.1.2.1.43.11.1.1.8"
	PrtMarkerSuppliesLevelRoot  = "1.3.6.1.2.1.43.11.1.1.9"

	// PrtSupplyLevelFirst is prtMarkerSuppliesLevel.1.1.
	PrtSupplyLevelFirst = "1.3.6.1.2.1.43.11.1.1.9.1.1"
)

// RFC 3805 sentinel values for prtMarkerSuppliesLevel / MaxCapacity.
const (
	SupplyLevelUnrestricted  = -1
	SupplyLevelUnknown       = -2
	SupplyLevelSomeRemaining = -3
)

// Discovery probe sets.
var (
	// BasicProbe is the three-object identity probe sent per community.
	BasicProbe = []string{SysDescr, SysName, HrDeviceDescr}
	// ExtendedProbe is attempted once a community answered the basic probe.
	ExtendedProbe = []string{
		PrtGeneralPrinterName,
		PrtGeneralSerialNumber,
		RicohMachineID,
		"1.3.6.1.4.1.367.3.2.1.2.19.1.0.1",
	}
)

const (
	// --- Brother (enterprise 2435) ---

	brotherInfo = "1.3.6.1.4.1.2435.2.3.9.4.2.1.5"

	// Super-OIDs returning multi-field binary buffers.
	BrotherMaintenance = brotherInfo + ".5.8.0"
	BrotherCounter     = brotherInfo + ".5.10.0"
	BrotherNextCare    = brotherInfo + ".5.11.0"

	BrotherStatus  = brotherInfo + ".4.11.0"
	BrotherError   = brotherInfo + ".5.9.0"
	BrotherWarning = brotherInfo + ".5.15.0"

	// Per-color scalar fallbacks. Black/cyan share the counter/next-care
	// objects on some firmware; decode tolerates both encodings.
	BrotherTonerBlack   = brotherInfo + ".5.10.0"
	BrotherTonerCyan    = brotherInfo + ".5.11.0"
	BrotherTonerMagenta = brotherInfo + ".5.12.0"
	BrotherTonerYellow  = brotherInfo + ".5.13.0"
	BrotherDrumLife     = brotherInfo + ".5.1.0"

	BrotherModelName   = brotherInfo + ".4.3.0"
	BrotherProductName = brotherInfo + ".4.4.0"
	BrotherAltModel    = brotherInfo + ".1.5.0"
	BrotherMainFW      = brotherInfo + ".5.17.0"
	BrotherSubFW       = brotherInfo + ".5.18.0"

	BrotherNCDeviceInfo = "1.3.6.1.4.1.2435.2.4.3.99.3.1.6.1.2.1"
	BrotherDeviceName   = "1.3.6.1.4.1.2435.2.4.3.99.1.1.2.1"

	BrotherInfoBranch    = brotherInfo + ".5"
	BrotherNCBranch      = "1.3.6.1.4.1.2435.2.4.3.99"
	BrotherModelBranch   = brotherInfo + ".4"
	BrotherGeneralBranch = brotherInfo + ".1"

	BrotherCartridgeSerialRoot = brotherInfo + ".4.101"
)

var (
	// BrotherFirmwareBranches are walked in order looking for a version token.
	BrotherFirmwareBranches = []string{BrotherInfoBranch, BrotherNCBranch, BrotherModelBranch}
	// BrotherSerialOIDs are tried in priority order.
	BrotherSerialOIDs = []string{
		PrtGeneralSerialNumber,
		brotherInfo + ".1.1.0",
		brotherInfo + ".4.1.0",
		brotherInfo + ".4.5.0",
		BrotherNCDeviceInfo,
	}
	BrotherSerialBranches = []string{BrotherModelBranch, BrotherGeneralBranch}
	// BrotherModelOIDs are read when sysDescr only names the NC network card.
	BrotherModelOIDs = []string{
		BrotherNCDeviceInfo,
		BrotherProductName,
		BrotherModelName,
		BrotherDeviceName,
		HrDeviceDescr,
		PrtGeneralPrinterName,
		BrotherAltModel,
	}
)

const (
	// --- Ricoh (enterprise 367) ---

	RicohTonerRemaining = "1.3.6.1.4.1.367.3.2.1.2.24.1.1.5.1"
	RicohTonerStatus    = "1.3.6.1.4.1.367.3.2.1.2.24.1.1.3.1"
	RicohMachineID      = "1.3.6.1.4.1.367.3.2.1.2.1.4.0"
	RicohSerialNumber   = "1.3.6.1.4.1.367.3.2.1.2.1.5.0"
	RicohFirmware       = "1.3.6.1.4.1.367.3.2.1.2.1.3.0"

	RicohCartridgeSerialRoot = "1.3.6.1.4.1.367.3.2.1.2.24.1.1.6"
)

var RicohFirmwareBranches = []string{
	"1.3.6.1.4.1.367.3.2.1.2.1",
	"1.3.6.1.4.1.367.3.2.1.1",
	"1.3.6.1.4.1.367.3.2.1.2.24.1.1",
	"1.3.6.1.4.1.367.1.2.1.1",
}

const (
	// --- Pantum (enterprise 20540) ---

	PantumRoot             = "1.3.6.1.4.1.20540"
	PantumTonerLevels      = "1.3.6.1.4.1.20540.2.1.1.1.5"
	PantumTonerStatus      = "1.3.6.1.4.1.20540.2.1.1.1.4"
	PantumTonerDescription = "1.3.6.1.4.1.20540.2.1.1.1.2"
	PantumSerial           = "1.3.6.1.4.1.20540.1.2.2.1.3.1"
	PantumSerialAlt        = "1.3.6.1.4.1.20540.1.3.1.1.2.1"
	PantumFirmware         = "1.3.6.1.4.1.20540.1.1.1.1.2.1"
	PantumFirmwareAlt      = "1.3.6.1.4.1.20540.1.2.1.1.3.1"

	PantumCartridgeSerialRoot = "1.3.6.1.4.1.20540.2.1.1.1.6"
)
