package storage

import (
	"errors"
	"time"

	"printwatch/agent/scanner/vendor"
)

// ErrNotFound is returned when no printer matches the lookup.
var ErrNotFound = errors.New("printer not found")

// Maintenance log entry types.
const (
	LogTypeTonerReplacement = "toner replacement"
	LogTypeFirmwareUpdate   = "firmware update"
	LogTypeRepair           = "repair"
	LogTypeCheckup          = "checkup"
)

const performedBySystem = "system (SNMP auto-detected)"

// Printer is the persisted snapshot of the last successful query.
type Printer struct {
	ID                string                          `json:"id"`
	IP                string                          `json:"ip"`
	Brand             string                          `json:"brand"`
	Model             string                          `json:"model"`
	Hostname          string                          `json:"hostname"`
	Serial            string                          `json:"serial"`
	Firmware          string                          `json:"firmware"`
	Status            string                          `json:"status"`
	Faults            []string                        `json:"errors"`
	Levels            map[string]int                  `json:"levels"`
	LevelsUnavailable bool                            `json:"levelsUnavailable,omitempty"`
	CartridgeInfo     map[string]vendor.CartridgeInfo `json:"cartridgeInfo,omitempty"`
	PageCount         *int                            `json:"pageCount,omitempty"`
	LastStatusUpdate  time.Time                       `json:"lastStatusUpdate"`
	LastMaintenance   *time.Time                      `json:"lastMaintenance,omitempty"`
	CreatedAt         time.Time                       `json:"createdAt"`
}

// MaintenanceLog records a consumable swap, firmware change or manual entry.
type MaintenanceLog struct {
	ID          string    `json:"id"`
	PrinterID   string    `json:"printerId"`
	Type        string    `json:"type"`
	Color       string    `json:"color,omitempty"`
	Description string    `json:"description"`
	Notes       string    `json:"notes,omitempty"`
	PerformedBy string    `json:"performedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
