package radio

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// Vendor IDs of USB-serial bridges found on supported Meshtastic
// boards (espressif, CP210x, CH340, RAK, Adafruit).
var supportedVendorIDs = map[string]string{
	"10C4": "Silicon Labs CP210x",
	"1A86": "QinHeng CH340",
	"303A": "Espressif",
	"239A": "Adafruit",
	"2886": "Seeed",
	"1915": "Nordic Semiconductor",
}

// PortInfo describes a detected serial port.
type PortInfo struct {
	Name      string
	VendorID  string
	ProductID string
	Serial    string
	Vendor    string
	Supported bool
}

// ScanPorts enumerates serial ports and flags the ones whose USB
// vendor ID matches a known Meshtastic board family.
func ScanPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}

	out := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		info := PortInfo{Name: p.Name}
		if p.IsUSB {
			info.VendorID = strings.ToUpper(p.VID)
			info.ProductID = strings.ToUpper(p.PID)
			info.Serial = p.SerialNumber
			if vendor, ok := supportedVendorIDs[info.VendorID]; ok {
				info.Vendor = vendor
				info.Supported = true
			}
		}
		out = append(out, info)
	}
	return out, nil
}
