package model

import (
	"strings"
	"time"
)

type DeviceClass string

const (
	DeviceMac     DeviceClass = "mac"
	DeviceWindows DeviceClass = "windows"
	DeviceLinux   DeviceClass = "linux"
	DeviceAndroid DeviceClass = "android"
	DeviceIOS     DeviceClass = "ios"
	DeviceUnknown DeviceClass = "unknown"
)

// ParseDeviceClass maps a client-declared class to the enumeration.
// Anything unrecognized becomes DeviceUnknown.
func ParseDeviceClass(raw string) DeviceClass {
	switch DeviceClass(strings.ToLower(strings.TrimSpace(raw))) {
	case DeviceMac, "macos", "darwin":
		return DeviceMac
	case DeviceWindows, "win":
		return DeviceWindows
	case DeviceLinux:
		return DeviceLinux
	case DeviceAndroid:
		return DeviceAndroid
	case DeviceIOS, "ipados":
		return DeviceIOS
	default:
		return DeviceUnknown
	}
}

type SessionState string

const (
	StateAvailable      SessionState = "available"
	StatePairingPending SessionState = "pairing-pending"
	StateConnected      SessionState = "connected"
)

// DeviceInfo is what a client declares about itself in a register
// message. None of it is verified.
type DeviceInfo struct {
	DisplayName        string
	DeviceClass        DeviceClass
	DeclaredResolution string
}

// Session is one live connection to the coordinator. The JSON shape is
// the one broadcast in list snapshots.
type Session struct {
	ID                 string       `json:"id"`
	DisplayName        string       `json:"name"`
	DeviceClass        DeviceClass  `json:"type"`
	State              SessionState `json:"status"`
	DeclaredResolution string       `json:"resolution,omitempty"`
	ConnectedAt        time.Time    `json:"-"`
}

// PairingCode is a bearer, single-use credential bound to the display
// session that requested it.
type PairingCode struct {
	Code           string
	OwnerSessionID string
	IssuedAt       time.Time
	ExpiresAt      time.Time
}
