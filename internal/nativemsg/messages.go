package nativemsg

import (
	"encoding/json"

	"screenlink/internal/bridge"
)

type MessageType string

const (
	TypeInput MessageType = "input"
	TypePing  MessageType = "ping"

	TypeReady    MessageType = "ready"
	TypeResponse MessageType = "response"
	TypePong     MessageType = "pong"
)

// Request is what the extension sends.
type Request struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Reply is what the host sends. Fields are flat: ready carries the host
// summary, response carries success and error.
type Reply struct {
	Type MessageType `json:"type"`
	ID   string      `json:"id,omitempty"`

	Version        string `json:"version,omitempty"`
	Platform       string `json:"platform,omitempty"`
	RobotAvailable *bool  `json:"robotAvailable,omitempty"`

	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

func readyReply(r bridge.ReadyInfo) Reply {
	available := r.RobotAvailable
	return Reply{Type: TypeReady, Version: r.Version, Platform: r.Platform, RobotAvailable: &available}
}

func responseReply(id string, success bool, errMsg string) Reply {
	return Reply{Type: TypeResponse, ID: id, Success: &success, Error: errMsg}
}
