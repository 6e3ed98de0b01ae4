// Package agent is the loopback-agent bridge: a local WebSocket server
// the dashboard connects to, plus the dashboard-side client.
package agent

import (
	"encoding/json"
	"errors"
)

// DefaultPort is the well-known local port shared by the dashboard and
// the agent.
const DefaultPort = 9988

type MessageType string

const (
	TypeSimulateInput        MessageType = "simulate-input"
	TypeVirtualDisplayToggle MessageType = "virtual-display-toggle"
	TypePing                 MessageType = "ping"
	TypeGetInfo              MessageType = "get-info"

	TypeReady                MessageType = "ready"
	TypeInputResult          MessageType = "input-result"
	TypeVirtualDisplayResult MessageType = "virtual-display-result"
	TypePong                 MessageType = "pong"
	TypeInfo                 MessageType = "info"
)

// Message is the {type, payload} envelope of every text frame. ID is
// optional and echoed on input-result.
type Message struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Enabled *bool           `json:"enabled,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type togglePayload struct {
	Enabled *bool `json:"enabled"`
}

// toggleTarget reads enabled from the envelope or from the payload.
func (m Message) toggleTarget() (bool, error) {
	if m.Enabled != nil {
		return *m.Enabled, nil
	}
	if len(m.Payload) > 0 {
		var p togglePayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return false, err
		}
		if p.Enabled != nil {
			return *p.Enabled, nil
		}
	}
	return false, errors.New("virtual-display-toggle requires enabled")
}

func encode(t MessageType, id string, payload any) []byte {
	msg := Message{Type: t, ID: id}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			panic(err)
		}
		msg.Payload = raw
	}
	out, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}
	return out
}
