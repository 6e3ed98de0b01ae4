package signaling

import (
	"bytes"
	"encoding/json"

	"screenlink/internal/model"
)

// MessageType is the "type" discriminator of every coordinator frame.
type MessageType string

const (
	TypeRegister             MessageType = "register"
	TypeRequestList          MessageType = "request-list"
	TypeList                 MessageType = "list"
	TypeRequestPairingCode   MessageType = "request-pairing-code"
	TypePairingCodeGenerated MessageType = "pairing-code-generated"
	TypeVerifyPairingCode    MessageType = "verify-pairing-code"
	TypePairingSuccess       MessageType = "pairing-success"
	TypePairingError         MessageType = "pairing-error"
	TypeConnectRequest       MessageType = "connect-request"
	TypeRelayOffer           MessageType = "relay-offer"
	TypeRelayAnswer          MessageType = "relay-answer"
	TypeRelayICECandidate    MessageType = "relay-ice-candidate"
	TypeSessionAssigned      MessageType = "session-assigned"
	TypePing                 MessageType = "ping"
	TypePong                 MessageType = "pong"
)

// ClientMessage is the union of every inbound frame's fields.
type ClientMessage struct {
	Type               MessageType     `json:"type"`
	DisplayName        string          `json:"displayName,omitempty"`
	DeviceClass        string          `json:"deviceClass,omitempty"`
	DeclaredResolution string          `json:"declaredResolution,omitempty"`
	Code               string          `json:"code,omitempty"`
	TargetID           string          `json:"targetId,omitempty"`
	Payload            json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage covers every outbound frame except list and relayed
// negotiation messages, which have their own encoders.
type ServerMessage struct {
	Type            MessageType `json:"type"`
	SessionID       string      `json:"sessionId,omitempty"`
	Code            string      `json:"code,omitempty"`
	TargetSessionID string      `json:"targetSessionId,omitempty"`
	FromID          string      `json:"fromId,omitempty"`
	Message         string      `json:"message,omitempty"`
	ExpiresAt       int64       `json:"expiresAt,omitempty"`
}

type listMessage struct {
	Type    MessageType     `json:"type"`
	Devices []model.Session `json:"devices"`
}

func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	err := json.Unmarshal(data, &msg)
	return msg, err
}

func Encode(msg ServerMessage) []byte {
	out, _ := json.Marshal(msg)
	return out
}

func EncodeList(sessions []model.Session) []byte {
	if sessions == nil {
		sessions = []model.Session{}
	}
	out, _ := json.Marshal(listMessage{Type: TypeList, Devices: sessions})
	return out
}

// EncodeRelay writes the payload verbatim. json.Marshal would compact
// and HTML-escape a RawMessage, which changes its bytes.
func EncodeRelay(kind Kind, fromSessionID string, payload json.RawMessage) []byte {
	from, _ := json.Marshal(fromSessionID)

	var buf bytes.Buffer
	buf.WriteString(`{"type":"`)
	buf.WriteString(string(kind.MessageType()))
	buf.WriteString(`","fromId":`)
	buf.Write(from)
	buf.WriteString(`,"payload":`)
	if len(payload) == 0 {
		buf.WriteString("null")
	} else {
		buf.Write(payload)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}
