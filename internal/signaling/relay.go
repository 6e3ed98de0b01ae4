// Package signaling defines the coordinator's wire messages and the
// store-nothing relay that forwards negotiation payloads between two
// sessions.
//
// Relaying is best-effort by contract: when the target session is not in
// the registry the message is dropped and the sender is told nothing.
// Retrying negotiation is the endpoints' job. Pairing, by contrast, is
// confirmable and always answers the requester.
package signaling

import (
	"encoding/json"
	"log/slog"

	"screenlink/internal/model"
)

type Kind string

const (
	KindOffer        Kind = "offer"
	KindAnswer       Kind = "answer"
	KindICECandidate Kind = "ice-candidate"
)

func (k Kind) MessageType() MessageType {
	switch k {
	case KindOffer:
		return TypeRelayOffer
	case KindAnswer:
		return TypeRelayAnswer
	case KindICECandidate:
		return TypeRelayICECandidate
	default:
		return ""
	}
}

// KindFor maps an inbound relay-* message type to its envelope kind.
func KindFor(t MessageType) (Kind, bool) {
	switch t {
	case TypeRelayOffer:
		return KindOffer, true
	case TypeRelayAnswer:
		return KindAnswer, true
	case TypeRelayICECandidate:
		return KindICECandidate, true
	default:
		return "", false
	}
}

// Envelope is one negotiation message. Payload is opaque and forwarded
// byte-for-byte.
type Envelope struct {
	Kind          Kind
	FromSessionID string
	ToSessionID   string
	Payload       json.RawMessage
}

// Directory answers whether a session is reachable.
type Directory interface {
	Get(sessionID string) (model.Session, bool)
}

// Deliverer enqueues a frame on a session's outbound channel.
type Deliverer interface {
	Send(sessionID string, message []byte) bool
}

type Relay struct {
	directory Directory
	out       Deliverer
	logger    *slog.Logger
}

func NewRelay(directory Directory, out Deliverer, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{directory: directory, out: out, logger: logger}
}

// Relay forwards env to its target and reports whether it was queued.
// The result is for the coordinator's bookkeeping only; it is never
// surfaced to the sender.
func (r *Relay) Relay(env Envelope) bool {
	if env.Kind.MessageType() == "" {
		r.logger.Debug("relay: unknown kind", "kind", env.Kind)
		return false
	}
	return r.forward(env.ToSessionID, EncodeRelay(env.Kind, env.FromSessionID, env.Payload))
}

// ConnectRequest tells toSessionID that fromSessionID wants to connect.
func (r *Relay) ConnectRequest(fromSessionID, toSessionID string) bool {
	return r.forward(toSessionID, Encode(ServerMessage{Type: TypeConnectRequest, FromID: fromSessionID}))
}

func (r *Relay) forward(to string, frame []byte) bool {
	if to == "" {
		return false
	}
	if _, ok := r.directory.Get(to); !ok {
		r.logger.Debug("relay: target not registered, dropping", "to", to)
		return false
	}
	if !r.out.Send(to, frame) {
		r.logger.Debug("relay: target has no writable connection, dropping", "to", to)
		return false
	}
	return true
}
