// Package coordinator is the composition root that owns the device
// registry, the pairing manager and the signaling relay, and applies
// every inbound coordinator frame to them.
//
// All shared state lives behind the owning components' own locks.
// stateMu makes each "look at codes and links, then move the session
// state" step atomic; broadcastMu serializes snapshot broadcasts so
// clients never see an older list after a newer one. Socket writes never
// happen under either: frames are queued on per-session writers and
// drained elsewhere.
package coordinator

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"screenlink/internal/clock"
	"screenlink/internal/hub"
	"screenlink/internal/metrics"
	"screenlink/internal/model"
	"screenlink/internal/pairing"
	"screenlink/internal/registry"
	"screenlink/internal/signaling"
)

// Limiter gates verify attempts per session. If it also has a
// Forget(key string) method, the session's counter is dropped on
// disconnect.
type Limiter interface {
	Allow(key string) bool
}

type forgetter interface {
	Forget(key string)
}

type Options struct {
	Clock              clock.Clock
	Rand               io.Reader
	CodeTTL            time.Duration
	MaxCodesPerSession int
	VerifyLimiter      Limiter
	Metrics            *metrics.Metrics
	Logger             *slog.Logger
	// NewSessionID overrides uuid generation; tests use it for stable ids.
	NewSessionID func() string
}

type Coordinator struct {
	registry *registry.Registry
	pairing  *pairing.Manager
	relay    *signaling.Relay
	hub      *hub.Hub

	limiter Limiter
	metrics *metrics.Metrics
	logger  *slog.Logger
	newID   func() string

	stateMu     sync.Mutex
	broadcastMu sync.Mutex

	linksMu sync.Mutex
	links   map[string]map[string]struct{}
}

// Peer is the coordinator's handle on one connected session.
type Peer struct {
	ID   string
	conn *hub.Connection
}

func New(opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewSessionID == nil {
		opts.NewSessionID = uuid.NewString
	}

	c := &Coordinator{
		registry: registry.NewWithClock(opts.Clock),
		hub:      hub.New(),
		limiter:  opts.VerifyLimiter,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		newID:    opts.NewSessionID,
		links:    make(map[string]map[string]struct{}),
	}
	c.relay = signaling.NewRelay(c.registry, c.hub, opts.Logger)
	c.pairing = pairing.New(pairing.Options{
		Clock:            opts.Clock,
		Rand:             opts.Rand,
		TTL:              opts.CodeTTL,
		MaxCodesPerOwner: opts.MaxCodesPerSession,
		OnExpire:         c.codeExpired,
	})
	return c
}

func (c *Coordinator) Metrics() *metrics.Metrics { return c.metrics }

// Sessions returns the current registry snapshot.
func (c *Coordinator) Sessions() []model.Session { return c.registry.List() }

// Connect admits a new session whose outbound frames go to w. The
// session is immediately reachable, learns its id, and every client
// receives a fresh snapshot.
func (c *Coordinator) Connect(w hub.Writer) *Peer {
	id := c.newID()
	conn := &hub.Connection{SessionID: id, Writer: w}
	c.hub.Register(conn)
	c.registry.Register(id, model.DeviceInfo{DeviceClass: model.DeviceUnknown})

	c.metrics.TotalConnections.Add(1)
	c.metrics.ActiveConnections.Add(1)
	c.logger.Info("session connected", "session", id)

	c.hub.Send(id, signaling.Encode(signaling.ServerMessage{Type: signaling.TypeSessionAssigned, SessionID: id}))
	c.broadcastList()
	return &Peer{ID: id, conn: conn}
}

// Disconnect tears the session down synchronously: its codes die, it
// leaves the registry, and everyone gets the new snapshot.
func (c *Coordinator) Disconnect(p *Peer) {
	revoked := c.pairing.RevokeOwner(p.ID)
	_, existed := c.registry.Unregister(p.ID)
	c.hub.Unregister(p.conn)
	if f, ok := c.limiter.(forgetter); ok {
		f.Forget(p.ID)
	}
	for _, partner := range c.unlink(p.ID) {
		c.settleState(partner)
	}
	if !existed {
		return
	}

	c.metrics.ActiveConnections.Add(-1)
	c.logger.Info("session disconnected", "session", p.ID, "revoked_codes", len(revoked))
	c.broadcastList()
}

// Handle applies one inbound frame from p. Malformed or unknown frames
// are logged and ignored; the connection stays open.
func (c *Coordinator) Handle(p *Peer, data []byte) {
	msg, err := signaling.DecodeClientMessage(data)
	if err != nil {
		c.metrics.ProtocolErrors.Add(1)
		c.logger.Debug("malformed frame", "session", p.ID, "err", err)
		return
	}

	switch msg.Type {
	case signaling.TypeRegister:
		c.register(p, msg)
	case signaling.TypeRequestList:
		c.hub.Send(p.ID, signaling.EncodeList(c.registry.List()))
	case signaling.TypeRequestPairingCode:
		c.requestCode(p)
	case signaling.TypeVerifyPairingCode:
		c.verifyCode(p, msg.Code)
	case signaling.TypeConnectRequest:
		if c.relay.ConnectRequest(p.ID, msg.TargetID) {
			c.metrics.RelayedMessages.Add(1)
		} else {
			c.metrics.DroppedRelays.Add(1)
		}
	case signaling.TypeRelayOffer, signaling.TypeRelayAnswer, signaling.TypeRelayICECandidate:
		kind, _ := signaling.KindFor(msg.Type)
		env := signaling.Envelope{Kind: kind, FromSessionID: p.ID, ToSessionID: msg.TargetID, Payload: msg.Payload}
		if c.relay.Relay(env) {
			c.metrics.RelayedMessages.Add(1)
		} else {
			c.metrics.DroppedRelays.Add(1)
		}
	case signaling.TypePing:
		c.hub.Send(p.ID, signaling.Encode(signaling.ServerMessage{Type: signaling.TypePong}))
	default:
		c.metrics.ProtocolErrors.Add(1)
		c.logger.Debug("unknown message type", "session", p.ID, "type", msg.Type)
	}
}

func (c *Coordinator) register(p *Peer, msg signaling.ClientMessage) {
	sess := c.registry.Register(p.ID, model.DeviceInfo{
		DisplayName:        msg.DisplayName,
		DeviceClass:        model.ParseDeviceClass(msg.DeviceClass),
		DeclaredResolution: msg.DeclaredResolution,
	})
	c.metrics.Registrations.Add(1)
	c.logger.Info("session registered", "session", p.ID, "name", sess.DisplayName, "class", sess.DeviceClass)
	c.broadcastList()
}

func (c *Coordinator) requestCode(p *Peer) {
	c.stateMu.Lock()
	pc, err := c.pairing.RequestCode(p.ID)
	moved := err == nil && c.registry.CompareAndSetState(p.ID, model.StateAvailable, model.StatePairingPending)
	c.stateMu.Unlock()
	if err != nil {
		c.logger.Error("pairing code generation failed", "session", p.ID, "err", err)
		c.sendPairingError(p, "could not generate pairing code")
		return
	}
	c.metrics.CodesIssued.Add(1)
	c.hub.Send(p.ID, signaling.Encode(signaling.ServerMessage{
		Type:      signaling.TypePairingCodeGenerated,
		Code:      pc.Code,
		ExpiresAt: pc.ExpiresAt.UnixMilli(),
	}))
	if moved {
		c.broadcastList()
	}
}

func (c *Coordinator) verifyCode(p *Peer, code string) {
	if c.limiter != nil && !c.limiter.Allow(p.ID) {
		c.metrics.LimitedVerifies.Add(1)
		c.sendPairingError(p, "too many attempts")
		return
	}

	owner, err := c.pairing.Verify(code, p.ID)
	if err != nil {
		c.metrics.FailedVerifies.Add(1)
		msg := "invalid or expired pairing code"
		if errors.Is(err, pairing.ErrSelfPairing) {
			msg = "cannot pair with your own session"
		}
		c.sendPairingError(p, msg)
		return
	}

	c.metrics.CodesVerified.Add(1)
	c.logger.Info("pairing succeeded", "requester", p.ID, "target", owner)
	c.hub.Send(p.ID, signaling.Encode(signaling.ServerMessage{Type: signaling.TypePairingSuccess, TargetSessionID: owner}))
	c.relay.ConnectRequest(p.ID, owner)

	c.link(p.ID, owner)
	c.registry.SetState(p.ID, model.StateConnected)
	c.registry.SetState(owner, model.StateConnected)
	if _, ok := c.registry.Get(owner); !ok {
		// The owner disconnected after Verify; its unlink already ran.
		c.unlinkPair(p.ID, owner)
		c.settleState(p.ID)
	}
	c.broadcastList()
}

func (c *Coordinator) sendPairingError(p *Peer, message string) {
	c.hub.Send(p.ID, signaling.Encode(signaling.ServerMessage{Type: signaling.TypePairingError, Message: message}))
}

func (c *Coordinator) codeExpired(pc model.PairingCode) {
	c.metrics.CodesExpired.Add(1)
	c.logger.Debug("pairing code expired", "owner", pc.OwnerSessionID)

	c.stateMu.Lock()
	moved := c.pairing.OwnedBy(pc.OwnerSessionID) == 0 &&
		c.registry.CompareAndSetState(pc.OwnerSessionID, model.StatePairingPending, model.StateAvailable)
	c.stateMu.Unlock()
	if moved {
		c.broadcastList()
	}
}

// settleState recomputes a session's state after it lost a partner.
func (c *Coordinator) settleState(id string) {
	c.stateMu.Lock()
	moved := false
	if !c.hasLinks(id) {
		next := model.StateAvailable
		if c.pairing.OwnedBy(id) > 0 {
			next = model.StatePairingPending
		}
		moved = c.registry.CompareAndSetState(id, model.StateConnected, next)
	}
	c.stateMu.Unlock()
	if moved {
		c.broadcastList()
	}
}

func (c *Coordinator) broadcastList() {
	c.broadcastMu.Lock()
	defer c.broadcastMu.Unlock()

	if dropped := c.hub.Broadcast(signaling.EncodeList(c.registry.List())); dropped > 0 {
		c.metrics.SlowConsumers.Add(int64(dropped))
		c.logger.Warn("dropped slow sessions during broadcast", "count", dropped)
	}
}

func (c *Coordinator) link(a, b string) {
	c.linksMu.Lock()
	defer c.linksMu.Unlock()
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		set := c.links[pair[0]]
		if set == nil {
			set = make(map[string]struct{})
			c.links[pair[0]] = set
		}
		set[pair[1]] = struct{}{}
	}
}

// unlink forgets id and returns the partners it was linked to.
func (c *Coordinator) unlink(id string) []string {
	c.linksMu.Lock()
	defer c.linksMu.Unlock()

	var partners []string
	for partner := range c.links[id] {
		partners = append(partners, partner)
		if set := c.links[partner]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(c.links, partner)
			}
		}
	}
	delete(c.links, id)
	return partners
}

// unlinkPair drops the single link between a and b.
func (c *Coordinator) unlinkPair(a, b string) {
	c.linksMu.Lock()
	defer c.linksMu.Unlock()
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		if set := c.links[pair[0]]; set != nil {
			delete(set, pair[1])
			if len(set) == 0 {
				delete(c.links, pair[0])
			}
		}
	}
}

func (c *Coordinator) hasLinks(id string) bool {
	c.linksMu.Lock()
	defer c.linksMu.Unlock()
	return len(c.links[id]) > 0
}
