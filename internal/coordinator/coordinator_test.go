package coordinator

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"screenlink/internal/clock"
	"screenlink/internal/logging"
	"screenlink/internal/model"
	"screenlink/internal/signaling"
)

type recordingWriter struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (w *recordingWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames = append(w.frames, message)
	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// ofType decodes every recorded frame with the given type.
func (w *recordingWriter) ofType(t *testing.T, typ signaling.MessageType) []map[string]any {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []map[string]any
	for _, f := range w.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("invalid frame %s: %v", f, err)
		}
		if m["type"] == string(typ) {
			out = append(out, m)
		}
	}
	return out
}

func (w *recordingWriter) lastList(t *testing.T) []any {
	t.Helper()
	lists := w.ofType(t, signaling.TypeList)
	if len(lists) == 0 {
		t.Fatalf("no list frames received")
	}
	devices, _ := lists[len(lists)-1]["devices"].([]any)
	return devices
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func codeDraws(values ...uint32) *bytes.Reader {
	var buf bytes.Buffer
	for _, v := range values {
		_ = binary.Write(&buf, binary.BigEndian, v)
	}
	return bytes.NewReader(buf.Bytes())
}

func sequentialIDs(names ...string) func() string {
	i := 0
	return func() string {
		id := names[i]
		i++
		return id
	}
}

func send(t *testing.T, c *Coordinator, p *Peer, msg any) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	c.Handle(p, data)
}

func newTestCoordinator(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return New(opts)
}

func TestPairingScenario(t *testing.T) {
	c := newTestCoordinator(Options{Rand: codeDraws(482913), NewSessionID: sequentialIDs("D", "H", "X")})

	dw, hw, xw := &recordingWriter{}, &recordingWriter{}, &recordingWriter{}
	d := c.Connect(dw)
	send(t, c, d, map[string]any{"type": "register", "displayName": "Display", "deviceClass": "linux"})
	send(t, c, d, map[string]any{"type": "request-pairing-code"})

	codes := dw.ofType(t, signaling.TypePairingCodeGenerated)
	if len(codes) != 1 || codes[0]["code"] != "482913" {
		t.Fatalf("expected code 482913, got %v", codes)
	}

	h := c.Connect(hw)
	x := c.Connect(xw)
	if len(hw.ofType(t, signaling.TypePairingCodeGenerated)) != 0 {
		t.Fatalf("pairing code must not be broadcast")
	}

	send(t, c, h, map[string]any{"type": "verify-pairing-code", "code": "482913"})

	success := hw.ofType(t, signaling.TypePairingSuccess)
	if len(success) != 1 || success[0]["targetSessionId"] != "D" {
		t.Fatalf("expected pairing-success targeting D, got %v", success)
	}
	requests := dw.ofType(t, signaling.TypeConnectRequest)
	if len(requests) != 1 || requests[0]["fromId"] != "H" {
		t.Fatalf("expected connect-request from H, got %v", requests)
	}

	send(t, c, x, map[string]any{"type": "verify-pairing-code", "code": "482913"})
	if errs := xw.ofType(t, signaling.TypePairingError); len(errs) != 1 {
		t.Fatalf("expected pairing-error on reuse, got %v", errs)
	}

	for _, raw := range xw.lastList(t) {
		dev := raw.(map[string]any)
		if dev["id"] == "D" || dev["id"] == "H" {
			if dev["status"] != string(model.StateConnected) {
				t.Fatalf("expected %s connected, got %v", dev["id"], dev["status"])
			}
		}
	}
}

func TestSessionAssigned(t *testing.T) {
	c := newTestCoordinator(Options{NewSessionID: sequentialIDs("S1")})
	w := &recordingWriter{}
	c.Connect(w)
	assigned := w.ofType(t, signaling.TypeSessionAssigned)
	if len(assigned) != 1 || assigned[0]["sessionId"] != "S1" {
		t.Fatalf("unexpected session-assigned frames: %v", assigned)
	}
}

func TestNegotiationRelay(t *testing.T) {
	c := newTestCoordinator(Options{NewSessionID: sequentialIDs("D", "H")})
	dw, hw := &recordingWriter{}, &recordingWriter{}
	d := c.Connect(dw)
	h := c.Connect(hw)

	send(t, c, h, map[string]any{"type": "relay-offer", "targetId": "D", "payload": map[string]any{"sdp": "offer"}})
	send(t, c, d, map[string]any{"type": "relay-answer", "targetId": "H", "payload": map[string]any{"sdp": "answer"}})
	send(t, c, d, map[string]any{"type": "relay-ice-candidate", "targetId": "H", "payload": "candidate:1"})

	offers := dw.ofType(t, signaling.TypeRelayOffer)
	if len(offers) != 1 || offers[0]["fromId"] != "H" {
		t.Fatalf("unexpected offers: %v", offers)
	}
	if len(hw.ofType(t, signaling.TypeRelayAnswer)) != 1 || len(hw.ofType(t, signaling.TypeRelayICECandidate)) != 1 {
		t.Fatalf("expected answer and candidate at H")
	}
	if got := c.Metrics().RelayedMessages.Load(); got != 3 {
		t.Fatalf("expected 3 relayed, got %d", got)
	}
}

func TestRelayToMissingTargetIsSilent(t *testing.T) {
	c := newTestCoordinator(Options{NewSessionID: sequentialIDs("H")})
	hw := &recordingWriter{}
	h := c.Connect(hw)
	before := len(hw.frames)

	send(t, c, h, map[string]any{"type": "relay-offer", "targetId": "nobody", "payload": map[string]any{}})
	send(t, c, h, map[string]any{"type": "connect-request", "targetId": "nobody"})

	if len(hw.frames) != before {
		t.Fatalf("sender must not be notified of relay misses")
	}
	if got := c.Metrics().DroppedRelays.Load(); got != 2 {
		t.Fatalf("expected 2 dropped relays, got %d", got)
	}
}

func TestDisconnectRevokesOwnedCodes(t *testing.T) {
	c := newTestCoordinator(Options{Rand: codeDraws(111111), NewSessionID: sequentialIDs("D", "H")})
	dw, hw := &recordingWriter{}, &recordingWriter{}
	d := c.Connect(dw)
	h := c.Connect(hw)
	send(t, c, d, map[string]any{"type": "request-pairing-code"})

	c.Disconnect(d)
	send(t, c, h, map[string]any{"type": "verify-pairing-code", "code": "111111"})

	if len(hw.ofType(t, signaling.TypePairingError)) != 1 {
		t.Fatalf("expected pairing-error after owner disconnect")
	}
	if devices := hw.lastList(t); len(devices) != 1 {
		t.Fatalf("expected only H in snapshot, got %v", devices)
	}
}

func TestListReflectsConnectedSessions(t *testing.T) {
	c := newTestCoordinator(Options{})
	const n = 20
	peers := make([]*Peer, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := c.Connect(&recordingWriter{})
			send(t, c, p, map[string]any{"type": "register", "displayName": fmt.Sprintf("dev-%d", i)})
			peers[i] = p
		}(i)
	}
	wg.Wait()
	for i := 0; i < n; i += 4 {
		c.Disconnect(peers[i])
	}
	if got := len(c.Sessions()); got != n-n/4 {
		t.Fatalf("expected %d sessions, got %d", n-n/4, got)
	}

	w := &recordingWriter{}
	p := c.Connect(w)
	send(t, c, p, map[string]any{"type": "request-list"})
	if got := len(w.lastList(t)); got != n-n/4+1 {
		t.Fatalf("expected %d devices in list, got %d", n-n/4+1, got)
	}
}

func TestRegisterBroadcastsToEveryone(t *testing.T) {
	c := newTestCoordinator(Options{NewSessionID: sequentialIDs("A", "B")})
	aw, bw := &recordingWriter{}, &recordingWriter{}
	c.Connect(aw)
	b := c.Connect(bw)
	send(t, c, b, map[string]any{"type": "register", "displayName": "Tablet", "deviceClass": "ipados", "declaredResolution": "2048x1536"})

	var found bool
	for _, raw := range aw.lastList(t) {
		dev := raw.(map[string]any)
		if dev["id"] == "B" {
			found = true
			if dev["name"] != "Tablet" || dev["type"] != "ios" || dev["resolution"] != "2048x1536" {
				t.Fatalf("unexpected device entry %v", dev)
			}
		}
	}
	if !found {
		t.Fatalf("B missing from A's snapshot")
	}
}

func TestMalformedAndUnknownFramesAreIgnored(t *testing.T) {
	c := newTestCoordinator(Options{})
	w := &recordingWriter{}
	p := c.Connect(w)
	c.Handle(p, []byte("{not json"))
	c.Handle(p, []byte(`{"type":"teleport"}`))
	send(t, c, p, map[string]any{"type": "ping"})

	if len(w.ofType(t, signaling.TypePong)) != 1 {
		t.Fatalf("connection should keep working after bad frames")
	}
	if w.closed {
		t.Fatalf("bad frames must not close the connection")
	}
	if got := c.Metrics().ProtocolErrors.Load(); got != 2 {
		t.Fatalf("expected 2 protocol errors, got %d", got)
	}
}

func TestCodeExpiryRestoresAvailability(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := newTestCoordinator(Options{Clock: clk, Rand: codeDraws(123456), NewSessionID: sequentialIDs("D", "H")})
	dw, hw := &recordingWriter{}, &recordingWriter{}
	d := c.Connect(dw)
	h := c.Connect(hw)

	send(t, c, d, map[string]any{"type": "request-pairing-code"})
	if sess, _ := c.registry.Get("D"); sess.State != model.StatePairingPending {
		t.Fatalf("expected pairing-pending, got %q", sess.State)
	}

	clk.Advance(10 * time.Minute)
	if sess, _ := c.registry.Get("D"); sess.State != model.StateAvailable {
		t.Fatalf("expected available after expiry, got %q", sess.State)
	}

	send(t, c, h, map[string]any{"type": "verify-pairing-code", "code": "123456"})
	if len(hw.ofType(t, signaling.TypePairingError)) != 1 {
		t.Fatalf("expired code must be rejected")
	}
	if got := c.Metrics().CodesExpired.Load(); got != 1 {
		t.Fatalf("expected 1 expired code, got %d", got)
	}
}

func TestVerifyRateLimited(t *testing.T) {
	c := newTestCoordinator(Options{Rand: codeDraws(222222), VerifyLimiter: denyAll{}, NewSessionID: sequentialIDs("D", "H")})
	dw, hw := &recordingWriter{}, &recordingWriter{}
	d := c.Connect(dw)
	h := c.Connect(hw)
	send(t, c, d, map[string]any{"type": "request-pairing-code"})
	send(t, c, h, map[string]any{"type": "verify-pairing-code", "code": "222222"})

	errs := hw.ofType(t, signaling.TypePairingError)
	if len(errs) != 1 || errs[0]["message"] != "too many attempts" {
		t.Fatalf("expected rate-limit error, got %v", errs)
	}
	if c.pairing.Live() != 1 {
		t.Fatalf("limited attempt must not consume the code")
	}
}

func TestSelfPairingRejected(t *testing.T) {
	c := newTestCoordinator(Options{Rand: codeDraws(333333), NewSessionID: sequentialIDs("D")})
	dw := &recordingWriter{}
	d := c.Connect(dw)
	send(t, c, d, map[string]any{"type": "request-pairing-code"})
	send(t, c, d, map[string]any{"type": "verify-pairing-code", "code": "333333"})

	if len(dw.ofType(t, signaling.TypePairingError)) != 1 {
		t.Fatalf("expected pairing-error for self pairing")
	}
	if c.pairing.Live() != 1 {
		t.Fatalf("self pairing must not consume the code")
	}
}

func TestPartnerDisconnectResetsState(t *testing.T) {
	c := newTestCoordinator(Options{Rand: codeDraws(444444), NewSessionID: sequentialIDs("D", "H")})
	d := c.Connect(&recordingWriter{})
	h := c.Connect(&recordingWriter{})
	send(t, c, d, map[string]any{"type": "request-pairing-code"})
	send(t, c, h, map[string]any{"type": "verify-pairing-code", "code": "444444"})

	c.Disconnect(h)
	if sess, _ := c.registry.Get("D"); sess.State != model.StateAvailable {
		t.Fatalf("expected D available after partner left, got %q", sess.State)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	c := newTestCoordinator(Options{})
	p := c.Connect(&recordingWriter{})
	c.Disconnect(p)
	c.Disconnect(p)
	if got := c.Metrics().ActiveConnections.Load(); got != 0 {
		t.Fatalf("expected 0 active connections, got %d", got)
	}
}

// hookWriter records like recordingWriter and runs onType once, outside
// its own lock, the first time a frame of type typ is written.
type hookWriter struct {
	recordingWriter
	typ    signaling.MessageType
	onType func()
	once   sync.Once
}

func (w *hookWriter) Write(message []byte) error {
	_ = w.recordingWriter.Write(message)
	var m struct {
		Type signaling.MessageType `json:"type"`
	}
	if json.Unmarshal(message, &m) == nil && m.Type == w.typ {
		w.once.Do(w.onType)
	}
	return nil
}

func TestOwnerDisconnectDuringVerify(t *testing.T) {
	c := newTestCoordinator(Options{Rand: codeDraws(555555), NewSessionID: sequentialIDs("D", "H")})
	d := c.Connect(&recordingWriter{})
	hw := &hookWriter{typ: signaling.TypePairingSuccess}
	hw.onType = func() { c.Disconnect(d) }
	h := c.Connect(hw)

	send(t, c, d, map[string]any{"type": "request-pairing-code"})
	send(t, c, h, map[string]any{"type": "verify-pairing-code", "code": "555555"})

	if len(hw.ofType(t, signaling.TypePairingSuccess)) != 1 {
		t.Fatalf("expected pairing-success before the owner left")
	}
	sess, ok := c.registry.Get("H")
	if !ok || sess.State != model.StateAvailable {
		t.Fatalf("expected H available after owner left, got %q", sess.State)
	}
	if c.hasLinks("H") || c.hasLinks("D") {
		t.Fatalf("links must not outlive the departed owner")
	}
	if got := c.registry.Len(); got != 1 {
		t.Fatalf("expected only H registered, got %d", got)
	}
	devices := hw.lastList(t)
	if len(devices) != 1 || devices[0].(map[string]any)["status"] != string(model.StateAvailable) {
		t.Fatalf("expected final snapshot with H available, got %v", devices)
	}
}

func TestExpiryRacingNewCodeKeepsPending(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := newTestCoordinator(Options{Clock: clk, NewSessionID: sequentialIDs("D")})
	d := c.Connect(&recordingWriter{})

	for i := 0; i < 200; i++ {
		send(t, c, d, map[string]any{"type": "request-pairing-code"})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			clk.Advance(10 * time.Minute)
		}()
		go func() {
			defer wg.Done()
			send(t, c, d, map[string]any{"type": "request-pairing-code"})
		}()
		wg.Wait()

		sess, _ := c.registry.Get("D")
		live := c.pairing.OwnedBy("D") > 0
		if live != (sess.State == model.StatePairingPending) {
			t.Fatalf("iteration %d: live codes=%v but state %q", i, live, sess.State)
		}
		c.pairing.RevokeOwner("D")
		c.registry.SetState("D", model.StateAvailable)
	}
}
