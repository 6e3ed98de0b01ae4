package pairing

import (
	"bytes"
	"encoding/binary"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"screenlink/internal/clock"
	"screenlink/internal/model"
)

var sixDigits = regexp.MustCompile(`^[0-9]{6}$`)

// draws returns a reader that yields the given raw uint32 draws in order.
func draws(values ...uint32) *bytes.Reader {
	var buf bytes.Buffer
	for _, v := range values {
		_ = binary.Write(&buf, binary.BigEndian, v)
	}
	return bytes.NewReader(buf.Bytes())
}

func newTestManager(t *testing.T, opts Options) (*Manager, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	opts.Clock = clk
	return New(opts), clk
}

func TestRequestCode_Format(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	for i := 0; i < 200; i++ {
		pc, err := m.RequestCode("display")
		if err != nil {
			t.Fatalf("RequestCode: %v", err)
		}
		if !sixDigits.MatchString(pc.Code) {
			t.Fatalf("code %q is not six digits", pc.Code)
		}
		if got := pc.ExpiresAt.Sub(pc.IssuedAt); got != DefaultTTL {
			t.Fatalf("expected ttl %v, got %v", DefaultTTL, got)
		}
	}
	if m.Live() != 200 {
		t.Fatalf("expected 200 live codes, got %d", m.Live())
	}
}

func TestRequestCode_LeadingZerosAndDeterministicDraw(t *testing.T) {
	m, _ := newTestManager(t, Options{Rand: draws(42, 482913)})
	first, err := m.RequestCode("d")
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	if first.Code != "000042" {
		t.Fatalf("expected 000042, got %q", first.Code)
	}
	second, err := m.RequestCode("d")
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	if second.Code != "482913" {
		t.Fatalf("expected 482913, got %q", second.Code)
	}
}

func TestRequestCode_RetriesOnCollision(t *testing.T) {
	m, _ := newTestManager(t, Options{Rand: draws(111111, 111111, 1111111, 222222)})
	a, err := m.RequestCode("d1")
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	b, err := m.RequestCode("d2")
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	if a.Code != "111111" || b.Code != "222222" {
		t.Fatalf("expected 111111 then 222222, got %q and %q", a.Code, b.Code)
	}
}

func TestRequestCode_RejectsBiasedDraws(t *testing.T) {
	m, _ := newTestManager(t, Options{Rand: draws(0xFFFFFFFF, 7)})
	pc, err := m.RequestCode("d")
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	if pc.Code != "000007" {
		t.Fatalf("expected 000007, got %q", pc.Code)
	}
}

func TestVerify_OneTimeUse(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	pc, _ := m.RequestCode("display")

	owner, err := m.Verify(pc.Code, "host")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if owner != "display" {
		t.Fatalf("expected display, got %q", owner)
	}
	if _, err := m.Verify(pc.Code, "host"); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("expected ErrInvalidOrExpired, got %v", err)
	}
}

func TestVerify_UnknownCodeHasNoSideEffects(t *testing.T) {
	m, _ := newTestManager(t, Options{Rand: draws(123456)})
	if _, err := m.RequestCode("display"); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	if _, err := m.Verify("654321", "host"); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("expected ErrInvalidOrExpired, got %v", err)
	}
	if m.Live() != 1 {
		t.Fatalf("miss should not remove codes")
	}
}

func TestVerify_AcceptsSeparators(t *testing.T) {
	m, _ := newTestManager(t, Options{Rand: draws(482913)})
	if _, err := m.RequestCode("display"); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	if _, err := m.Verify(" 482-913 ", "host"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerify_SelfPairingKeepsCode(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	pc, _ := m.RequestCode("display")
	if _, err := m.Verify(pc.Code, "display"); !errors.Is(err, ErrSelfPairing) {
		t.Fatalf("expected ErrSelfPairing, got %v", err)
	}
	if _, err := m.Verify(pc.Code, "host"); err != nil {
		t.Fatalf("code should still be live: %v", err)
	}
}

func TestExpiry(t *testing.T) {
	var expired []model.PairingCode
	m, clk := newTestManager(t, Options{OnExpire: func(pc model.PairingCode) { expired = append(expired, pc) }})
	pc, _ := m.RequestCode("display")

	clk.Advance(DefaultTTL - time.Second)
	if m.Live() != 1 {
		t.Fatalf("code expired early")
	}
	clk.Advance(time.Second)
	if m.Live() != 0 {
		t.Fatalf("code should be gone after ttl")
	}
	if len(expired) != 1 || expired[0].Code != pc.Code {
		t.Fatalf("expected OnExpire for %q, got %v", pc.Code, expired)
	}
	if _, err := m.Verify(pc.Code, "host"); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("expected ErrInvalidOrExpired, got %v", err)
	}
}

func TestExpiry_ConsumedCodeDoesNotFire(t *testing.T) {
	fired := 0
	m, clk := newTestManager(t, Options{OnExpire: func(model.PairingCode) { fired++ }})
	pc, _ := m.RequestCode("display")
	if _, err := m.Verify(pc.Code, "host"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	clk.Advance(time.Hour)
	if fired != 0 {
		t.Fatalf("expiry fired for consumed code")
	}
	if clk.Pending() != 0 {
		t.Fatalf("timer should be cancelled")
	}
}

func TestRevokeOwner(t *testing.T) {
	m, clk := newTestManager(t, Options{})
	a, _ := m.RequestCode("display")
	b, _ := m.RequestCode("display")
	other, _ := m.RequestCode("other")

	revoked := m.RevokeOwner("display")
	if len(revoked) != 2 {
		t.Fatalf("expected 2 revoked, got %d", len(revoked))
	}
	for _, code := range []string{a.Code, b.Code} {
		if _, err := m.Verify(code, "host"); !errors.Is(err, ErrInvalidOrExpired) {
			t.Fatalf("revoked code %q still valid", code)
		}
	}
	if _, err := m.Verify(other.Code, "host"); err != nil {
		t.Fatalf("unrelated code revoked: %v", err)
	}
	if clk.Pending() != 0 {
		t.Fatalf("expected all timers stopped, %d pending", clk.Pending())
	}
}

func TestMultipleCodesPerOwnerByDefault(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	for i := 0; i < 3; i++ {
		if _, err := m.RequestCode("display"); err != nil {
			t.Fatalf("RequestCode: %v", err)
		}
	}
	if m.OwnedBy("display") != 3 {
		t.Fatalf("expected 3 outstanding codes, got %d", m.OwnedBy("display"))
	}
}

func TestMaxCodesPerOwnerReplacesOldest(t *testing.T) {
	m, clk := newTestManager(t, Options{MaxCodesPerOwner: 1, Rand: draws(100000, 200000)})
	first, _ := m.RequestCode("display")
	clk.Advance(time.Second)
	second, _ := m.RequestCode("display")

	if m.OwnedBy("display") != 1 {
		t.Fatalf("cap not enforced: %d", m.OwnedBy("display"))
	}
	if _, err := m.Verify(first.Code, "host"); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("oldest code should have been replaced")
	}
	if _, err := m.Verify(second.Code, "host"); err != nil {
		t.Fatalf("newest code should be valid: %v", err)
	}
}

func TestVerify_ExactlyOneConcurrentWinner(t *testing.T) {
	m := New(Options{})
	pc, err := m.RequestCode("display")
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Verify(pc.Code, "host"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}
