// Package pairing issues, validates and expires the one-time six-digit
// codes that bind a requester to a display session.
//
// Codes are bearer secrets: anyone holding a live code may consume it,
// exactly once. A code dies on first successful verification, when its
// TTL elapses, or when its owner disconnects (RevokeOwner).
package pairing

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"screenlink/internal/clock"
	"screenlink/internal/model"
)

const (
	CodeLength = 6
	DefaultTTL = 10 * time.Minute

	codeSpace = 1000000
	// Largest multiple of codeSpace that fits in a uint32; draws at or
	// above it are rejected so every code is equally likely.
	drawLimit    = (1 << 32) / codeSpace * codeSpace
	maxCodeDraws = 1000
)

var (
	ErrInvalidOrExpired   = errors.New("invalid or expired pairing code")
	ErrSelfPairing        = errors.New("cannot pair a session with itself")
	ErrCodeSpaceExhausted = errors.New("no free pairing codes")
)

type Options struct {
	Clock clock.Clock
	// Rand supplies code entropy. Defaults to crypto/rand.
	Rand io.Reader
	TTL  time.Duration
	// MaxCodesPerOwner caps live codes per owner; the oldest are revoked
	// to make room. Zero means unlimited.
	MaxCodesPerOwner int
	// OnExpire runs, outside the manager's lock, for every code removed
	// by its expiry timer.
	OnExpire func(model.PairingCode)
}

type Manager struct {
	mu    sync.Mutex
	codes map[string]*entry

	clock    clock.Clock
	rand     io.Reader
	ttl      time.Duration
	maxCodes int
	onExpire func(model.PairingCode)
}

type entry struct {
	code  model.PairingCode
	timer *clock.Timer
}

func New(opts Options) *Manager {
	m := &Manager{
		codes:    make(map[string]*entry),
		clock:    opts.Clock,
		rand:     opts.Rand,
		ttl:      opts.TTL,
		maxCodes: opts.MaxCodesPerOwner,
		onExpire: opts.OnExpire,
	}
	if m.clock == nil {
		m.clock = clock.Real()
	}
	if m.rand == nil {
		m.rand = rand.Reader
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	return m
}

// RequestCode issues a fresh code for owner. The code is unique among
// live codes at the moment it is stored.
func (m *Manager) RequestCode(owner string) (model.PairingCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.codes) >= codeSpace {
		return model.PairingCode{}, ErrCodeSpaceExhausted
	}

	var code string
	for attempt := 0; ; attempt++ {
		if attempt == maxCodeDraws {
			return model.PairingCode{}, ErrCodeSpaceExhausted
		}
		candidate, err := m.drawLocked()
		if err != nil {
			return model.PairingCode{}, fmt.Errorf("generate pairing code: %w", err)
		}
		if _, taken := m.codes[candidate]; !taken {
			code = candidate
			break
		}
	}

	if m.maxCodes > 0 {
		m.enforceCapLocked(owner)
	}

	now := m.clock.Now()
	pc := model.PairingCode{
		Code:           code,
		OwnerSessionID: owner,
		IssuedAt:       now,
		ExpiresAt:      now.Add(m.ttl),
	}
	e := &entry{code: pc}
	e.timer = m.clock.AfterFunc(m.ttl, func() { m.expire(code, owner) })
	m.codes[code] = e
	return pc, nil
}

func (m *Manager) drawLocked() (string, error) {
	var buf [4]byte
	for {
		if _, err := io.ReadFull(m.rand, buf[:]); err != nil {
			return "", err
		}
		n := binary.BigEndian.Uint32(buf[:])
		if n < drawLimit {
			return fmt.Sprintf("%0*d", CodeLength, n%codeSpace), nil
		}
	}
}

// enforceCapLocked makes room for one more code owned by owner.
func (m *Manager) enforceCapLocked(owner string) {
	for {
		var owned []*entry
		for _, e := range m.codes {
			if e.code.OwnerSessionID == owner {
				owned = append(owned, e)
			}
		}
		if len(owned) < m.maxCodes {
			return
		}
		oldest := owned[0]
		for _, e := range owned[1:] {
			if e.code.IssuedAt.Before(oldest.code.IssuedAt) {
				oldest = e
			}
		}
		oldest.timer.Stop()
		delete(m.codes, oldest.code.Code)
	}
}

// Verify consumes code on behalf of requester and returns the owner's
// session id. Exactly one concurrent caller can win a given code. A
// miss leaves all state untouched. Codes owned by requester are refused
// with ErrSelfPairing and stay live.
func (m *Manager) Verify(code, requester string) (string, error) {
	code = NormalizeCode(code)

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.codes[code]
	if !ok {
		return "", ErrInvalidOrExpired
	}
	if !m.clock.Now().Before(e.code.ExpiresAt) {
		// The timer has not run yet; the code is dead regardless.
		return "", ErrInvalidOrExpired
	}
	if e.code.OwnerSessionID == requester {
		return "", ErrSelfPairing
	}

	e.timer.Stop()
	delete(m.codes, code)
	return e.code.OwnerSessionID, nil
}

func (m *Manager) expire(code, owner string) {
	m.mu.Lock()
	e, ok := m.codes[code]
	if !ok || e.code.OwnerSessionID != owner {
		m.mu.Unlock()
		return
	}
	delete(m.codes, code)
	m.mu.Unlock()

	if m.onExpire != nil {
		m.onExpire(e.code)
	}
}

// RevokeOwner drops every live code owned by owner and returns them.
func (m *Manager) RevokeOwner(owner string) []model.PairingCode {
	m.mu.Lock()
	defer m.mu.Unlock()

	var revoked []model.PairingCode
	for code, e := range m.codes {
		if e.code.OwnerSessionID != owner {
			continue
		}
		e.timer.Stop()
		delete(m.codes, code)
		revoked = append(revoked, e.code)
	}
	return revoked
}

// OwnedBy counts the live codes owned by owner.
func (m *Manager) OwnedBy(owner string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.codes {
		if e.code.OwnerSessionID == owner {
			n++
		}
	}
	return n
}

func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.codes)
}

// NormalizeCode strips the separators people type when reading a code
// aloud ("482 913", "482-913").
func NormalizeCode(raw string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '\t' {
			return -1
		}
		return r
	}, raw)
}
