package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type SessionState string

const (
	SessionStateNone    SessionState = "none"
	SessionStateActive  SessionState = "active"
	SessionStateExpired SessionState = "expired"
)

// Session is a time-boxed sponsorship grant. Its activity is always derived
// from ExpiresAt and the current time, never stored.
type Session struct {
	Account   common.Address
	StartedAt time.Time
	ExpiresAt time.Time
}

func (s Session) ActiveAt(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

type SessionStatus struct {
	Active    bool
	ExpiresAt time.Time
	State     SessionState
}

// StatusAt computes the status of a session whose recorded expiry is
// expiresAt. A zero expiry means no session was ever issued.
func StatusAt(expiresAt, now time.Time) SessionStatus {
	if expiresAt.IsZero() {
		return SessionStatus{State: SessionStateNone}
	}
	if expiresAt.After(now) {
		return SessionStatus{Active: true, ExpiresAt: expiresAt, State: SessionStateActive}
	}

	return SessionStatus{ExpiresAt: expiresAt, State: SessionStateExpired}
}

func (s SessionStatus) Remaining(now time.Time) time.Duration {
	if !s.Active {
		return 0
	}
	remaining := s.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}

	return remaining
}

// Countdown renders the remaining time as m:ss.
func (s SessionStatus) Countdown(now time.Time) string {
	remaining := int64(s.Remaining(now).Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", remaining/60, remaining%60)
}
