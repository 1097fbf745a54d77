package application

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/bnema/gasmorph/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// SessionManager issues sponsorship sessions and reports their status.
// Activity is recomputed from the stored expiry on every Status call.
type SessionManager struct {
	store  ports.SessionStore
	owner  common.Address
	clock  ports.Clock
	logger log.Logger
	locks  *addressLocks
}

func NewSessionManager(store ports.SessionStore, owner common.Address, clock ports.Clock, logger log.Logger) *SessionManager {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = log.Root()
	}

	return &SessionManager{
		store:  store,
		owner:  owner,
		clock:  clock,
		logger: logger,
		locks:  newAddressLocks(),
	}
}

// Issue starts or replaces the session of account. Only the owner may
// issue; an existing active session has its expiry overwritten.
func (m *SessionManager) Issue(ctx context.Context, account common.Address, durationSeconds int64, issuer common.Address) (domain.Session, error) {
	if issuer != m.owner {
		return domain.Session{}, fmt.Errorf("issue session for %s by %s: %w", account.Hex(), issuer.Hex(), domain.ErrNotAuthorized)
	}
	if durationSeconds <= 0 {
		return domain.Session{}, fmt.Errorf("issue session for %s: %w: %d", account.Hex(), domain.ErrInvalidDuration, durationSeconds)
	}

	mu := m.locks.forAddress(account)
	mu.Lock()
	defer mu.Unlock()

	startedAt := m.clock.Now()
	if err := m.store.StartSession(ctx, account, durationSeconds); err != nil {
		return domain.Session{}, fmt.Errorf("start session: %w", err)
	}

	session := domain.Session{
		Account:   account,
		StartedAt: startedAt,
		ExpiresAt: startedAt.Add(time.Duration(durationSeconds) * time.Second),
	}
	m.logger.Info("Session issued", "account", account, "duration", durationSeconds, "expires", session.ExpiresAt)
	return session, nil
}

func (m *SessionManager) Status(ctx context.Context, account common.Address) (domain.SessionStatus, error) {
	mu := m.locks.forAddress(account)
	mu.Lock()
	defer mu.Unlock()

	expiresAt, err := m.store.SessionExpiry(ctx, account)
	if err != nil {
		return domain.SessionStatus{}, fmt.Errorf("read session expiry: %w", err)
	}

	return domain.StatusAt(expiresAt, m.clock.Now()), nil
}
