package application

import (
	"context"
	"testing"
	"time"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManagerIssueThenExpire(t *testing.T) {
	t.Parallel()

	start := time.Unix(1_700_000_000, 0)
	clock := newFakeClock(start)
	manager := NewSessionManager(newFakeSessionStore(clock), ownerAddress, clock, nil)

	session, err := manager.Issue(context.Background(), userAddress, 120, ownerAddress)
	require.NoError(t, err)
	assert.Equal(t, start, session.StartedAt)
	assert.Equal(t, start.Add(120*time.Second), session.ExpiresAt)

	clock.Set(start.Add(60 * time.Second))
	status, err := manager.Status(context.Background(), userAddress)
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.Equal(t, domain.SessionStateActive, status.State)

	clock.Set(start.Add(120 * time.Second))
	status, err = manager.Status(context.Background(), userAddress)
	require.NoError(t, err)
	assert.False(t, status.Active)

	clock.Set(start.Add(121 * time.Second))
	status, err = manager.Status(context.Background(), userAddress)
	require.NoError(t, err)
	assert.False(t, status.Active)
	assert.Equal(t, domain.SessionStateExpired, status.State)
}

func TestSessionManagerStatusWithoutSession(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	manager := NewSessionManager(newFakeSessionStore(clock), ownerAddress, clock, nil)

	status, err := manager.Status(context.Background(), userAddress)
	require.NoError(t, err)
	assert.False(t, status.Active)
	assert.Equal(t, domain.SessionStateNone, status.State)
}

func TestSessionManagerRejectsNonPositiveDuration(t *testing.T) {
	t.Parallel()

	for _, duration := range []int64{0, -1, -120} {
		clock := newFakeClock(time.Unix(1_700_000_000, 0))
		store := newFakeSessionStore(clock)
		manager := NewSessionManager(store, ownerAddress, clock, nil)

		_, err := manager.Issue(context.Background(), userAddress, duration, ownerAddress)
		require.ErrorIs(t, err, domain.ErrInvalidDuration)
		assert.Zero(t, store.starts)
	}
}

func TestSessionManagerRejectsNonOwnerAndKeepsPriorState(t *testing.T) {
	t.Parallel()

	start := time.Unix(1_700_000_000, 0)
	clock := newFakeClock(start)
	store := newFakeSessionStore(clock)
	manager := NewSessionManager(store, ownerAddress, clock, nil)

	_, err := manager.Issue(context.Background(), userAddress, 120, ownerAddress)
	require.NoError(t, err)

	_, err = manager.Issue(context.Background(), userAddress, 3600, userAddress)
	require.ErrorIs(t, err, domain.ErrNotAuthorized)
	assert.Equal(t, 1, store.starts)

	status, err := manager.Status(context.Background(), userAddress)
	require.NoError(t, err)
	assert.Equal(t, start.Add(120*time.Second), status.ExpiresAt)
}

func TestSessionManagerReissueOverwritesExpiry(t *testing.T) {
	t.Parallel()

	start := time.Unix(1_700_000_000, 0)
	clock := newFakeClock(start)
	manager := NewSessionManager(newFakeSessionStore(clock), ownerAddress, clock, nil)

	_, err := manager.Issue(context.Background(), userAddress, 600, ownerAddress)
	require.NoError(t, err)

	clock.Set(start.Add(30 * time.Second))
	_, err = manager.Issue(context.Background(), userAddress, 60, ownerAddress)
	require.NoError(t, err)

	status, err := manager.Status(context.Background(), userAddress)
	require.NoError(t, err)
	assert.Equal(t, start.Add(90*time.Second), status.ExpiresAt)
}

func TestSessionManagerWrapsStoreFailures(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	store := newFakeSessionStore(clock)
	store.startErr = domain.ErrTransportFailure
	store.readErr = domain.ErrTransportFailure
	manager := NewSessionManager(store, ownerAddress, clock, nil)

	_, err := manager.Issue(context.Background(), userAddress, 120, ownerAddress)
	require.ErrorIs(t, err, domain.ErrTransportFailure)

	_, err = manager.Status(context.Background(), userAddress)
	require.ErrorIs(t, err, domain.ErrTransportFailure)
}
