package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type coordinatorFixture struct {
	clock       *fakeClock
	sessions    *SessionManager
	tasks       *TaskService
	tokens      *fakeTokenMinter
	sponsor     *fakeSponsorMinter
	history     *fakeHistory
	coordinator *Coordinator
}

func newCoordinatorFixture(t *testing.T, signer common.Address) *coordinatorFixture {
	t.Helper()

	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	f := &coordinatorFixture{
		clock:    clock,
		sessions: NewSessionManager(newFakeSessionStore(clock), ownerAddress, clock, nil),
		tasks:    NewTaskService(testCatalog(), newFakeConnections(), nil),
		tokens:   &fakeTokenMinter{},
		sponsor:  &fakeSponsorMinter{},
		history:  &fakeHistory{},
	}
	f.coordinator = NewCoordinator(f.sessions, f.tasks, f.tokens, f.sponsor, f.history, CoordinatorOptions{
		Signer:       signer,
		RetryBackoff: time.Millisecond,
		Clock:        clock,
	})
	require.NoError(t, f.tasks.Connect(context.Background(), userAddress))
	return f
}

func (f *coordinatorFixture) completeTasks(t *testing.T, ids ...domain.TaskID) {
	t.Helper()
	for _, id := range ids {
		_, _, err := f.tasks.Complete(context.Background(), userAddress, id)
		require.NoError(t, err)
	}
}

func (f *coordinatorFixture) issueSession(t *testing.T) {
	t.Helper()
	_, err := f.sessions.Issue(context.Background(), userAddress, 120, ownerAddress)
	require.NoError(t, err)
}

func TestCoordinatorOneTaskWithSessionPaysSelf(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, common.HexToAddress("0xc1"))
	f.issueSession(t)
	f.completeTasks(t, 1)

	result, err := f.coordinator.Execute(context.Background(), userAddress, domain.PaymasterModeSession)
	require.NoError(t, err)

	assert.False(t, result.WasSponsored)
	assert.Equal(t, 1, f.tokens.calls)
	assert.Zero(t, f.sponsor.calls)
	records := f.history.snapshot()
	require.Len(t, records, 1)
	assert.False(t, records[0].WasSponsored)
}

func TestCoordinatorTwoTasksWithSessionIsSponsored(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, common.HexToAddress("0xc2"))
	f.issueSession(t)
	f.completeTasks(t, 1, 2)

	result, err := f.coordinator.Execute(context.Background(), userAddress, domain.PaymasterModeSession)
	require.NoError(t, err)

	assert.True(t, result.WasSponsored)
	assert.Equal(t, 1, f.sponsor.calls)
	assert.Zero(t, f.tokens.calls)
	records := f.history.snapshot()
	require.Len(t, records, 1)
	assert.True(t, records[0].WasSponsored)
	assert.Equal(t, result.TransactionHash, records[0].TransactionHash)
	assert.Equal(t, userAddress, records[0].Account)
}

func TestCoordinatorTokenModeNeverSponsored(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, common.HexToAddress("0xc3"))
	f.issueSession(t)
	f.completeTasks(t, 1, 2, 3)

	result, err := f.coordinator.Execute(context.Background(), userAddress, domain.PaymasterModeToken)
	require.NoError(t, err)
	assert.False(t, result.WasSponsored)
	assert.Zero(t, f.sponsor.calls)
}

func TestCoordinatorExpiredSessionPaysSelf(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, common.HexToAddress("0xc4"))
	f.issueSession(t)
	f.completeTasks(t, 1, 2)
	f.clock.Set(f.clock.Now().Add(121 * time.Second))

	result, err := f.coordinator.Execute(context.Background(), userAddress, domain.PaymasterModeSession)
	require.NoError(t, err)
	assert.False(t, result.WasSponsored)
	assert.Equal(t, 1, f.tokens.calls)
}

func TestCoordinatorRetriesSequenceConflictsAndRecordsOnce(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, common.HexToAddress("0xc5"))
	f.issueSession(t)
	f.completeTasks(t, 1, 2)
	f.sponsor.failures = []error{domain.ErrSequenceNumberConflict, domain.ErrSequenceNumberConflict}

	result, err := f.coordinator.Execute(context.Background(), userAddress, domain.PaymasterModeSession)
	require.NoError(t, err)

	assert.True(t, result.WasSponsored)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, f.sponsor.calls)
	assert.Len(t, f.history.snapshot(), 1)
}

func TestCoordinatorStopsAfterThreeConflicts(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, common.HexToAddress("0xc6"))
	f.issueSession(t)
	f.completeTasks(t, 1, 2)
	f.sponsor.failures = []error{
		domain.ErrSequenceNumberConflict,
		domain.ErrSequenceNumberConflict,
		domain.ErrSequenceNumberConflict,
		domain.ErrSequenceNumberConflict,
	}

	_, err := f.coordinator.Execute(context.Background(), userAddress, domain.PaymasterModeSession)
	require.ErrorIs(t, err, domain.ErrRetriesExhausted)
	require.ErrorIs(t, err, domain.ErrSequenceNumberConflict)
	assert.Equal(t, 3, f.sponsor.calls)
	assert.Empty(t, f.history.snapshot())
}

func TestCoordinatorClampsAttemptsToBound(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, common.HexToAddress("0xca"))
	f.coordinator = NewCoordinator(f.sessions, f.tasks, f.tokens, f.sponsor, f.history, CoordinatorOptions{
		Signer:       common.HexToAddress("0xca"),
		MaxAttempts:  10,
		RetryBackoff: time.Millisecond,
		Clock:        f.clock,
	})
	f.issueSession(t)
	f.completeTasks(t, 1, 2)
	for range 10 {
		f.sponsor.failures = append(f.sponsor.failures, domain.ErrSequenceNumberConflict)
	}

	_, err := f.coordinator.Execute(context.Background(), userAddress, domain.PaymasterModeSession)
	require.ErrorIs(t, err, domain.ErrRetriesExhausted)
	assert.Equal(t, domain.MaxMintAttempts, f.sponsor.calls)
	assert.Empty(t, f.history.snapshot())
}

func TestCoordinatorDoesNotRetryOtherSponsorFailures(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, common.HexToAddress("0xc7"))
	f.issueSession(t)
	f.completeTasks(t, 1, 2)
	f.sponsor.failures = []error{domain.ErrTransportFailure}

	_, err := f.coordinator.Execute(context.Background(), userAddress, domain.PaymasterModeSession)
	require.ErrorIs(t, err, domain.ErrTransportFailure)
	assert.Equal(t, 1, f.sponsor.calls)
	assert.Empty(t, f.history.snapshot())
}

func TestCoordinatorNeverRetriesSelfPaidFailures(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, common.HexToAddress("0xc8"))
	f.tokens.mintErr = domain.ErrSequenceNumberConflict

	_, err := f.coordinator.Execute(context.Background(), userAddress, domain.PaymasterModeToken)
	require.ErrorIs(t, err, domain.ErrSequenceNumberConflict)
	assert.Equal(t, 1, f.tokens.calls)
	assert.Empty(t, f.history.snapshot())
}

func TestCoordinatorSelfPaidSurfacesInsufficientFunds(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, common.HexToAddress("0xc9"))
	f.tokens.mintErr = domain.ErrInsufficientFunds

	_, err := f.coordinator.Execute(context.Background(), userAddress, domain.PaymasterModeToken)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestCoordinatorPaysMintPrice(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, common.HexToAddress("0xca"))

	_, err := f.coordinator.Execute(context.Background(), userAddress, domain.PaymasterModeToken)
	require.NoError(t, err)
	require.Len(t, f.tokens.values, 1)
	assert.Equal(t, "1000000000000000", f.tokens.values[0].String())
}

func TestCoordinatorCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, common.HexToAddress("0xcb"))
	f.issueSession(t)
	f.completeTasks(t, 1, 2)
	f.sponsor.failures = []error{domain.ErrSequenceNumberConflict}
	f.coordinator.backoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.coordinator.Execute(ctx, userAddress, domain.PaymasterModeSession)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, f.history.snapshot())
}

func TestCoordinatorSerializesSponsoredSubmissionsPerSigner(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, common.HexToAddress("0xcc"))
	f.issueSession(t)
	f.completeTasks(t, 1, 2)
	f.sponsor.hold = 5 * time.Millisecond

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coordinator.Execute(context.Background(), userAddress, domain.PaymasterModeSession)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.sponsor.maxSeen)
	assert.Len(t, f.history.snapshot(), 4)
}

func TestCoordinatorRecordFailureKeepsResult(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, common.HexToAddress("0xcd"))
	f.history.err = errBoom

	result, err := f.coordinator.Execute(context.Background(), userAddress, domain.PaymasterModeToken)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, common.HexToHash("0x5e1f"), result.TransactionHash)
}
