package application

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ownerAddress     = common.HexToAddress("0xa526F5D0c2627C099Ca83AE3A8F5d937B9C85fB2")
	paymasterAddress = common.HexToAddress("0x9ac77eA1280fF4dCf89b2D0f47bd15c396898945")
	userAddress      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	allowedAddress   = common.HexToAddress("0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6")
	errBoom          = errors.New("boom")
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

type fakeBalances struct {
	balances map[common.Address]*big.Int
	err      error
}

func (f fakeBalances) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	if balance, ok := f.balances[account]; ok {
		return new(big.Int).Set(balance), nil
	}
	return new(big.Int), nil
}

// fakeSessionStore mirrors the on-chain contract: expiry is block time plus
// duration.
type fakeSessionStore struct {
	mu       sync.Mutex
	clock    *fakeClock
	expiries map[common.Address]time.Time
	startErr error
	readErr  error
	starts   int
}

func newFakeSessionStore(clock *fakeClock) *fakeSessionStore {
	return &fakeSessionStore{clock: clock, expiries: map[common.Address]time.Time{}}
}

func (f *fakeSessionStore) StartSession(_ context.Context, account common.Address, durationSeconds int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.expiries[account] = f.clock.Now().Add(time.Duration(durationSeconds) * time.Second)
	return nil
}

func (f *fakeSessionStore) SessionExpiry(_ context.Context, account common.Address) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return time.Time{}, f.readErr
	}
	return f.expiries[account], nil
}

type fakeSessionStatus struct {
	status domain.SessionStatus
	err    error
}

func (f fakeSessionStatus) Status(context.Context, common.Address) (domain.SessionStatus, error) {
	return f.status, f.err
}

type fakeConnections struct {
	mu    sync.Mutex
	open  map[common.Address]domain.TaskCompletionSet
	err   error
	saves int
}

func newFakeConnections() *fakeConnections {
	return &fakeConnections{open: map[common.Address]domain.TaskCompletionSet{}}
}

func (f *fakeConnections) Open(_ context.Context, account common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.open[account]; !ok {
		f.open[account] = domain.NewTaskCompletionSet()
	}
	return nil
}

func (f *fakeConnections) Completed(_ context.Context, account common.Address) (domain.TaskCompletionSet, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.TaskCompletionSet{}, false, f.err
	}
	set, ok := f.open[account]
	if !ok {
		return domain.NewTaskCompletionSet(), false, nil
	}
	return domain.NewTaskCompletionSet(set.IDs()...), true, nil
}

func (f *fakeConnections) SaveCompleted(_ context.Context, account common.Address, set domain.TaskCompletionSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.open[account] = domain.NewTaskCompletionSet(set.IDs()...)
	return nil
}

func (f *fakeConnections) Delete(_ context.Context, account common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.open, account)
	return nil
}

type fakeHistory struct {
	mu      sync.Mutex
	records []domain.MintRecord
	err     error
}

func (f *fakeHistory) Append(_ context.Context, record domain.MintRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeHistory) List(_ context.Context, account common.Address, limit int) ([]domain.MintRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.MintRecord
	for _, record := range f.records {
		if record.Account == account {
			out = append(out, record)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeHistory) Count(_ context.Context, account common.Address) (int, error) {
	records, err := f.List(context.Background(), account, 0)
	return len(records), err
}

func (f *fakeHistory) snapshot() []domain.MintRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.MintRecord(nil), f.records...)
}

type fakeTokenMinter struct {
	mu       sync.Mutex
	price    *big.Int
	priceErr error
	mintErr  error
	calls    int
	values   []*big.Int
}

func (f *fakeTokenMinter) MintPrice(context.Context) (*big.Int, error) {
	if f.priceErr != nil {
		return nil, f.priceErr
	}
	if f.price == nil {
		return big.NewInt(1_000_000_000_000_000), nil
	}
	return f.price, nil
}

func (f *fakeTokenMinter) Mint(_ context.Context, _ common.Address, value *big.Int) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.values = append(f.values, value)
	if f.mintErr != nil {
		return common.Hash{}, f.mintErr
	}
	return common.HexToHash("0x5e1f"), nil
}

// fakeSponsorMinter fails with the queued errors first, then succeeds.
type fakeSponsorMinter struct {
	mu       sync.Mutex
	failures []error
	calls    int
	inFlight int
	maxSeen  int
	hold     time.Duration
}

func (f *fakeSponsorMinter) MintForFree(_ context.Context, _ common.Address) (common.Hash, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	var err error
	if len(f.failures) > 0 {
		err = f.failures[0]
		f.failures = f.failures[1:]
	}
	hold := f.hold
	f.mu.Unlock()

	if hold > 0 {
		time.Sleep(hold)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err != nil {
		return common.Hash{}, err
	}
	return common.HexToHash("0xf7ee"), nil
}

type fakeFees struct {
	fees domain.FeeData
	err  error
}

func (f fakeFees) FeeData(context.Context) (domain.FeeData, error) {
	return f.fees, f.err
}

type fakeSequence struct {
	nonce uint64
	err   error
}

func (f fakeSequence) SequenceNumber(context.Context, common.Address) (uint64, error) {
	return f.nonce, f.err
}

type fakeSecretStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSecretStore() *fakeSecretStore {
	return &fakeSecretStore{values: map[string]string{}}
}

func (f *fakeSecretStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	if !ok {
		return "", errors.New("secret not found")
	}
	return value, nil
}

func (f *fakeSecretStore) Put(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeSecretStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

type fakeRelayer struct {
	sent       []domain.OperationEnvelope
	entryPoint common.Address
	err        error
	receipt    domain.OperationReceipt
	estimate   domain.GasEstimate
}

func (f *fakeRelayer) SendUserOperation(_ context.Context, op domain.OperationEnvelope, entryPoint common.Address) (common.Hash, error) {
	if f.err != nil {
		return common.Hash{}, f.err
	}
	f.sent = append(f.sent, op)
	f.entryPoint = entryPoint
	return common.HexToHash("0x0b"), nil
}

func (f *fakeRelayer) UserOperationByHash(context.Context, common.Hash) (domain.OperationReceipt, error) {
	return f.receipt, f.err
}

func (f *fakeRelayer) EstimateUserOperationGas(_ context.Context, _ domain.OperationEnvelope, entryPoint common.Address) (domain.GasEstimate, error) {
	f.entryPoint = entryPoint
	return f.estimate, f.err
}

func testCatalog() []domain.Task {
	return []domain.Task{
		{ID: 1, Title: "Follow on Twitter", Kind: "social"},
		{ID: 2, Title: "Join Discord", Kind: "social"},
		{ID: 3, Title: "Share introduction", Kind: "social"},
	}
}
