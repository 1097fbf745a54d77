package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/gasmorph/internal/adapters/chain"
	chainstore "github.com/bnema/gasmorph/internal/adapters/secrets/chain"
	"github.com/bnema/gasmorph/internal/adapters/signer"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	devKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	otherUser  = "0x00000000000000000000000000000000000000b0"
)

func TestVersionPrintsVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), nil, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", stdout)
}

func TestTasksListWithoutWalletShowsCatalog(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), nil, "tasks", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "[ ] 1.")
	assert.Contains(t, stdout, "[ ] 3.")
	assert.Contains(t, stdout, "completed: 0/3 (sponsorship needs 2)")
}

func TestWalletImportThenAddress(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, nil, "wallet", "import", "--key", "0x"+devKey)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Imported "+devAddress+" as gasmorph://wallet/default")

	stdout, _, err = executeCLI(t, home, nil, "wallet", "address")
	require.NoError(t, err)
	assert.Equal(t, devAddress+"\n", stdout)
}

func TestWalletImportReadsKeyFromStdin(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLIWithInput(t, home, nil, strings.NewReader(devKey+"\n"), "wallet", "import", "--ref", "gasmorph://wallet/second")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Imported "+devAddress)
}

func TestWalletImportRejectsMalformedKey(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), nil, "wallet", "import", "--key", "not-a-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse private key")
}

func TestCommandsWithoutWalletAskForAccount(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), nil, "connect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no wallet imported")
}

func TestConnectCompleteDisconnectFlow(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, nil, "connect", "--account", otherUser)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Connected")

	stdout, _, err = executeCLI(t, home, nil, "tasks", "complete", "2", "--account", otherUser)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Task 2 completed (1/3)")

	stdout, _, err = executeCLI(t, home, nil, "tasks", "complete", "2", "--account", otherUser)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Task 2 already completed (1/3)")

	stdout, _, err = executeCLI(t, home, nil, "tasks", "list", "--account", otherUser)
	require.NoError(t, err)
	assert.Contains(t, stdout, "[x] 2.")
	assert.Contains(t, stdout, "completed: 1/3")

	_, _, err = executeCLI(t, home, nil, "disconnect", "--account", otherUser)
	require.NoError(t, err)

	stdout, _, err = executeCLI(t, home, nil, "tasks", "list", "--account", otherUser)
	require.NoError(t, err)
	assert.Contains(t, stdout, "completed: 0/3")
}

func TestTasksCompleteRequiresConnection(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), nil, "tasks", "complete", "1", "--account", otherUser)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account is not connected")
}

func TestTasksCompleteRejectsUnknownTask(t *testing.T) {
	home := t.TempDir()
	_, _, err := executeCLI(t, home, nil, "connect", "--account", otherUser)
	require.NoError(t, err)

	_, _, err = executeCLI(t, home, nil, "tasks", "complete", "9", "--account", otherUser)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task")
}

func TestPaymasterEncodeDecodeRoundTrip(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, nil, "paymaster", "encode", "--payer", devAddress, "--mode", "session")
	require.NoError(t, err)
	encoded := strings.TrimSpace(stdout)
	assert.Len(t, encoded, 2+41*2)
	assert.True(t, strings.HasSuffix(encoded, "01"))

	stdout, _, err = executeCLI(t, home, nil, "paymaster", "decode", encoded)
	require.NoError(t, err)
	assert.Contains(t, stdout, "paymaster: 0x9ac77eA1280fF4dCf89b2D0f47bd15c396898945")
	assert.Contains(t, stdout, "payer: "+devAddress)
	assert.Contains(t, stdout, "mode: session")
}

func TestPaymasterDecodeRejectsMalformedData(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, nil, "paymaster", "decode", "0x0102")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed paymaster data")

	_, _, err = executeCLI(t, home, nil, "paymaster", "decode", "0x"+strings.Repeat("00", 40)+"07")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestHistoryEmpty(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), nil, "history", "--account", otherUser)
	require.NoError(t, err)
	assert.Contains(t, stdout, "mints: 0")
	assert.Contains(t, stdout, "no mints recorded")
}

func TestStatusShowsSponsorReadyAccount(t *testing.T) {
	home := t.TempDir()
	backend := newFakeChain()
	backend.sessionExpiry = time.Now().Add(90 * time.Second)

	_, _, err := executeCLI(t, home, nil, "connect", "--account", otherUser)
	require.NoError(t, err)
	for _, id := range []string{"1", "3"} {
		_, _, err = executeCLI(t, home, nil, "tasks", "complete", id, "--account", otherUser)
		require.NoError(t, err)
	}

	stdout, _, err := executeCLI(t, home, backend, "status", "--account", otherUser)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Account: "+common.HexToAddress(otherUser).Hex())
	assert.Contains(t, stdout, "eligible (active session)")
	assert.Contains(t, stdout, "balance: 0 DEMO")
	assert.Contains(t, stdout, "session: active")
	assert.Contains(t, stdout, "2/3")
	assert.Contains(t, stdout, "sponsorship: ready")
}

func TestStatusJSONOutput(t *testing.T) {
	home := t.TempDir()
	backend := newFakeChain()
	backend.balance = big.NewInt(2)

	stdout, _, err := executeCLI(t, home, backend, "status", "--account", otherUser, "--json")
	require.NoError(t, err)
	require.True(t, json.Valid([]byte(stdout)))

	var decoded statusJSON
	require.NoError(t, json.Unmarshal([]byte(stdout), &decoded))
	assert.True(t, decoded.Eligible)
	assert.Equal(t, "token_balance", decoded.Basis)
	assert.Equal(t, "2", decoded.TokenBalance)
	assert.Equal(t, "none", string(decoded.Session.State))
	assert.False(t, decoded.CanSponsor)
	assert.Equal(t, 3, decoded.TaskTotal)
}

func TestEligibilityFallsBackWhenBalanceUnavailable(t *testing.T) {
	home := t.TempDir()
	backend := newFakeChain()
	backend.balanceErr = errors.New("connection refused")

	stdout, _, err := executeCLI(t, home, backend, "eligibility", "--account", "0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6")
	require.NoError(t, err)
	assert.Contains(t, stdout, "eligible: true")
	assert.Contains(t, stdout, "basis: allow-list")
	assert.Contains(t, stdout, "token balance: unknown")
}

func TestSessionIssueRejectsNonOwnerSignerBeforeTouchingChain(t *testing.T) {
	home := t.TempDir()
	backend := newFakeChain()
	startSignerService(t, home, backend)

	_, _, err := executeCLI(t, home, backend, "session", "issue", otherUser)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authorized")
	assert.Empty(t, backend.sent())
}

func TestSessionIssueThroughOwnerSigner(t *testing.T) {
	home := t.TempDir()
	backend := newFakeChain()
	startSignerService(t, home, backend)
	t.Setenv("GASMORPH_CONTRACTS_OWNER", devAddress)

	stdout, _, err := executeCLI(t, home, backend, "session", "issue", otherUser, "--duration", "90s")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Session issued for "+common.HexToAddress(otherUser).Hex())

	sent := backend.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, common.HexToAddress("0x9ac77eA1280fF4dCf89b2D0f47bd15c396898945"), *sent[0].To())
}

func TestSessionIssueRejectsNonPositiveDuration(t *testing.T) {
	home := t.TempDir()
	backend := newFakeChain()
	startSignerService(t, home, backend)
	t.Setenv("GASMORPH_CONTRACTS_OWNER", devAddress)

	_, _, err := executeCLI(t, home, backend, "session", "issue", otherUser, "--duration", "0s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid session duration")
	assert.Empty(t, backend.sent())
}

func TestSessionIssueHasNoIssuerOverride(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), newFakeChain(), "session", "issue", otherUser, "--as", devAddress)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag: --as")
}

func TestSessionStatusShowsExpiredSession(t *testing.T) {
	home := t.TempDir()
	backend := newFakeChain()
	backend.sessionExpiry = time.Now().Add(-time.Minute)

	stdout, _, err := executeCLI(t, home, backend, "session", "status", "--account", otherUser)
	require.NoError(t, err)
	assert.Contains(t, stdout, "session: expired")
}

func TestMintSelfPaidRecordsHistory(t *testing.T) {
	home := t.TempDir()
	backend := newFakeChain()

	_, _, err := executeCLI(t, home, nil, "wallet", "import", "--key", devKey)
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, backend, "mint", "--mode", "token", "--quiet")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Minted to "+devAddress+" (self-paid, 1 attempt(s))")

	sent := backend.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, common.HexToAddress("0x07366b687f74C1B6FA6f5Aa21C76678ea7F11F89"), *sent[0].To())
	assert.Equal(t, backend.price, sent[0].Value())

	stdout, _, err = executeCLI(t, home, nil, "history")
	require.NoError(t, err)
	assert.Contains(t, stdout, "mints: 1")
	assert.Contains(t, stdout, sent[0].Hash().Hex())
	assert.Contains(t, stdout, "self-paid")
}

func TestMintRevertedTransactionIsNotRecorded(t *testing.T) {
	home := t.TempDir()
	backend := newFakeChain()
	backend.reverted = true

	_, _, err := executeCLI(t, home, nil, "wallet", "import", "--key", devKey)
	require.NoError(t, err)

	_, _, err = executeCLI(t, home, backend, "mint", "--mode", "token", "--quiet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transaction reverted")
	require.Len(t, backend.sent(), 1)

	stdout, _, err := executeCLI(t, home, nil, "history")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no mints recorded")
}

func TestMintWithoutWalletFails(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), newFakeChain(), "mint", "--quiet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no wallet imported")
}

func TestMintRejectsUnknownMode(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), newFakeChain(), "mint", "--mode", "gratis", "--quiet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid paymaster mode")
}

func TestOpBuildPrintsEnvelope(t *testing.T) {
	home := t.TempDir()
	backend := newFakeChain()
	backend.balance = big.NewInt(1)

	stdout, _, err := executeCLI(t, home, backend, "op", "build", "--account", otherUser, "--mode", "token")
	require.NoError(t, err)

	var op map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &op))
	assert.Equal(t, "0x7", op["nonce"])
	assert.Equal(t, "0x", op["signature"])

	paymasterAndData, ok := op["paymasterAndData"].(string)
	require.True(t, ok)
	assert.Len(t, paymasterAndData, 2+41*2)
	assert.True(t, strings.HasSuffix(paymasterAndData, "00"))
}

func TestOpSendRejectsUnsignedEnvelope(t *testing.T) {
	home := t.TempDir()
	backend := newFakeChain()
	backend.sessionExpiry = time.Now().Add(time.Hour)

	envelope, _, err := executeCLI(t, home, backend, "op", "build", "--account", otherUser)
	require.NoError(t, err)

	_, _, err = executeCLIWithInput(t, home, backend, strings.NewReader(envelope), "op", "send")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "envelope is not signed")
}

func TestOpBuildRefusesModeTheAccountIsNotEligibleFor(t *testing.T) {
	tests := []struct {
		name string
		mode string
	}{
		{name: "session without session", mode: "session"},
		{name: "token without tokens", mode: "token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := executeCLI(t, t.TempDir(), newFakeChain(), "op", "build", "--account", otherUser, "--mode", tt.mode)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "mode not backed by eligibility")
			assert.Empty(t, stdout)
		})
	}
}

func TestOpBuildHasNoTargetOrValueFlags(t *testing.T) {
	for _, flag := range []string{"--to", "--value"} {
		_, _, err := executeCLI(t, t.TempDir(), newFakeChain(), "op", "build", "--account", otherUser, flag, "1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown flag: "+flag)
	}
}

func TestFailingCommandReleasesChainConnection(t *testing.T) {
	backend := newFakeChain()

	_, _, err := executeCLI(t, t.TempDir(), backend, "op", "build", "--account", otherUser, "--mode", "session")
	require.Error(t, err)
	assert.Equal(t, 1, backend.closeCount())
}

func TestSucceedingCommandReleasesChainConnectionOnce(t *testing.T) {
	backend := newFakeChain()

	_, _, err := executeCLI(t, t.TempDir(), backend, "eligibility", "--account", otherUser)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.closeCount())
}

func TestUnknownCommandFails(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), nil, "pool")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command \"pool\"")
}

// startSignerService serves a signer holding devKey over backend and points
// the CLI at it.
func startSignerService(t *testing.T, home string, backend *fakeChain) {
	t.Helper()

	const secret = "cli-test-secret-0123456789abcdef"
	store, err := chainstore.NewPassFirstWithFileFallback(filepath.Join(home, ".gasmorph", "secrets"))
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), "gasmorph://signer/jwt_secret", secret))

	key, err := crypto.HexToECDSA(devKey)
	require.NoError(t, err)
	transactor := chain.NewTransactor(backend, key, big.NewInt(10143), time.Second, nil)
	targets := []common.Address{
		common.HexToAddress("0x07366b687f74C1B6FA6f5Aa21C76678ea7F11F89"),
		common.HexToAddress("0x9ac77eA1280fF4dCf89b2D0f47bd15c396898945"),
	}
	handler, stop, err := signer.NewHandler(signer.NewService(transactor, targets, nil), []byte(secret))
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		server.Close()
		stop()
	})
	t.Setenv("GASMORPH_SIGNER_URL", server.URL)
}

func executeCLI(t *testing.T, home string, backend chain.Backend, args ...string) (string, string, error) {
	t.Helper()
	return executeCLIWithInput(t, home, backend, strings.NewReader(""), args...)
}

func executeCLIWithInput(t *testing.T, home string, backend chain.Backend, input *strings.Reader, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)
	t.Setenv("PASSWORD_STORE_DIR", home+"/.password-store")

	previous := dialBackend
	dialBackend = func(context.Context, string) (chain.Backend, func(), error) {
		if backend == nil {
			return nil, nil, errors.New("no chain in this test")
		}
		closeFn := func() {}
		if c, ok := backend.(interface{ markClosed() }); ok {
			closeFn = c.markClosed
		}
		return backend, closeFn, nil
	}
	t.Cleanup(func() { dialBackend = previous })

	root, cleanup := newRootCmd()
	defer cleanup()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetIn(input)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// fakeChain answers the contract reads the commands make and records sent
// transactions.
type fakeChain struct {
	mu            sync.Mutex
	balance       *big.Int
	balanceErr    error
	price         *big.Int
	sessionExpiry time.Time
	transactions  []*types.Transaction
	reverted      bool
	closed        int
}

func (f *fakeChain) markClosed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func (f *fakeChain) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newFakeChain() *fakeChain {
	return &fakeChain{balance: big.NewInt(0), price: big.NewInt(1_000_000_000_000_000)}
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if len(msg.Data) < 4 {
		return nil, errors.New("short call data")
	}
	selector := msg.Data[:4]

	nft := chain.DemoNFTABI.Methods
	paymaster := chain.PaymasterABI.Methods
	switch {
	case bytes.Equal(selector, nft["balanceOf"].ID):
		if f.balanceErr != nil {
			return nil, f.balanceErr
		}
		return nft["balanceOf"].Outputs.Pack(f.balance)
	case bytes.Equal(selector, nft["mintPrice"].ID):
		return nft["mintPrice"].Outputs.Pack(f.price)
	case bytes.Equal(selector, paymaster["getSessionStatus"].ID):
		expiry := big.NewInt(0)
		if !f.sessionExpiry.IsZero() {
			expiry = big.NewInt(f.sessionExpiry.Unix())
		}
		return paymaster["getSessionStatus"].Outputs.Pack(f.sessionExpiry.After(time.Now()), expiry)
	default:
		return nil, errors.New("unexpected contract call")
	}
}

func (f *fakeChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100), BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (f *fakeChain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(100_000_000), nil
}

func (f *fakeChain) NonceAt(context.Context, common.Address, *big.Int) (uint64, error) {
	return 7, nil
}

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 90_000, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions = append(f.transactions, tx)
	return nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.transactions {
		if tx.Hash() != hash {
			continue
		}
		status := types.ReceiptStatusSuccessful
		if f.reverted {
			status = types.ReceiptStatusFailed
		}
		return &types.Receipt{Status: status, TxHash: hash, BlockNumber: big.NewInt(101)}, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeChain) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return nil, nil
}

func (f *fakeChain) sent() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.transactions...)
}
