package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/bnema/gasmorph/internal/adapters/nodeerr"
	"github.com/bnema/gasmorph/internal/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
)

// Transactor signs and sends dynamic-fee transactions with one key.
// Submissions from the same Transactor are serialized.
type Transactor struct {
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	signer  types.Signer
	timeout time.Duration
	logger  log.Logger
	mu      sync.Mutex
}

func NewTransactor(backend Backend, key *ecdsa.PrivateKey, chainID *big.Int, timeout time.Duration, logger log.Logger) *Transactor {
	if logger == nil {
		logger = log.Root()
	}

	return &Transactor{
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(chainID),
		timeout: timeout,
		logger:  logger,
	}
}

func (t *Transactor) From() common.Address {
	return t.from
}

// Send returns once the transaction is mined, all within one request
// timeout. A mined transaction with a failed status returns
// ErrTransactionReverted.
func (t *Transactor) Send(ctx context.Context, call domain.Call) (common.Hash, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx, cancel := requestContext(ctx, t.timeout)
	defer cancel()

	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := t.backend.PendingNonceAt(ctx, t.from)
	if err != nil {
		return common.Hash{}, nodeerr.Classify(fmt.Errorf("read pending nonce: %w", err))
	}
	head, err := t.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, nodeerr.Classify(fmt.Errorf("read latest header: %w", err))
	}
	tip, err := t.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, nodeerr.Classify(fmt.Errorf("suggest gas tip cap: %w", err))
	}
	gasFeeCap := new(big.Int).Add(tip, new(big.Int).Mul(baseFeeOf(head), big.NewInt(2)))

	to := call.To
	gas, err := t.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      t.from,
		To:        &to,
		GasFeeCap: gasFeeCap,
		GasTipCap: tip,
		Value:     value,
		Data:      call.Data,
	})
	if err != nil {
		return common.Hash{}, nodeerr.Classify(fmt.Errorf("estimate gas: %w", err))
	}

	tx, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   t.signer.ChainID(),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: gasFeeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      call.Data,
	}), t.signer, t.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}

	if err := t.backend.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, nodeerr.Classify(fmt.Errorf("send transaction: %w", err))
	}

	t.logger.Debug("Transaction sent", "from", t.from, "to", to, "nonce", nonce, "hash", tx.Hash())

	receipt, err := bind.WaitMined(ctx, t.backend, tx)
	if err != nil {
		return common.Hash{}, nodeerr.Classify(fmt.Errorf("wait for transaction %s: %w", tx.Hash().Hex(), err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Hash{}, fmt.Errorf("%w: %s", domain.ErrTransactionReverted, tx.Hash().Hex())
	}

	t.logger.Debug("Transaction mined", "hash", tx.Hash(), "block", receipt.BlockNumber)
	return tx.Hash(), nil
}

func baseFeeOf(head *types.Header) *big.Int {
	if head == nil || head.BaseFee == nil {
		return new(big.Int)
	}
	return head.BaseFee
}
