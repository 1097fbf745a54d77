package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/bnema/gasmorph/internal/adapters/nodeerr"
	"github.com/bnema/gasmorph/internal/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Reader performs the read-only contract and fee-market queries.
type Reader struct {
	backend   Backend
	nft       common.Address
	paymaster common.Address
	timeout   time.Duration
}

func NewReader(backend Backend, nft, paymasterAddress common.Address, timeout time.Duration) *Reader {
	return &Reader{backend: backend, nft: nft, paymaster: paymasterAddress, timeout: timeout}
}

func (r *Reader) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	var balance *big.Int
	if err := r.call(ctx, r.nft, DemoNFTABI, "balanceOf", &balance, account); err != nil {
		return nil, err
	}
	return balance, nil
}

func (r *Reader) MintPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	if err := r.call(ctx, r.nft, DemoNFTABI, "mintPrice", &price); err != nil {
		return nil, err
	}
	return price, nil
}

// SessionExpiry returns the zero time when the paymaster has no session
// recorded for account.
func (r *Reader) SessionExpiry(ctx context.Context, account common.Address) (time.Time, error) {
	var status struct {
		Active    bool
		ExpiresAt *big.Int
	}
	if err := r.call(ctx, r.paymaster, PaymasterABI, "getSessionStatus", &status, account); err != nil {
		return time.Time{}, err
	}
	if status.ExpiresAt == nil || status.ExpiresAt.Sign() == 0 {
		return time.Time{}, nil
	}
	return time.Unix(status.ExpiresAt.Int64(), 0), nil
}

// FeeData uses the latest base fee and the suggested tip. The fee cap
// leaves room for the base fee to double.
func (r *Reader) FeeData(ctx context.Context) (domain.FeeData, error) {
	ctx, cancel := requestContext(ctx, r.timeout)
	defer cancel()

	head, err := r.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return domain.FeeData{}, nodeerr.Classify(fmt.Errorf("read latest header: %w", err))
	}
	tip, err := r.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return domain.FeeData{}, nodeerr.Classify(fmt.Errorf("suggest gas tip cap: %w", err))
	}

	baseFee := new(big.Int)
	if head.BaseFee != nil {
		baseFee.Set(head.BaseFee)
	}
	maxFee := new(big.Int).Mul(baseFee, big.NewInt(2))
	maxFee.Add(maxFee, tip)

	return domain.FeeData{BaseFee: baseFee, MaxFeePerGas: maxFee, MaxPriorityFeePerGas: tip}, nil
}

func (r *Reader) SequenceNumber(ctx context.Context, account common.Address) (uint64, error) {
	ctx, cancel := requestContext(ctx, r.timeout)
	defer cancel()

	nonce, err := r.backend.NonceAt(ctx, account, nil)
	if err != nil {
		return 0, nodeerr.Classify(fmt.Errorf("read nonce of %s: %w", account.Hex(), err))
	}
	return nonce, nil
}

func (r *Reader) call(ctx context.Context, to common.Address, contract abi.ABI, method string, out any, args ...any) error {
	input, err := contract.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}

	ctx, cancel := requestContext(ctx, r.timeout)
	defer cancel()

	output, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nodeerr.Classify(fmt.Errorf("call %s: %w", method, err))
	}
	if err := contract.UnpackIntoInterface(out, method, output); err != nil {
		return fmt.Errorf("unpack %s: %w", method, err)
	}
	return nil
}
