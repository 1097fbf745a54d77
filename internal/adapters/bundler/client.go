package bundler

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/bnema/gasmorph/internal/adapters/nodeerr"
	"github.com/bnema/gasmorph/internal/domain"
	"github.com/bnema/gasmorph/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const defaultTimeout = 15 * time.Second

// Client talks to a bundler over its JSON-RPC interface.
type Client struct {
	rpc     *rpc.Client
	timeout time.Duration
}

func Dial(ctx context.Context, rawURL string, timeout time.Duration) (*Client, error) {
	client, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, nodeerr.Classify(fmt.Errorf("dial bundler %s: %w", rawURL, err))
	}
	return NewClient(client, timeout), nil
}

func NewClient(client *rpc.Client, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{rpc: client, timeout: timeout}
}

func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) SendUserOperation(ctx context.Context, op domain.OperationEnvelope, entryPoint common.Address) (common.Hash, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendUserOperation", FromEnvelope(op), entryPoint); err != nil {
		return common.Hash{}, nodeerr.Classify(fmt.Errorf("eth_sendUserOperation: %w", err))
	}
	return hash, nil
}

type lookupResult struct {
	UserOperation   UserOperation  `json:"userOperation"`
	EntryPoint      common.Address `json:"entryPoint"`
	TransactionHash common.Hash    `json:"transactionHash"`
	BlockNumber     *hexutil.Big   `json:"blockNumber"`
}

// UserOperationByHash fails with domain.ErrOperationNotFound when the
// bundler has no record of hash.
func (c *Client) UserOperationByHash(ctx context.Context, hash common.Hash) (domain.OperationReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result *lookupResult
	if err := c.rpc.CallContext(ctx, &result, "eth_getUserOperationByHash", hash); err != nil {
		return domain.OperationReceipt{}, nodeerr.Classify(fmt.Errorf("eth_getUserOperationByHash: %w", err))
	}
	if result == nil {
		return domain.OperationReceipt{}, fmt.Errorf("%w: %s", domain.ErrOperationNotFound, hash.Hex())
	}

	var block *big.Int
	if result.BlockNumber != nil {
		block = result.BlockNumber.ToInt()
	}

	return domain.OperationReceipt{
		Hash:        hash,
		Sender:      result.UserOperation.Sender,
		EntryPoint:  result.EntryPoint,
		BlockNumber: block,
		Transaction: result.TransactionHash,
	}, nil
}

type estimateResult struct {
	PreVerificationGas   hexutil.Uint64 `json:"preVerificationGas"`
	VerificationGasLimit hexutil.Uint64 `json:"verificationGasLimit"`
	CallGasLimit         hexutil.Uint64 `json:"callGasLimit"`
}

func (c *Client) EstimateUserOperationGas(ctx context.Context, op domain.OperationEnvelope, entryPoint common.Address) (domain.GasEstimate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result estimateResult
	if err := c.rpc.CallContext(ctx, &result, "eth_estimateUserOperationGas", FromEnvelope(op), entryPoint); err != nil {
		return domain.GasEstimate{}, nodeerr.Classify(fmt.Errorf("eth_estimateUserOperationGas: %w", err))
	}

	return domain.GasEstimate{
		CallGasLimit:         uint64(result.CallGasLimit),
		VerificationGasLimit: uint64(result.VerificationGasLimit),
		PreVerificationGas:   uint64(result.PreVerificationGas),
	}, nil
}

var _ ports.Relayer = (*Client)(nil)
