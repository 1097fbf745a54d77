package ports

import (
	"context"
	"math/big"
	"time"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// BalanceOracle reads the eligibility token balance of a holder.
type BalanceOracle interface {
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
}

// SessionStore is the contract-backed record of sponsorship sessions.
// SessionExpiry returns the zero time when no session was ever started.
type SessionStore interface {
	StartSession(ctx context.Context, account common.Address, durationSeconds int64) error
	SessionExpiry(ctx context.Context, account common.Address) (time.Time, error)
}

// TokenMintExecutor is the self-paid path: the user's own signer pays the
// mint price and the network fee.
type TokenMintExecutor interface {
	MintPrice(ctx context.Context) (*big.Int, error)
	Mint(ctx context.Context, account common.Address, value *big.Int) (common.Hash, error)
}

// SponsorMintExecutor is the sponsored path, only callable by the
// privileged signer.
type SponsorMintExecutor interface {
	MintForFree(ctx context.Context, account common.Address) (common.Hash, error)
}

// SignerService submits calls with the privileged sponsor key. Key material
// never leaves the service.
type SignerService interface {
	Submit(ctx context.Context, call domain.Call) (common.Hash, error)
	Address(ctx context.Context) (common.Address, error)
}

type FeeOracle interface {
	FeeData(ctx context.Context) (domain.FeeData, error)
}

type SequenceSource interface {
	SequenceNumber(ctx context.Context, account common.Address) (uint64, error)
}

// Relayer is the bundler that executes operation envelopes.
type Relayer interface {
	SendUserOperation(ctx context.Context, op domain.OperationEnvelope, entryPoint common.Address) (common.Hash, error)
	UserOperationByHash(ctx context.Context, hash common.Hash) (domain.OperationReceipt, error)
	EstimateUserOperationGas(ctx context.Context, op domain.OperationEnvelope, entryPoint common.Address) (domain.GasEstimate, error)
}
