package application

import (
	"context"
	"fmt"
	"math/big"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/bnema/gasmorph/internal/paymaster"
	"github.com/bnema/gasmorph/internal/ports"
	"github.com/ethereum/go-ethereum/common"
)

// GasLimits are the static limits written into every envelope.
type GasLimits struct {
	CallGasLimit         uint64
	VerificationGasLimit uint64
	PreVerificationGas   uint64
}

var DefaultGasLimits = GasLimits{
	CallGasLimit:         300_000,
	VerificationGasLimit: 100_000,
	PreVerificationGas:   21_000,
}

// Assembler builds unsigned operation envelopes. Upstream read failures are
// returned as is; retrying is the caller's decision.
type Assembler struct {
	fees      ports.FeeOracle
	sequence  ports.SequenceSource
	paymaster common.Address
	gas       GasLimits
}

func NewAssembler(fees ports.FeeOracle, sequence ports.SequenceSource, paymasterAddress common.Address, gas GasLimits) *Assembler {
	if gas == (GasLimits{}) {
		gas = DefaultGasLimits
	}

	return &Assembler{fees: fees, sequence: sequence, paymaster: paymasterAddress, gas: gas}
}

// Assemble carries only call.Data: the sender account executes it. A call
// with value or a target other than the sender is rejected.
func (a *Assembler) Assemble(ctx context.Context, call domain.Call, account common.Address, mode domain.PaymasterMode) (domain.OperationEnvelope, error) {
	if call.Value != nil && call.Value.Sign() != 0 {
		return domain.OperationEnvelope{}, fmt.Errorf("%w: value %s", domain.ErrUnsupportedCall, call.Value)
	}
	if call.To != (common.Address{}) && call.To != account {
		return domain.OperationEnvelope{}, fmt.Errorf("%w: target %s", domain.ErrUnsupportedCall, call.To.Hex())
	}

	fees, err := a.fees.FeeData(ctx)
	if err != nil {
		return domain.OperationEnvelope{}, fmt.Errorf("%w: %w", domain.ErrFeeDataUnavailable, err)
	}

	nonce, err := a.sequence.SequenceNumber(ctx, account)
	if err != nil {
		return domain.OperationEnvelope{}, fmt.Errorf("%w: %w", domain.ErrSequenceNumberUnavailable, err)
	}

	paymasterAndData, err := paymaster.Encode(account, mode, a.paymaster)
	if err != nil {
		return domain.OperationEnvelope{}, err
	}

	return domain.OperationEnvelope{
		Sender:               account,
		Nonce:                new(big.Int).SetUint64(nonce),
		CallData:             append([]byte(nil), call.Data...),
		CallGasLimit:         a.gas.CallGasLimit,
		VerificationGasLimit: a.gas.VerificationGasLimit,
		PreVerificationGas:   a.gas.PreVerificationGas,
		MaxFeePerGas:         bigOrZero(fees.MaxFeePerGas),
		MaxPriorityFeePerGas: bigOrZero(fees.MaxPriorityFeePerGas),
		PaymasterAndData:     paymasterAndData,
	}, nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
