package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Call is a raw contract call before it is wrapped into an envelope or a
// transaction.
type Call struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

type FeeData struct {
	BaseFee              *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// OperationEnvelope is the fee-abstracted user operation submitted to a
// relayer instead of the network.
type OperationEnvelope struct {
	Sender               common.Address
	Nonce                *big.Int
	InitCode             []byte
	CallData             []byte
	CallGasLimit         uint64
	VerificationGasLimit uint64
	PreVerificationGas   uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	PaymasterAndData     []byte
	Signature            []byte
}

func (op OperationEnvelope) TotalGasLimit() uint64 {
	return op.CallGasLimit + op.VerificationGasLimit + op.PreVerificationGas
}

func (op OperationEnvelope) Signed() bool {
	return len(op.Signature) > 0
}

// WithSignature returns a copy carrying sig. The receiver is left untouched.
func (op OperationEnvelope) WithSignature(sig []byte) OperationEnvelope {
	op.Signature = append([]byte(nil), sig...)
	return op
}

type GasEstimate struct {
	CallGasLimit         uint64
	VerificationGasLimit uint64
	PreVerificationGas   uint64
}

type OperationReceipt struct {
	Hash        common.Hash
	Sender      common.Address
	EntryPoint  common.Address
	BlockNumber *big.Int
	Transaction common.Hash
}
