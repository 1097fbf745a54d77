package bundler

import (
	"math/big"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// UserOperation is the JSON form of an envelope on the bundler RPC.
type UserOperation struct {
	Sender               common.Address `json:"sender"`
	Nonce                *hexutil.Big   `json:"nonce"`
	InitCode             hexutil.Bytes  `json:"initCode"`
	CallData             hexutil.Bytes  `json:"callData"`
	CallGasLimit         hexutil.Uint64 `json:"callGasLimit"`
	VerificationGasLimit hexutil.Uint64 `json:"verificationGasLimit"`
	PreVerificationGas   hexutil.Uint64 `json:"preVerificationGas"`
	MaxFeePerGas         *hexutil.Big   `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big   `json:"maxPriorityFeePerGas"`
	PaymasterAndData     hexutil.Bytes  `json:"paymasterAndData"`
	Signature            hexutil.Bytes  `json:"signature"`
}

func FromEnvelope(op domain.OperationEnvelope) UserOperation {
	return UserOperation{
		Sender:               op.Sender,
		Nonce:                toHexBig(op.Nonce),
		InitCode:             nonNil(op.InitCode),
		CallData:             nonNil(op.CallData),
		CallGasLimit:         hexutil.Uint64(op.CallGasLimit),
		VerificationGasLimit: hexutil.Uint64(op.VerificationGasLimit),
		PreVerificationGas:   hexutil.Uint64(op.PreVerificationGas),
		MaxFeePerGas:         toHexBig(op.MaxFeePerGas),
		MaxPriorityFeePerGas: toHexBig(op.MaxPriorityFeePerGas),
		PaymasterAndData:     nonNil(op.PaymasterAndData),
		Signature:            nonNil(op.Signature),
	}
}

func (u UserOperation) Envelope() domain.OperationEnvelope {
	return domain.OperationEnvelope{
		Sender:               u.Sender,
		Nonce:                fromHexBig(u.Nonce),
		InitCode:             u.InitCode,
		CallData:             u.CallData,
		CallGasLimit:         uint64(u.CallGasLimit),
		VerificationGasLimit: uint64(u.VerificationGasLimit),
		PreVerificationGas:   uint64(u.PreVerificationGas),
		MaxFeePerGas:         fromHexBig(u.MaxFeePerGas),
		MaxPriorityFeePerGas: fromHexBig(u.MaxPriorityFeePerGas),
		PaymasterAndData:     u.PaymasterAndData,
		Signature:            u.Signature,
	}
}

func toHexBig(v *big.Int) *hexutil.Big {
	if v == nil {
		return (*hexutil.Big)(new(big.Int))
	}
	return (*hexutil.Big)(new(big.Int).Set(v))
}

func fromHexBig(v *hexutil.Big) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v.ToInt())
}

// nonNil keeps empty byte fields encoded as "0x" rather than null.
func nonNil(b []byte) hexutil.Bytes {
	if b == nil {
		return hexutil.Bytes{}
	}
	return hexutil.Bytes(b)
}
